// Package middlewares provides the HTTP middleware chain for bedrock
// applications: correlation IDs, panic recovery, access logging, CORS,
// trusted-host filtering, and token authentication with role-based access
// control.
//
// All middlewares are standard func(http.Handler) http.Handler and compose
// with chi or any stdlib-compatible router. The intended order is Recover,
// RequestID, Logging, TrustedHost, CORS, compression, then Auth, so the
// correlation ID exists before anything logs and authentication runs last,
// closest to the handlers.
//
// RequestIDExtractor and UserIDExtractor plug into the logger package so
// request-scoped attributes appear on every log line without manual
// threading.
package middlewares
