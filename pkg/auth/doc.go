// Package auth provides token authentication and role-based authorization
// backed by a GoTrue-compatible identity provider and Redis.
//
// The primary verification path delegates to the provider's published JWKS:
// Verifier checks the token signature, audience, and expiry against keys
// cached in memory and Redis. A separate symmetric-secret path (VerifyLocal,
// Service.VerifyJWT) exists for first-party tokens and is not part of the
// provider flow.
//
// Authorization is a pure set computation over Redis: users hold role sets
// (user:{id}:role), route tags require role sets (tag:{tag}:role), and
// CheckAccess grants iff the two intersect. A tag set that requires no
// roles denies access, so endpoints stay unreachable until someone declares
// a policy for them.
//
// Service implements the application plugin lifecycle and degrades to
// empty results on cache outages rather than failing requests.
package auth
