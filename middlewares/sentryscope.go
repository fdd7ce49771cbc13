package middlewares

import (
	"net/http"

	sentrygo "github.com/getsentry/sentry-go"
)

// SentryScope binds a Sentry hub to the request context and tags its scope
// with the endpoint, the correlation id, and the authenticated user.
// Mount it after RequestID and Auth so both are populated. Without an
// initialized Sentry client the scope work is inert.
func SentryScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			hub := sentrygo.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentrygo.CurrentHub().Clone()
				ctx = sentrygo.SetHubOnContext(ctx, hub)
				r = r.WithContext(ctx)
			}

			scope := hub.Scope()
			scope.SetRequest(r)
			scope.SetTag("endpoint", r.URL.Path)
			if id := GetRequestID(ctx); id != "" {
				scope.SetTag("request_id", id)
			}
			if user := CurrentUser(ctx); user != nil {
				scope.SetUser(sentrygo.User{ID: user.ID, Email: user.Email})
			}

			next.ServeHTTP(w, r)
		})
	}
}
