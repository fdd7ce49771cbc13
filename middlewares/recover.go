package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/sentry"
)

// DefaultStackSize is the maximum captured stack trace in bytes.
const DefaultStackSize = 4096

// Recover catches handler panics, logs them with the stack, reports them to
// Sentry when active, and answers 500. http.ErrAbortHandler passes through
// so aborted streams keep their standard semantics.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNope()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := make([]byte, DefaultStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				log.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(stack)),
				)
				if err, ok := rec.(error); ok {
					sentry.CaptureErr(err)
				}

				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
