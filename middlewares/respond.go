package middlewares

import (
	"encoding/json"
	"net/http"
)

// writeJSONError emits the uniform error body used by all middleware
// rejections, so clients see one shape regardless of which layer refused
// the request.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "error",
		"message":     message,
		"status_code": status,
	})
}
