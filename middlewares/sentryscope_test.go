package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedrockapp/bedrock/middlewares"
)

func TestSentryScope_HubOnContext(t *testing.T) {
	t.Parallel()

	var hub *sentrygo.Hub
	handler := middlewares.SentryScope()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub = sentrygo.GetHubFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, hub, "each request should carry its own hub")
}

func TestSentryScope_ReusesExistingHub(t *testing.T) {
	t.Parallel()

	existing := sentrygo.CurrentHub().Clone()
	var seen *sentrygo.Hub
	handler := middlewares.SentryScope()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = sentrygo.GetHubFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(sentrygo.SetHubOnContext(req.Context(), existing))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, existing, seen)
}
