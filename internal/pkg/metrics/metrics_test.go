package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderIncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(CheckoutOutcomes.WithLabelValues("entitled"))
	Recorder{}.CheckoutOutcome("entitled")
	assert.Equal(t, before+1, testutil.ToFloat64(CheckoutOutcomes.WithLabelValues("entitled")))

	Recorder{}.WebhookEvent("payment_intent.succeeded", "processed")
	assert.GreaterOrEqual(t, testutil.ToFloat64(WebhookEvents.WithLabelValues("payment_intent.succeeded", "processed")), 1.0)
}

func TestHandlerServesRegistry(t *testing.T) {
	Recorder{}.CheckoutOutcome("begun")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "coursehaven_checkout_outcomes_total")
}
