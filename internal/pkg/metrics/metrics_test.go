package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.PostTransition("help", "open", "matched")
	r.PostTransition("help", "open", "matched")
	r.MatchTransition("item", "pending", "approved")
	r.Cascade("accept", time.Now(), true)
	r.Cascade("accept", time.Now(), false)
	r.Message("system")
	r.Moderation("hide_content")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.postTransitions.WithLabelValues("help", "open", "matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.matchTransitions.WithLabelValues("item", "pending", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cascadeFailures.WithLabelValues("accept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("system")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.moderation.WithLabelValues("hide_content")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.PostTransition("help", "open", "matched")
		r.MatchTransition("help", "pending", "accepted")
		r.Cascade("accept", time.Now(), true)
		r.Message("user")
		r.Moderation("ban")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.Message("user")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `exchange_messages_total{kind="user"} 1`))
}
