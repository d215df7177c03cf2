package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	c := NewCollector()
	c.Observe("echo", 0, 5*time.Millisecond)
	c.Observe("echo", 0, 7*time.Millisecond)
	c.Observe("echo", -32602, time.Millisecond)
	c.Observe("", -32601, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("echo", "0")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("echo", "-32602")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("unknown", "-32601")))
	require.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Observe("ping", 0, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `jrpc_requests_total{code="0",method="ping"} 1`), body)
	require.Contains(t, body, "jrpc_request_duration_seconds_bucket")
	require.Contains(t, body, "go_goroutines")
}
