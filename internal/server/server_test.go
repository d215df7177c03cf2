package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mnehpets/jrpc/internal/config"
	"github.com/mnehpets/jrpc/internal/log"
	"github.com/mnehpets/jrpc/jsonrpc"
)

func init() {
	log.SetOutput(&strings.Builder{}, log.DefaultLevel)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.ReadConfig(config.New(), "")
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestServer_RPCAndHealth(t *testing.T) {
	_, srv := newTestServer(t, testConfig(t))

	c, err := jsonrpc.NewClient(srv.URL+config.DefaultPath, jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Call(context.Background(), "v_hello", map[string]string{"data": "TEST"}, jsonrpc.WithID("1"))
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, reply.Decode(&got))
	require.Equal(t, "OK", got["status"])

	resp, err := http.Get(srv.URL + HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok\n", string(body))
}

func TestServer_SecurityHeadersAndRequestID(t *testing.T) {
	_, srv := newTestServer(t, testConfig(t))

	req, err := http.NewRequest(http.MethodPost, srv.URL+config.DefaultPath,
		strings.NewReader(`{"jsonrpc":"2.0","method":"hello","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestServer_CORSPreflight(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSOrigins = []string{"https://app.example"}
	_, srv := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+config.DefaultPath, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig(t)
	cfg.BasicUsers = []string{"alice:" + string(hash)}
	_, srv := newTestServer(t, cfg)

	anon, err := jsonrpc.NewClient(srv.URL+config.DefaultPath, jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	_, err = anon.Call(context.Background(), "hello", nil)
	var ire *jsonrpc.InvalidResponseError
	require.ErrorAs(t, err, &ire)
	require.Equal(t, http.StatusUnauthorized, ire.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.SetBasicAuth("alice", "pw")
	c, err := jsonrpc.NewClient(srv.URL+config.DefaultPath,
		jsonrpc.WithHeader("Authorization", req.Header.Get("Authorization")),
		jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	reply, err := c.Call(context.Background(), "whoami", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"scheme":"basic","subject":"alice"}`, string(reply.Result))
}

func TestServer_Metrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableMetrics = true
	s, srv := newTestServer(t, cfg)
	require.NotNil(t, s.MetricsHandler())

	c, err := jsonrpc.NewClient(srv.URL+config.DefaultPath, jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "hello", nil)
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "missing", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `jrpc_requests_total{code="0",method="hello"} 1`)
	require.Contains(t, rec.Body.String(), `jrpc_requests_total{code="-32601",method="unknown"} 1`)
}

func TestServer_MetricsDisabled(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))
	require.Nil(t, s.MetricsHandler())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BasicUsers = []string{"alice:not-a-hash"}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Path = "rpc"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listen = "127.0.0.1:0"
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
}
