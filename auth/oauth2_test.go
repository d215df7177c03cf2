package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnehpets/jrpc/endpoint"
	"github.com/mnehpets/jrpc/internal/log"
	"github.com/mnehpets/jrpc/jsonrpc"
)

// requireToken rejects requests that do not carry "Bearer <want>".
func requireToken(want string) endpoint.Processor {
	return endpoint.ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next endpoint.NextFunc) error {
		if r.Header.Get("Authorization") != "Bearer "+want {
			return endpoint.Error(http.StatusUnauthorized, "", nil)
		}
		return next(w, r.WithContext(WithPrincipal(r.Context(), &Principal{Scheme: SchemeBearer, Subject: want})))
	})
}

func TestStaticTokenClient(t *testing.T) {
	srv := httptest.NewServer(rpcServer(requireToken("s3cret")))
	defer srv.Close()

	c, err := jsonrpc.NewClient(srv.URL,
		jsonrpc.WithHTTPClient(StaticTokenClient(context.Background(), "s3cret")),
		jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Call(context.Background(), "whoami", nil)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, reply.Decode(&got))
	require.Equal(t, "s3cret", got["subject"])

	anon, err := jsonrpc.NewClient(srv.URL, jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	_, err = anon.Call(context.Background(), "whoami", nil)
	var ire *jsonrpc.InvalidResponseError
	require.ErrorAs(t, err, &ire)
	require.Equal(t, http.StatusUnauthorized, ire.StatusCode)
}

func TestClientCredentialsClient(t *testing.T) {
	var issued int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		id, secret, ok := r.BasicAuth()
		if !ok {
			id, secret = r.Form.Get("client_id"), r.Form.Get("client_secret")
		}
		if id != "svc" || secret != "pw" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		atomic.AddInt32(&issued, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"cc-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	srv := httptest.NewServer(rpcServer(requireToken("cc-token")))
	defer srv.Close()

	hc := ClientCredentialsClient(context.Background(), tokenSrv.URL, "svc", "pw", "rpc")
	c, err := jsonrpc.NewClient(srv.URL, jsonrpc.WithHTTPClient(hc), jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 3; i++ {
		reply, err := c.Call(context.Background(), "whoami", nil)
		require.NoError(t, err)
		require.NoError(t, reply.Err())
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&issued), "token should be cached")
}
