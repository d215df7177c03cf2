package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mnehpets/jrpc/auth"
	"github.com/mnehpets/jrpc/internal/log"
	"github.com/mnehpets/jrpc/jsonrpc"
)

type DemoSuite struct {
	suite.Suite
	srv    *httptest.Server
	client *jsonrpc.Client
}

func (s *DemoSuite) SetupSuite() {
	s.srv = httptest.NewServer(NewEndpoint(log.Discard()).Handler())
	c, err := jsonrpc.NewClient(s.srv.URL, jsonrpc.WithClientLogger(log.Discard()))
	s.Require().NoError(err)
	s.client = c
}

func (s *DemoSuite) TearDownSuite() {
	s.client.Close()
	s.srv.Close()
}

func (s *DemoSuite) call(method string, params interface{}, opts ...jsonrpc.CallOption) *jsonrpc.Reply {
	reply, err := s.client.Call(context.Background(), method, params, opts...)
	s.Require().NoError(err)
	return reply
}

func (s *DemoSuite) TestHello() {
	var got map[string]string
	s.Require().NoError(s.call("hello", nil).Decode(&got))
	s.Equal(map[string]string{"a": "b"}, got)
}

func (s *DemoSuite) TestVHello() {
	tests := []struct {
		name   string
		id     interface{}
		data   string
		status string
	}{
		{"generated id", nil, "ok", "ok"},
		{"int id", 1234, "ok", "ok"},
		{"string id", "1", "TEST", "OK"},
		{"true id", true, "ok", "ok"},
		{"false id", false, "ok", "ok"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			reply := s.call("v_hello", HelloParams{Data: tt.data},
				jsonrpc.WithID(tt.id), jsonrpc.WithResultSchema(HelloResultSchema))
			var got HelloResult
			s.Require().NoError(reply.Decode(&got))
			s.Equal(tt.status, got.Status)
			if tt.id != nil {
				s.True(jsonrpc.SameID(tt.id, reply.ID), "id %v echoed as %v", tt.id, reply.ID)
			}
		})
	}
}

func (s *DemoSuite) TestVHello_InvalidParams() {
	for name, params := range map[string]interface{}{
		"missing":      nil,
		"wrong type":   map[string]int{"data": 1},
		"missing data": map[string]string{"other": "x"},
		"array":        []string{"ok"},
	} {
		s.Run(name, func() {
			reply := s.call("v_hello", params)
			s.Require().NotNil(reply.Error)
			s.Equal(jsonrpc.CodeInvalidParams, reply.Error.Code)
		})
	}
}

func (s *DemoSuite) TestErrors() {
	tests := []struct {
		method  string
		code    int
		message string
	}{
		{"not_found", jsonrpc.CodeMethodNotFound, jsonrpc.MessageMethodNotFound},
		{"err_exc", jsonrpc.CodeInternalError, jsonrpc.MessageInternalError},
		{"err_reserved", jsonrpc.CodeInternalError, jsonrpc.MessageInternalError},
		{"err_gt", -31999, "Custom error gt"},
		{"err_lt", -32769, "Custom error lt"},
		{"err_server", -32000, jsonrpc.MessageServerError},
	}
	for _, tt := range tests {
		s.Run(tt.method, func() {
			reply := s.call(tt.method, nil)
			s.Require().NotNil(reply.Error)
			s.Equal(tt.code, reply.Error.Code)
			s.Equal(tt.message, reply.Error.Message)
			if tt.code == jsonrpc.CodeInternalError {
				s.Nil(reply.Error.Data)
			}
		})
	}
}

func (s *DemoSuite) TestWhoami_Anonymous() {
	reply := s.call("whoami", nil)
	s.Require().NoError(reply.Err())
	s.Equal(json.RawMessage("null"), reply.Result)
}

func TestDemoSuite(t *testing.T) {
	suite.Run(t, new(DemoSuite))
}

func TestMethods(t *testing.T) {
	e := NewEndpoint(log.Discard())
	require.Equal(t,
		[]string{"err_exc", "err_gt", "err_lt", "err_reserved", "err_server", "hello", "v_hello", "whoami"},
		e.Methods())
}

func TestWhoami_Basic(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	basic := auth.NewBasicProcessor(map[string][]byte{"alice": hash})

	srv := httptest.NewServer(NewEndpoint(log.Discard()).Handler(basic))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice", "pw")

	c, err := jsonrpc.NewClient(srv.URL,
		jsonrpc.WithHeader("Authorization", req.Header.Get("Authorization")),
		jsonrpc.WithClientLogger(log.Discard()))
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Call(context.Background(), "whoami", nil)
	require.NoError(t, err)
	var got identity
	require.NoError(t, reply.Decode(&got))
	require.Equal(t, identity{Scheme: "basic", Subject: "alice"}, got)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(errUnexpected))
	require.Equal(t, -31999, MapError(errAttribute).Code)
	require.Equal(t, -32769, MapError(errLookup).Code)
}
