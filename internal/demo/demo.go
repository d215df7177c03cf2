// Package demo is a small JSON-RPC service used by the jrpc command and by
// end-to-end tests. Its err_* methods fail on purpose, one per error band.
package demo

import (
	"context"
	"encoding/json"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/mnehpets/jrpc/auth"
	"github.com/mnehpets/jrpc/jsonrpc"
)

var (
	errUnexpected = errors.New("unexpected failure")
	errAttribute  = errors.New("attribute missing")
	errLookup     = errors.New("lookup failed")
	errBadCode    = errors.New("reserved code")
	errBackend    = errors.New("backend unavailable")
)

// HelloParamsSchema requires params to be an object with a string data
// member.
var HelloParamsSchema = jsonrpc.MustCompileSchema(`{
	"type": "object",
	"properties": {
		"data": {"type": "string"}
	},
	"required": ["data"]
}`)

// HelloResultSchema describes the v_hello result.
var HelloResultSchema = jsonrpc.MustCompileSchema(`{
	"type": "object",
	"properties": {
		"status": {"enum": ["ok", "OK"]}
	},
	"required": ["status"]
}`)

type HelloParams struct {
	Data string `json:"data"`
}

type HelloResult struct {
	Status string `json:"status"`
}

// Methods returns the demo method table. Pass it, together with MapError,
// to jsonrpc.NewEndpoint.
func Methods() []jsonrpc.Option {
	return []jsonrpc.Option{
		jsonrpc.Method("hello", hello, nil),
		jsonrpc.Method("v_hello", jsonrpc.Typed(vHello), HelloParamsSchema),
		jsonrpc.Method("whoami", jsonrpc.Typed(whoami), nil),
		jsonrpc.Method("err_exc", failWith(errUnexpected), nil),
		jsonrpc.Method("err_reserved", failWith(errBadCode), nil),
		jsonrpc.Method("err_gt", failWith(errAttribute), nil),
		jsonrpc.Method("err_lt", failWith(errLookup), nil),
		jsonrpc.Method("err_server", failWith(errBackend), nil),
	}
}

// NewEndpoint returns an endpoint serving the demo methods.
func NewEndpoint(logger log15.Logger, opts ...jsonrpc.Option) *jsonrpc.JSONRPCEndpoint {
	all := append(Methods(), jsonrpc.WithErrorMapper(MapError), jsonrpc.WithLogger(logger))
	return jsonrpc.NewEndpoint(append(all, opts...)...)
}

func hello(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return map[string]string{"a": "b"}, nil
}

func vHello(_ context.Context, p HelloParams) (HelloResult, error) {
	if p.Data == "TEST" {
		return HelloResult{Status: "OK"}, nil
	}
	return HelloResult{Status: "ok"}, nil
}

type identity struct {
	Scheme  string `json:"scheme"`
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

func whoami(ctx context.Context, _ struct{}) (*identity, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return &identity{Scheme: string(p.Scheme), Subject: p.Subject, Email: p.Email}, nil
}

func failWith(err error) jsonrpc.HandlerFunc {
	return func(_ context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, errors.WithStack(err)
	}
}

// MapError assigns the demo failures their error codes. Codes in the
// reserved range are forced to Internal error by the endpoint.
func MapError(err error) *jsonrpc.JSONRPCError {
	switch errors.Cause(err) {
	case errAttribute:
		return jsonrpc.NewError(-31999, "Custom error gt")
	case errLookup:
		return jsonrpc.NewError(-32769, "Custom error lt")
	case errBadCode:
		return jsonrpc.NewError(-32768, "Bad code")
	case errBackend:
		return jsonrpc.NewError(-32000, "")
	}
	return nil
}
