package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
)

// Typed adapts a function taking decoded params to a HandlerFunc. Absent or
// null params leave P at its zero value; params that do not decode into P
// are rejected with Invalid params.
//
//	jsonrpc.Method("add", jsonrpc.Typed(func(ctx context.Context, p AddParams) (int, error) {
//	    return p.A + p.B, nil
//	}), addSchema)
func Typed[P, R any](fn func(ctx context.Context, params P) (R, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p P
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, ErrInvalidParams(err.Error())
			}
		}
		return fn(ctx, p)
	}
}
