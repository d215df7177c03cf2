package jsonrpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
)

// Version is the only protocol version accepted and emitted.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
//
// ID holds the decoded id: string, json.Number, bool or nil.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

// IsError reports whether r is an error envelope.
func (r *Response) IsError() bool {
	return r != nil && r.Error != nil
}

func successResponse(id interface{}, result json.RawMessage) *Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

func errorResponse(id interface{}, err *JSONRPCError) *Response {
	return &Response{JSONRPC: Version, Error: err, ID: id}
}

const anyJSON = `{"anyOf": [
	{"type": "array"},
	{"type": "boolean"},
	{"type": "integer"},
	{"type": "null"},
	{"type": "number"},
	{"type": "object"},
	{"type": "string"}
]}`

const idJSON = `{"anyOf": [
	{"type": "null"},
	{"type": "number"},
	{"type": "string"},
	{"type": "boolean"}
]}`

const versionJSON = `{"type": "string", "pattern": "^2\\.0$"}`

// RequestSchema is the structural shape of a request envelope.
var RequestSchema = MustCompileSchema(`{
	"type": "object",
	"properties": {
		"jsonrpc": ` + versionJSON + `,
		"method": {"type": "string"},
		"params": ` + anyJSON + `,
		"id": ` + idJSON + `
	},
	"required": ["jsonrpc", "method", "id"]
}`)

// SuccessSchema is the structural shape of a success response envelope.
var SuccessSchema = MustCompileSchema(`{
	"type": "object",
	"properties": {
		"jsonrpc": ` + versionJSON + `,
		"result": ` + anyJSON + `,
		"id": ` + idJSON + `
	},
	"required": ["jsonrpc", "result", "id"],
	"not": {"required": ["error"]}
}`)

// ErrorSchema is the structural shape of an error response envelope.
var ErrorSchema = MustCompileSchema(`{
	"type": "object",
	"properties": {
		"jsonrpc": ` + versionJSON + `,
		"error": {
			"type": "object",
			"properties": {
				"code": {"type": "integer"},
				"message": {"type": "string"},
				"data": ` + anyJSON + `
			},
			"required": ["code", "message"]
		},
		"id": ` + idJSON + `
	},
	"required": ["jsonrpc", "error", "id"],
	"not": {"required": ["result"]}
}`)

// normalizeID maps an id to the form it takes after a JSON round trip, with
// numbers as json.Number. Go integer and float ids compare equal to the
// decoded number with the same text.
func normalizeID(id interface{}) (interface{}, error) {
	switch v := id.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	}
	b, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return decodeValue(b)
}

// SameID reports whether a and b are the same correlation id. Comparison is
// type-sensitive: 1 and "1" differ, as do true and "true".
func SameID(a, b interface{}) bool {
	na, err := normalizeID(a)
	if err != nil {
		return false
	}
	nb, err := normalizeID(b)
	if err != nil {
		return false
	}
	if x, ok := na.(json.Number); ok {
		y, ok := nb.(json.Number)
		return ok && sameNumber(x, y)
	}
	return reflect.DeepEqual(na, nb)
}

// sameNumber compares numbers by exact value, so 1e2 and 100 are the same
// id while integers beyond float64 precision stay distinct.
func sameNumber(x, y json.Number) bool {
	if x == y {
		return true
	}
	rx, okx := new(big.Rat).SetString(string(x))
	ry, oky := new(big.Rat).SetString(string(y))
	return okx && oky && rx.Cmp(ry) == 0
}

// decodeValue decodes a single JSON value keeping numbers as json.Number.
func decodeValue(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
