// Package jsonrpc implements JSON-RPC 2.0 over HTTP on top of the endpoint
// package: a server endpoint that validates and dispatches requests, and a
// client that correlates and validates replies.
//
// This package implements the JSON-RPC 2.0 specification (https://www.jsonrpc.org/specification)
// and JSON-RPC over HTTP (https://www.simple-is-better.org/json-rpc/transport_http.html).
// Batch requests are not supported and are answered with Invalid Request.
//
// # Server
//
// Register methods when creating the endpoint and serve it over HTTP:
//
//	var addSchema = jsonrpc.MustCompileSchema(`{
//	    "type": "object",
//	    "required": ["a", "b"],
//	    "properties": {"a": {"type": "integer"}, "b": {"type": "integer"}}
//	}`)
//
//	type AddParams struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//
//	e := jsonrpc.NewEndpoint(
//	    jsonrpc.Method("add", jsonrpc.Typed(func(ctx context.Context, p AddParams) (int, error) {
//	        return p.A + p.B, nil
//	    }), addSchema),
//	)
//	http.Handle("/rpc", e.Handler())
//
// Every request is answered with HTTP 200 and exactly one envelope; failures
// are carried in the error member. The request passes through these stages,
// any of which may end it with an error:
//
//  1. Parse: the body must be JSON (Parse error, id null).
//  2. Envelope: the body must match RequestSchema (Invalid Request).
//  3. Method: the method must be registered (Method not found).
//  4. Params: params must match the method's schema, if any (Invalid params).
//  5. Invoke: the handler runs; a panic becomes Internal error.
//  6. Respond: the result is encoded with the request's id.
//
// If the request context is cancelled before the response is written, no
// response is written at all.
//
// # Errors
//
// Handlers may return a *JSONRPCError to choose the error sent. Codes go
// through CustomError, which keeps the reserved range for protocol use:
//
//	return nil, jsonrpc.CustomError(-32001, "backend unavailable") // server error, kept
//	return nil, jsonrpc.CustomError(-32200, "nope")                // reserved, becomes -32603
//	return nil, jsonrpc.CustomError(42, "out of stock")            // application error, kept
//
// Any other error goes through the ErrorMapper installed with
// WithErrorMapper; errors it does not map become Internal error and are
// logged, not sent.
//
// # Client
//
//	c, err := jsonrpc.NewClient("http://localhost:8080/rpc", jsonrpc.WithTimeout(5*time.Second))
//	defer c.Close()
//	reply, err := c.Call(ctx, "add", AddParams{A: 1, B: 2})
//	if err != nil {
//	    // transport failure, timeout or invalid reply
//	}
//	var sum int
//	if err := reply.Decode(&sum); err != nil {
//	    // server answered with an error envelope
//	}
//
// # Processor Integration
//
// Processors run before dispatch and may reject a request with an HTTP
// error instead of a JSON-RPC error:
//
//	http.Handle("/rpc", e.Handler(authProcessor, loggingProcessor))
package jsonrpc
