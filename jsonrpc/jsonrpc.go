package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnehpets/jrpc/endpoint"
	"github.com/mnehpets/jrpc/internal/log"
)

// DefaultBodyLimit caps the size of a request body read by Handler.
const DefaultBodyLimit = 5 * 1024 * 1024

const tracerName = "github.com/mnehpets/jrpc/jsonrpc"

// HandlerFunc implements one RPC method. params is the raw "params" member,
// nil when the request carried none. The result must be JSON-encodable.
//
// Returning a *JSONRPCError selects the error sent to the caller, subject to
// CustomError band policy. Other errors go through the endpoint's
// ErrorMapper and default to Internal error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// ErrorMapper translates a handler error into a JSON-RPC error. It returns
// nil for errors it does not recognise.
type ErrorMapper func(err error) *JSONRPCError

// Observer is notified once per dispatched request. method is empty when
// the request did not resolve to a registered method; code is 0 on success.
type Observer interface {
	Observe(method string, code int, elapsed time.Duration)
}

// rpcMethod is a registered method: its handler and optional params schema.
type rpcMethod struct {
	name    string
	handler HandlerFunc
	params  *Schema
}

// JSONRPCEndpoint dispatches JSON-RPC requests to registered methods.
// The method table is fixed by NewEndpoint and read without locking.
// Use endpoint.Handler(e.Endpoint, processors...) or e.Handler to serve it.
type JSONRPCEndpoint struct {
	methods   map[string]*rpcMethod
	mapErr    ErrorMapper
	logger    log15.Logger
	observer  Observer
	tracer    trace.Tracer
	detail    bool
	bodyLimit int64
}

// Option configures a JSONRPCEndpoint.
type Option func(*JSONRPCEndpoint)

// Method registers handler under name. When params is non-nil, requests are
// checked against it before the handler runs and rejected with Invalid
// params on mismatch. Registering a name twice panics.
func Method(name string, handler HandlerFunc, params *Schema) Option {
	return func(e *JSONRPCEndpoint) {
		if handler == nil {
			panic("jsonrpc: nil handler for method: " + name)
		}
		if _, exists := e.methods[name]; exists {
			panic("jsonrpc: method name collision: " + name)
		}
		e.methods[name] = &rpcMethod{name: name, handler: handler, params: params}
	}
}

// WithErrorMapper installs the policy used for handler errors that are not
// *JSONRPCError values.
func WithErrorMapper(m ErrorMapper) Option {
	return func(e *JSONRPCEndpoint) {
		e.mapErr = m
	}
}

// WithLogger replaces the endpoint logger.
func WithLogger(l log15.Logger) Option {
	return func(e *JSONRPCEndpoint) {
		e.logger = l
	}
}

// WithObserver installs a per-request observer, typically a metrics
// collector.
func WithObserver(o Observer) Option {
	return func(e *JSONRPCEndpoint) {
		e.observer = o
	}
}

// WithTracer replaces the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *JSONRPCEndpoint) {
		e.tracer = t
	}
}

// WithErrorDetail controls whether Invalid Request, Method not found and
// Invalid params errors carry the reason in their data member. Default on.
func WithErrorDetail(enabled bool) Option {
	return func(e *JSONRPCEndpoint) {
		e.detail = enabled
	}
}

// WithBodyLimit sets the request size limit applied by Handler.
func WithBodyLimit(n int64) Option {
	return func(e *JSONRPCEndpoint) {
		e.bodyLimit = n
	}
}

// NewEndpoint creates an endpoint from the given methods and options.
func NewEndpoint(opts ...Option) *JSONRPCEndpoint {
	e := &JSONRPCEndpoint{
		methods:   make(map[string]*rpcMethod),
		logger:    log.NewLog("jsonrpc"),
		tracer:    otel.Tracer(tracerName),
		detail:    true,
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Methods returns the registered method names in sorted order.
func (e *JSONRPCEndpoint) Methods() []string {
	names := make([]string, 0, len(e.methods))
	for name := range e.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs one request body through the protocol and returns the
// response envelope. It returns nil only when ctx was cancelled before a
// response was produced; the caller must then write nothing.
func (e *JSONRPCEndpoint) Dispatch(ctx context.Context, body []byte) *Response {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "jsonrpc", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	req, resp := e.dispatch(ctx, body)

	method := ""
	if req != nil {
		if _, ok := e.methods[req.Method]; ok {
			method = req.Method
			span.SetName("jsonrpc/" + method)
		}
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("request cancelled, dropping response", log.WithRequestID(ctx, "method", method, "err", err)...)
		return nil
	}

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
		span.SetStatus(codes.Error, resp.Error.Message)
	}
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", method),
		attribute.Int("rpc.jsonrpc.error_code", code),
	)

	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.Observe(method, code, elapsed)
	}
	e.logger.Debug("handled request", log.WithRequestID(ctx, "method", method, "code", code, "elapsed", elapsed)...)
	return resp
}

// dispatch walks the request through decode, envelope validation, method
// resolution, params validation and invocation. Each stage either advances
// or ends with an error envelope. The returned request is nil when the body
// never became a valid envelope.
func (e *JSONRPCEndpoint) dispatch(ctx context.Context, body []byte) (*Request, *Response) {
	if !json.Valid(body) {
		return nil, errorResponse(nil, ErrParse())
	}

	if err := RequestSchema.Validate(json.RawMessage(body)); err != nil {
		id := extractID(body)
		var v *Violation
		if errors.As(err, &v) {
			return nil, errorResponse(id, e.withDetail(ErrInvalidRequest(v.Error())))
		}
		e.logger.Error("envelope validation failed", log.WithRequestID(ctx, "err", err)...)
		return nil, errorResponse(id, ErrInternal())
	}

	req, err := decodeRequest(body)
	if err != nil {
		e.logger.Error("failed to decode validated envelope", log.WithRequestID(ctx, "err", err)...)
		return nil, errorResponse(extractID(body), ErrInternal())
	}

	m, ok := e.methods[req.Method]
	if !ok {
		return req, errorResponse(req.ID, e.withDetail(ErrMethodNotFound(req.Method)))
	}

	if m.params != nil {
		if err := m.params.Validate(req.Params); err != nil {
			var v *Violation
			if errors.As(err, &v) {
				return req, errorResponse(req.ID, e.withDetail(ErrInvalidParams(v.Error())))
			}
			e.logger.Error("params validation failed", log.WithRequestID(ctx, "method", m.name, "err", err)...)
			return req, errorResponse(req.ID, ErrInternal())
		}
	}

	result, err := e.invoke(ctx, m, req.Params)
	if err != nil {
		return req, errorResponse(req.ID, e.mapError(ctx, m.name, err))
	}

	raw, err := json.Marshal(result)
	if err != nil {
		e.logger.Error("failed to encode result", log.WithRequestID(ctx, "method", m.name, "err", err)...)
		return req, errorResponse(req.ID, ErrInternal())
	}
	return req, successResponse(req.ID, raw)
}

func (e *JSONRPCEndpoint) invoke(ctx context.Context, m *rpcMethod, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panic", log.WithRequestID(ctx, "method", m.name, "panic", r)...)
			result, err = nil, ErrInternal()
		}
	}()
	return m.handler(ctx, params)
}

// mapError converts a handler error into the error sent to the caller.
// Internal errors never carry data.
func (e *JSONRPCEndpoint) mapError(ctx context.Context, method string, err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) && e.mapErr != nil {
		rpcErr = e.mapErr(err)
	}
	if rpcErr == nil {
		e.logger.Error("unhandled handler error", log.WithRequestID(ctx, "method", method, "err", err)...)
		return ErrInternal()
	}
	mapped := CustomError(rpcErr.Code, rpcErr.Message)
	switch mapped.Code {
	case CodeInternalError:
		if rpcErr.Code != CodeInternalError {
			e.logger.Warn("handler used a reserved error code", log.WithRequestID(ctx, "method", method, "code", rpcErr.Code)...)
		}
	case CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams:
		mapped.Data = rpcErr.Data
		return e.withDetail(mapped)
	default:
		mapped.Data = rpcErr.Data
	}
	return mapped
}

func (e *JSONRPCEndpoint) withDetail(err *JSONRPCError) *JSONRPCError {
	if !e.detail {
		err.Data = nil
	}
	return err
}

func decodeRequest(body []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// extractID recovers the id of a body that failed envelope validation, when
// it has one of the permitted id types.
func extractID(body []byte) interface{} {
	r := gjson.GetBytes(body, "id")
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	}
	return nil
}

// rpcParams captures the raw JSON-RPC request body.
// We defer parsing until inside the endpoint handler,
// as json-rpc requires different handling of json parsing
// errors than a plain json body parser.
type rpcParams struct {
	Body        []byte `body:"" maxLength:"0"`
	ContentType string `header:"Content-Type"`
}

// Endpoint is the endpoint function that processes JSON-RPC requests.
// Pass to endpoint.Handler() to create an http.Handler.
func (e *JSONRPCEndpoint) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	// Per JSON-RPC over HTTP, Content-Type must be application/json
	if params.ContentType != "" && !strings.HasPrefix(params.ContentType, "application/json") {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
	}

	resp := e.Dispatch(r.Context(), params.Body)
	if resp == nil {
		return nil, r.Context().Err()
	}
	return &endpoint.JSONRenderer{Status: http.StatusOK, Value: resp}, nil
}

// Handler serves e over HTTP with the configured body limit, running
// processors before dispatch.
func (e *JSONRPCEndpoint) Handler(processors ...endpoint.Processor) http.Handler {
	chain := append([]endpoint.Processor{endpoint.BodyLimit(e.bodyLimit)}, processors...)
	return endpoint.Handler(e.Endpoint, chain...)
}
