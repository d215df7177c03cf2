// Package endpoint provides a small type-safe abstraction for building HTTP
// handlers.
//
// Request handling is split into three phases:
//
//  1. Unmarshal: the EndpointHandler decodes the request body and headers
//     into a typed parameters struct using struct tags.
//  2. Endpoint: the EndpointFunc receives the decoded parameters, runs the
//     business logic and returns a Renderer. It does not write the response.
//  3. Render: the returned Renderer writes the status, headers and body.
//
// Processors are chained in front of the EndpointFunc as middleware.
//
// When the request context is done by the time the pipeline finishes, the
// handler writes nothing: the client has gone away.
package endpoint

import (
	"errors"
	"io"
	"net/http"
)

var (
	errNilEndpoint  = errors.New("endpoint: nil EndpointFunc")
	errNilProcessor = errors.New("endpoint: nil processor")
	errNilRenderer  = errors.New("endpoint: nil renderer")
)

// EndpointError is an error carrying the HTTP status to answer with.
type EndpointError struct {
	Status int
	// Message is the response body. Empty means the status text.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.text()
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *EndpointError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if t := http.StatusText(e.Status); t != "" {
		return t
	}
	return "unknown error"
}

// Error returns an *EndpointError answering status with message. When err
// already is an *EndpointError it is returned unchanged.
func Error(status int, message string, err error) error {
	return newEndpointError(status, message, err)
}

func newEndpointError(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// StatusOf returns the status a handler answers err with: the
// *EndpointError status when valid, 500 otherwise, and 200 for nil.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil && ee.Status >= 100 && ee.Status <= 999 {
		return ee.Status
	}
	return http.StatusInternalServerError
}

// Renderer writes the response. It sets headers, calls WriteHeader and
// writes the body. An error before anything is written becomes a 500.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// NextFunc continues a processor chain.
type NextFunc = func(w http.ResponseWriter, r *http.Request) error

// Processor runs before the EndpointFunc. It either calls next, possibly
// with a derived request, or returns an error to stop the chain. It may set
// response headers but never writes the status or body.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next NextFunc) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next NextFunc) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next NextFunc) error {
	return f(w, r, next)
}

// EndpointFunc handles a request whose params were decoded by Unmarshal,
// returning the Renderer for the response.
type EndpointFunc[P any] func(w http.ResponseWriter, r *http.Request, params P) (Renderer, error)

// EndpointHandler serves an EndpointFunc behind Processors.
type EndpointHandler[P any] struct {
	Endpoint   EndpointFunc[P]
	Processors []Processor
}

// Handler returns an EndpointHandler for fn. P is inferred from fn.
func Handler[P any](fn EndpointFunc[P], processors ...Processor) *EndpointHandler[P] {
	return &EndpointHandler[P]{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc is Handler as an http.HandlerFunc.
func HandleFunc[P any](fn EndpointFunc[P], processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler[P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &startedWriter{ResponseWriter: w}
	err := h.chain()(sw, r)
	if err == nil || sw.started {
		// A response already under way cannot be replaced.
		return
	}
	if r.Context().Err() != nil {
		// Nobody is listening.
		return
	}
	writeError(w, err)
}

// startedWriter records whether a final status or any body has been sent.
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (sw *startedWriter) WriteHeader(status int) {
	if status >= 200 {
		sw.started = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *startedWriter) Write(b []byte) (int, error) {
	sw.started = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *startedWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// chain wraps invoke in the processors, first processor outermost.
func (h *EndpointHandler[P]) chain() NextFunc {
	next := h.invoke
	for i := len(h.Processors) - 1; i >= 0; i-- {
		p, inner := h.Processors[i], next
		if p == nil {
			return func(http.ResponseWriter, *http.Request) error { return errNilProcessor }
		}
		next = func(w http.ResponseWriter, r *http.Request) error {
			return p.Process(w, r, inner)
		}
	}
	return next
}

func (h *EndpointHandler[P]) invoke(w http.ResponseWriter, r *http.Request) error {
	if h.Endpoint == nil {
		return errNilEndpoint
	}
	// P must be a struct, or a pointer to one; Unmarshal enforces it.
	var params P
	if err := Unmarshal(r, &params); err != nil {
		return err
	}
	renderer, err := h.Endpoint(w, r, params)
	if err != nil {
		return err
	}
	if renderer == nil {
		return errNilRenderer
	}
	if c, ok := renderer.(io.Closer); ok {
		defer c.Close()
	}
	return renderer.Render(w, r)
}

// writeError answers err as plain text. Only *EndpointError messages reach
// the client; other errors get the status text.
func writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	message := http.StatusText(status)
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		message = ee.text()
	}
	http.Error(w, message, status)
}
