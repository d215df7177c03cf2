package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"

	"github.com/mnehpets/jrpc/endpoint"
	"github.com/mnehpets/jrpc/internal/log"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// RequestLogProcessor tags each request with an id, echoes it in the
// response, and logs the request once the endpoint returns.
//
// An incoming X-Request-Id is reused when it is a valid uuid; otherwise a
// new one is generated.
type RequestLogProcessor struct {
	Logger log15.Logger
}

// NewRequestLogProcessor returns a processor logging to logger, or to the
// "http" module logger when logger is nil.
func NewRequestLogProcessor(logger log15.Logger) *RequestLogProcessor {
	if logger == nil {
		logger = log.NewLog("http")
	}
	return &RequestLogProcessor{Logger: logger}
}

// Process implements endpoint.Processor.
func (p *RequestLogProcessor) Process(w http.ResponseWriter, r *http.Request, next endpoint.NextFunc) error {
	id := r.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	ctx := log.ContextWithRequestID(r.Context(), id)
	start := time.Now()
	err := next(w, r.WithContext(ctx))

	kv := log.WithRequestID(ctx, "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "elapsed", time.Since(start))
	if err != nil {
		p.Logger.Info("request failed", append(kv, "status", endpoint.StatusOf(err), "err", err)...)
		return err
	}
	p.Logger.Debug("request served", kv...)
	return nil
}

var _ endpoint.Processor = (*RequestLogProcessor)(nil)
