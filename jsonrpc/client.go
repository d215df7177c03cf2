package jsonrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/mnehpets/jrpc/internal/log"
)

var (
	// ErrTimeout is returned when a call's deadline passes before the reply
	// arrives. Such errors also match context.DeadlineExceeded.
	ErrTimeout = errors.New("jsonrpc: call timed out")
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("jsonrpc: client closed")
)

// InvalidResponseError reports a reply that cannot be accepted: a non-2xx
// status, a malformed body, a body that is not a response envelope, an id
// that does not match the request, or a result that fails its schema.
type InvalidResponseError struct {
	// StatusCode is the HTTP status when the failure was a bad status.
	StatusCode int
	Reason     string
	Err        error
}

func (e *InvalidResponseError) Error() string {
	msg := "jsonrpc: invalid response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// InternalError reports a local failure that is not the server's fault,
// such as a malformed result schema.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "jsonrpc: internal error: " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Reply is the outcome of a call that reached the server. Error is set when
// the server answered with an error envelope; callers must check it before
// using Result.
type Reply struct {
	ID     interface{}
	Result json.RawMessage
	Error  *JSONRPCError
}

// Err returns the server error, or nil for a successful reply.
func (r *Reply) Err() error {
	if r.Error != nil {
		return r.Error
	}
	return nil
}

// Decode unmarshals the result into v, or returns the server error.
func (r *Reply) Decode(v interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	return json.Unmarshal(r.Result, v)
}

// Transport posts one encoded request and returns the raw reply.
type Transport interface {
	Post(ctx context.Context, url string, body []byte, header http.Header) (status int, reply []byte, err error)
}

// HTTPTransport is the Transport used by default.
type HTTPTransport struct {
	Client *http.Client
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client == nil {
		return http.DefaultClient
	}
	return t.Client
}

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header = header.Clone()

	resp, err := t.client().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read reply")
	}
	return resp.StatusCode, reply, nil
}

// CloseIdleConnections releases pooled connections held by the client.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client().CloseIdleConnections()
}

// Client issues JSON-RPC calls to one URL. It is safe for concurrent use.
type Client struct {
	url       string
	transport Transport
	header    http.Header
	timeout   time.Duration
	newID     func() interface{}
	encode    func(v interface{}) ([]byte, error)
	logger    log15.Logger
	closed    atomic.Bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sends calls through hc, for example one built by
// oauth2.NewClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.transport = &HTTPTransport{Client: hc}
	}
}

// WithTransport replaces the transport entirely.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHeader adds a header sent with every call.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithTimeout bounds every call. Zero means calls are bounded only by their
// context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithIDGenerator replaces the generator used for calls without an explicit
// id. Generated ids must be unique across concurrent calls.
func WithIDGenerator(gen func() interface{}) ClientOption {
	return func(c *Client) {
		c.newID = gen
	}
}

// WithEncoder replaces json.Marshal for encoding request envelopes.
func WithEncoder(encode func(v interface{}) ([]byte, error)) ClientOption {
	return func(c *Client) {
		c.encode = encode
	}
}

// WithClientLogger replaces the client logger.
func WithClientLogger(l log15.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient returns a client for the JSON-RPC endpoint at rawURL.
func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "jsonrpc: invalid url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("jsonrpc: unsupported url scheme %q", u.Scheme)
	}

	c := &Client{
		url:       rawURL,
		transport: &HTTPTransport{Client: &http.Client{}},
		header:    make(http.Header),
		newID:     randomID,
		encode:    json.Marshal,
		logger:    log.NewLog("jsonrpc/client"),
	}
	c.header.Set("Content-Type", "application/json")
	c.header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// randomID returns a random 128-bit token in hex.
func randomID() interface{} {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Close releases the client's pooled connections. Calls made after Close
// fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

type callOptions struct {
	id     interface{}
	schema *Schema
}

// CallOption configures a single call.
type CallOption func(*callOptions)

// WithID sets the request id. A nil id means one is generated.
func WithID(id interface{}) CallOption {
	return func(o *callOptions) {
		o.id = id
	}
}

// WithResultSchema checks the result of a successful reply against s.
func WithResultSchema(s *Schema) CallOption {
	return func(o *callOptions) {
		o.schema = s
	}
}

// Call invokes method with params and waits for the correlated reply.
//
// A nil error with reply.Error set means the server answered with an error
// envelope. A non-nil error is a local failure: *InvalidResponseError,
// *InternalError, ErrTimeout, ErrClientClosed or a transport error.
func (c *Client) Call(ctx context.Context, method string, params interface{}, opts ...CallOption) (*Reply, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	id := co.id
	if id == nil {
		id = c.newID()
	}

	body, err := c.encodeRequest(method, params, id)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("calling", "method", method, "id", id)
	status, reply, err := c.transport.Post(ctx, c.url, body, c.header)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, method, ctxErr)
		}
		return nil, errors.Wrapf(err, "jsonrpc: call %s", method)
	}
	if status < 200 || status > 299 {
		return nil, &InvalidResponseError{
			StatusCode: status,
			Reason:     fmt.Sprintf("server returned status %d", status),
		}
	}

	return correlate(id, reply, co.schema)
}

func (c *Client) encodeRequest(method string, params, id interface{}) ([]byte, error) {
	req := Request{JSONRPC: Version, Method: method, ID: id}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "jsonrpc: encode params")
		}
		req.Params = raw
	}
	body, err := c.encode(req)
	if err != nil {
		return nil, errors.Wrap(err, "jsonrpc: encode request")
	}
	return body, nil
}

// correlate classifies a reply body and checks it against the request id
// and the optional result schema. Error envelopes are returned as they are,
// without id correlation.
func correlate(id interface{}, body []byte, schema *Schema) (*Reply, error) {
	if !json.Valid(body) {
		return nil, &InvalidResponseError{Reason: "reply is not valid JSON"}
	}

	err := ErrorSchema.Validate(json.RawMessage(body))
	if err == nil {
		resp, err := decodeResponse(body)
		if err != nil {
			return nil, &InvalidResponseError{Reason: "undecodable error envelope", Err: err}
		}
		return &Reply{ID: resp.ID, Error: resp.Error}, nil
	}
	var v *Violation
	if !errors.As(err, &v) {
		return nil, &InvalidResponseError{Reason: "cannot classify reply", Err: err}
	}

	if err := SuccessSchema.Validate(json.RawMessage(body)); err != nil {
		return nil, &InvalidResponseError{Reason: "reply is not a response envelope", Err: err}
	}
	resp, err := decodeResponse(body)
	if err != nil {
		return nil, &InvalidResponseError{Reason: "undecodable response envelope", Err: err}
	}

	if !SameID(id, resp.ID) {
		return nil, &InvalidResponseError{
			Reason: fmt.Sprintf("response id %s does not match request id %s", formatID(resp.ID), formatID(id)),
		}
	}

	if schema != nil {
		if err := schema.Validate(resp.Result); err != nil {
			if errors.As(err, &v) {
				return nil, &InvalidResponseError{Reason: "result does not match schema", Err: err}
			}
			return nil, &InternalError{Err: err}
		}
	}

	return &Reply{ID: resp.ID, Result: resp.Result}, nil
}

func decodeResponse(body []byte) (*Response, error) {
	var resp Response
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// formatID renders an id as JSON so that 1 and "1" read differently.
func formatID(id interface{}) string {
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Sprintf("%v", id)
	}
	return string(b)
}
