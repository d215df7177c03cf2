package jsonrpc

import (
	"fmt"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Bounds of the code bands. Both intervals are closed.
const (
	CodeReservedMin    = -32768
	CodeReservedMax    = -32000
	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000
)

const (
	MessageParseError     = "Parse error"
	MessageInvalidRequest = "Invalid Request"
	MessageMethodNotFound = "Method not found"
	MessageInvalidParams  = "Invalid params"
	MessageInternalError  = "Internal error"
	MessageServerError    = "Server error"
)

var fixedMessages = map[int]string{
	CodeParseError:     MessageParseError,
	CodeInvalidRequest: MessageInvalidRequest,
	CodeMethodNotFound: MessageMethodNotFound,
	CodeInvalidParams:  MessageInvalidParams,
	CodeInternalError:  MessageInternalError,
}

// Band classifies an error code.
type Band int

const (
	// BandApplication is any code outside the reserved range.
	BandApplication Band = iota
	// BandReserved holds the five pre-defined protocol errors.
	BandReserved
	// BandServer is the implementation-defined server error range.
	BandServer
)

func (b Band) String() string {
	switch b {
	case BandReserved:
		return "reserved"
	case BandServer:
		return "server"
	default:
		return "application"
	}
}

// JSONRPCError is the error member of an error response. It implements
// error so handlers can return it directly.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (%d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Is matches any *JSONRPCError with the same code, so
// errors.Is(err, ErrMethodNotFound("")) works regardless of message or data.
func (e *JSONRPCError) Is(target error) bool {
	t, ok := target.(*JSONRPCError)
	return ok && t.Code == e.Code
}

// WithData returns a copy of e carrying data.
func (e *JSONRPCError) WithData(data interface{}) *JSONRPCError {
	c := *e
	c.Data = data
	return &c
}

// Band reports which code band e belongs to.
func (e *JSONRPCError) Band() Band {
	return CodeBand(e.Code)
}

// NewError returns an error with code and message as given. It applies no
// band policy; see CustomError.
func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// CodeBand classifies code.
func CodeBand(code int) Band {
	switch {
	case code >= CodeServerErrorMin && code <= CodeServerErrorMax:
		return BandServer
	case code >= CodeReservedMin && code <= CodeReservedMax:
		return BandReserved
	default:
		return BandApplication
	}
}

// CustomError builds an error for a caller-chosen code, keeping the reserved
// range for protocol use:
//   - the five pre-defined codes are kept; an empty message becomes the
//     canonical one;
//   - codes in [-32099, -32000] are server errors, kept verbatim; an empty
//     message becomes "Server error";
//   - any other code in [-32768, -32100] is forced to -32603 "Internal error";
//   - all remaining codes pass through unchanged.
func CustomError(code int, message string) *JSONRPCError {
	if msg, ok := fixedMessages[code]; ok {
		if message == "" {
			message = msg
		}
		return NewError(code, message)
	}
	switch CodeBand(code) {
	case BandServer:
		if message == "" {
			message = MessageServerError
		}
		return NewError(code, message)
	case BandReserved:
		return ErrInternal()
	}
	return NewError(code, message)
}

// BuildError returns the error envelope for code and message under the
// CustomError band policy.
func BuildError(code int, message string, id interface{}) *Response {
	return errorResponse(id, CustomError(code, message))
}

// ErrParse is the error for a body that is not well-formed JSON.
func ErrParse() *JSONRPCError {
	return NewError(CodeParseError, MessageParseError)
}

// ErrInvalidRequest is the error for a body that is not a request envelope.
func ErrInvalidRequest(data interface{}) *JSONRPCError {
	return &JSONRPCError{Code: CodeInvalidRequest, Message: MessageInvalidRequest, Data: data}
}

// ErrMethodNotFound is the error for an unregistered method.
func ErrMethodNotFound(method string) *JSONRPCError {
	e := NewError(CodeMethodNotFound, MessageMethodNotFound)
	if method != "" {
		e.Data = method
	}
	return e
}

// ErrInvalidParams is the error for params rejected by the method.
func ErrInvalidParams(data interface{}) *JSONRPCError {
	return &JSONRPCError{Code: CodeInvalidParams, Message: MessageInvalidParams, Data: data}
}

// ErrInternal is the catch-all error. It never carries data.
func ErrInternal() *JSONRPCError {
	return NewError(CodeInternalError, MessageInternalError)
}
