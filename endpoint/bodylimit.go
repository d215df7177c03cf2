package endpoint

import (
	"net/http"
)

// BodyLimit returns a Processor that caps the request body at n bytes.
// Reading past the cap makes Unmarshal fail with 413 Request Entity Too
// Large. n <= 0 disables the cap.
func BodyLimit(n int64) Processor {
	return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next NextFunc) error {
		if n > 0 && r.Body != nil && r.Body != http.NoBody {
			if r.ContentLength > n {
				return newEndpointError(http.StatusRequestEntityTooLarge, "", nil)
			}
			r.Body = http.MaxBytesReader(w, r.Body, n)
		}
		return next(w, r)
	})
}
