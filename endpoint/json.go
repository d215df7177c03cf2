package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// JSONRenderer answers with Value encoded as JSON, HTML unescaped. The
// encoding happens before anything is written, so a value that cannot be
// encoded leaves the response untouched and the handler answers 500.
// Content-Type is always application/json; Status defaults to 200.
type JSONRenderer struct {
	Status int
	Value  interface{}
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jr.Value); err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	if jr.Status == 0 {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(jr.Status)
	}
	_, err := buf.WriteTo(w)
	return err
}
