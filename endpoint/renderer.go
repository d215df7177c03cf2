package endpoint

import (
	"io"
	"net/http"
)

const plainText = "text/plain; charset=utf-8"

// StringRenderer answers with a fixed body, as used for health checks and
// plain error pages. Status defaults to 200 and ContentType to plain text;
// a Content-Type already set by a processor wins.
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", firstNonEmpty(sr.ContentType, plainText))
	}
	if sr.Status == 0 {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(sr.Status)
	}
	if len(sr.Body) == 0 {
		return nil
	}
	_, err := io.WriteString(w, sr.Body)
	return err
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
