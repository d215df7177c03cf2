package endpoint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStringRenderer(t *testing.T) {
	tests := []struct {
		name       string
		renderer   StringRenderer
		preset     string
		wantStatus int
		wantType   string
		wantBody   string
	}{
		{"defaults", StringRenderer{Body: "hello"}, "", 200, plainText, "hello"},
		{"status", StringRenderer{Status: http.StatusCreated, Body: "created"}, "", 201, plainText, "created"},
		{"no body", StringRenderer{Status: http.StatusNoContent}, "", 204, plainText, ""},
		{"content type", StringRenderer{Body: "{}", ContentType: "application/json"}, "", 200, "application/json", "{}"},
		{"preset header wins", StringRenderer{Body: "ok", ContentType: "application/json"}, "text/custom", 200, "text/custom", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if tt.preset != "" {
				rec.Header().Set("Content-Type", tt.preset)
			}
			if err := tt.renderer.Render(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil)); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}
