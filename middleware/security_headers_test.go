package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/jrpc/endpoint"
)

func noop(http.ResponseWriter, *http.Request) error { return nil }

func TestNewSecurityHeadersProcessor_Defaults(t *testing.T) {
	p := NewSecurityHeadersProcessor()
	if p.HSTSMaxAge != 31536000 {
		t.Errorf("HSTSMaxAge: got %d, want %d", p.HSTSMaxAge, 31536000)
	}
	if p.ReferrerPolicy != "no-referrer" {
		t.Errorf("ReferrerPolicy: got %q", p.ReferrerPolicy)
	}
	if p.CORS != nil {
		t.Error("CORS should be nil by default")
	}
}

func TestSecurityHeadersProcessor_DefaultHeaders(t *testing.T) {
	p := NewSecurityHeadersProcessor()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)

	nextCalled := false
	err := p.Process(w, r, func(http.ResponseWriter, *http.Request) error {
		nextCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !nextCalled {
		t.Fatal("next was not called")
	}

	want := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"Referrer-Policy":              "no-referrer",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":                "no-store",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Access-Control-Allow-Origin should not be set by default")
	}
}

func TestSecurityHeadersProcessor_DisableHSTS(t *testing.T) {
	p := NewSecurityHeadersProcessor(WithHSTS(0))
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)

	if err := p.Process(w, r, noop); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security should be unset, got %q", got)
	}
}

func TestSecurityHeadersProcessor_CORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"allowed", []string{"https://app.example"}, "https://app.example", "https://app.example"},
		{"wildcard", []string{"*"}, "https://any.example", "*"},
		{"not allowed", []string{"https://app.example"}, "https://evil.example", ""},
		{"no origin", []string{"*"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSecurityHeadersProcessor(WithCORS(tt.origins...))
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if err := p.Process(w, r, noop); err != nil {
				t.Fatalf("Process returned error: %v", err)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin: got %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestSecurityHeadersProcessor_CORS_WildcardWithCredentials(t *testing.T) {
	p := NewSecurityHeadersProcessor(WithCORSConfig(&CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	}))
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	r.Header.Set("Origin", "https://app.example")

	if err := p.Process(w, r, noop); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("wildcard must not be sent with credentials, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials: got %q", got)
	}
}

func TestSecurityHeadersProcessor_CORS_Preflight(t *testing.T) {
	h := endpoint.Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		t.Fatal("endpoint must not run for preflight")
		return nil, nil
	}, NewSecurityHeadersProcessor(WithCORS("https://app.example")))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Accept, Authorization, Content-Type" {
		t.Errorf("Access-Control-Allow-Headers: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Access-Control-Max-Age: got %q", got)
	}
}
