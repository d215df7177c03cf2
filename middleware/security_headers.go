package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mnehpets/jrpc/endpoint"
)

// SecurityHeadersProcessor sets response headers suited to a JSON API and,
// when configured, answers CORS for browser callers.
//
// Defaults from NewSecurityHeadersProcessor:
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains
//   - Referrer-Policy: no-referrer
//   - X-Content-Type-Options: nosniff
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Cache-Control: no-store
//   - Cross-Origin-Resource-Policy: same-origin
//
// CORS preflight (OPTIONS with Origin and Access-Control-Request-Method) is
// answered with 204 before the endpoint runs.
type SecurityHeadersProcessor struct {
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	// Zero disables the header.
	HSTSMaxAge int

	ReferrerPolicy            string
	ContentTypeOptions        bool
	ContentSecurityPolicy     string
	CacheControl              string
	CrossOriginResourcePolicy string

	// CORS is nil when cross-origin calls are not allowed.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowedOrigins lists allowed origins; "*" allows any origin unless
	// credentials are enabled.
	AllowedOrigins []string
	// AllowedMethods defaults to POST and OPTIONS.
	AllowedMethods []string
	// AllowedHeaders defaults to Accept, Authorization and Content-Type.
	AllowedHeaders []string
	ExposedHeaders []string
	// AllowCredentials permits cookies and Authorization headers.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// SecurityHeadersOption is a functional option for configuring SecurityHeadersProcessor.
type SecurityHeadersOption func(*SecurityHeadersProcessor)

// NewSecurityHeadersProcessor creates a SecurityHeadersProcessor with API defaults.
func NewSecurityHeadersProcessor(opts ...SecurityHeadersOption) *SecurityHeadersProcessor {
	p := &SecurityHeadersProcessor{
		HSTSMaxAge:                31536000, // 1 year
		ReferrerPolicy:            "no-referrer",
		ContentTypeOptions:        true,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
		CacheControl:              "no-store",
		CrossOriginResourcePolicy: "same-origin",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithHSTS sets the HSTS max-age. Zero disables the header.
func WithHSTS(maxAge int) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.HSTSMaxAge = maxAge
	}
}

// WithCORS allows the given origins to call the endpoint from a browser.
// An empty list leaves CORS disabled.
func WithCORS(origins ...string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		if len(origins) == 0 {
			p.CORS = nil
			return
		}
		p.CORS = &CORSConfig{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         3600,
		}
	}
}

// WithCORSConfig installs a full CORS configuration.
func WithCORSConfig(config *CORSConfig) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.CORS = config
	}
}

// Process implements endpoint.Processor.
func (p *SecurityHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next endpoint.NextFunc) error {
	h := w.Header()
	for _, kv := range p.headers() {
		if kv[1] != "" {
			h.Set(kv[0], kv[1])
		}
	}

	if p.CORS == nil || r.Header.Get("Origin") == "" {
		return next(w, r)
	}
	p.CORS.apply(h, r)
	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		// Preflight: answered here, the endpoint never sees it.
		return endpoint.Error(http.StatusNoContent, "", nil)
	}
	return next(w, r)
}

func (p *SecurityHeadersProcessor) headers() [][2]string {
	var hsts, nosniff string
	if p.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(p.HSTSMaxAge) + "; includeSubDomains"
	}
	if p.ContentTypeOptions {
		nosniff = "nosniff"
	}
	return [][2]string{
		{"Strict-Transport-Security", hsts},
		{"Referrer-Policy", p.ReferrerPolicy},
		{"X-Content-Type-Options", nosniff},
		{"Content-Security-Policy", p.ContentSecurityPolicy},
		{"Cache-Control", p.CacheControl},
		{"Cross-Origin-Resource-Policy", p.CrossOriginResourcePolicy},
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed. "*" never pairs with credentials.
func (c *CORSConfig) allowOrigin(origin string) string {
	for _, allowed := range c.AllowedOrigins {
		switch {
		case allowed == origin:
			return origin
		case allowed == "*" && !c.AllowCredentials:
			return "*"
		}
	}
	return ""
}

// apply sets the CORS headers for a request carrying an Origin.
func (c *CORSConfig) apply(h http.Header, r *http.Request) {
	h.Add("Vary", "Origin")
	if allow := c.allowOrigin(r.Header.Get("Origin")); allow != "" {
		h.Set("Access-Control-Allow-Origin", allow)
	}
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposedHeaders, ", "))
	}
	if r.Method != http.MethodOptions {
		return
	}
	if len(c.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(c.AllowedMethods, ", "))
	}
	if len(c.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(c.AllowedHeaders, ", "))
	}
	if c.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
}

var _ endpoint.Processor = (*SecurityHeadersProcessor)(nil)
