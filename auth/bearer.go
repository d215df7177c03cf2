package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/inconshreveable/log15"

	"github.com/mnehpets/jrpc/endpoint"
	"github.com/mnehpets/jrpc/internal/log"
)

// TokenVerifier verifies a raw ID token. *oidc.IDTokenVerifier implements it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// BearerProcessor requires an "Authorization: Bearer <id token>" header
// carrying a token accepted by Verifier. Rejected requests get 401 and
// never reach the endpoint.
type BearerProcessor struct {
	Verifier TokenVerifier
	Realm    string
	Logger   log15.Logger
}

// NewBearerProcessor returns a BearerProcessor for v.
func NewBearerProcessor(v TokenVerifier) *BearerProcessor {
	return &BearerProcessor{Verifier: v, Realm: "jrpc", Logger: log.NewLog("auth")}
}

// Process implements endpoint.Processor.
func (p *BearerProcessor) Process(w http.ResponseWriter, r *http.Request, next endpoint.NextFunc) error {
	raw, ok := bearerToken(r)
	if !ok {
		return p.challenge(w, "")
	}
	token, err := p.Verifier.Verify(r.Context(), raw)
	if err != nil {
		p.Logger.Info("rejected bearer token", log.WithRequestID(r.Context(), "err", err)...)
		return p.challenge(w, "invalid_token")
	}

	principal := &Principal{
		Scheme:  SchemeBearer,
		Subject: GetStableID(token),
		IDToken: token,
	}
	principal.Email, _ = GetVerifiedEmail(token)
	return next(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

func (p *BearerProcessor) challenge(w http.ResponseWriter, code string) error {
	v := `Bearer realm="` + p.Realm + `"`
	if code != "" {
		v += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
	return endpoint.Error(http.StatusUnauthorized, "", nil)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

var _ endpoint.Processor = (*BearerProcessor)(nil)
