// Package auth provides processors that authenticate JSON-RPC callers and
// HTTP clients that present credentials to a protected endpoint.
//
// Server side, BearerProcessor verifies OIDC ID tokens and BasicProcessor
// checks bcrypt password hashes. Both store the authenticated Principal in
// the request context, where method handlers read it with
// PrincipalFromContext.
//
// Client side, StaticTokenClient and ClientCredentialsClient return
// *http.Client values for jsonrpc.WithHTTPClient.
package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Scheme names how a Principal authenticated.
type Scheme string

const (
	SchemeBearer Scheme = "bearer"
	SchemeBasic  Scheme = "basic"
)

// Principal is an authenticated caller.
type Principal struct {
	Scheme Scheme
	// Subject is the user name for basic auth, or "issuer:subject" for
	// bearer tokens.
	Subject string
	// Email is set only when the token carries a verified address.
	Email string
	// IDToken is the verified token for bearer auth.
	IDToken *oidc.IDToken
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by an auth processor.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// GetVerifiedEmail returns the email address from the ID Token if the email_verified claim is true.
// Returns empty string and false if not verified or email is missing.
func GetVerifiedEmail(token *oidc.IDToken) (string, bool) {
	if token == nil {
		return "", false
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := token.Claims(&claims); err != nil {
		return "", false
	}
	if !claims.EmailVerified || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

// GetStableID returns a stable identifier for the token's user.
// Format: "issuer:subject"
func GetStableID(token *oidc.IDToken) string {
	if token == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", token.Issuer, token.Subject)
}
