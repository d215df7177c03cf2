package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// StaticTokenClient returns an HTTP client that sends token as a bearer
// credential on every request.
func StaticTokenClient(ctx context.Context, token string) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

// ClientCredentialsClient returns an HTTP client that obtains tokens from
// tokenURL with the OAuth2 client credentials grant and refreshes them as
// they expire.
func ClientCredentialsClient(ctx context.Context, tokenURL, clientID, clientSecret string, scopes ...string) *http.Client {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return conf.Client(ctx)
}
