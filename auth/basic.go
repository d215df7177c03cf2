package auth

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mnehpets/jrpc/endpoint"
)

// dummyHash is compared against when the user is unknown so that unknown
// and known users take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("jrpc-dummy-password"), bcrypt.MinCost)

// BasicProcessor requires HTTP basic credentials matching one of Users,
// a map from user name to bcrypt hash.
type BasicProcessor struct {
	Users map[string][]byte
	Realm string
}

// NewBasicProcessor returns a BasicProcessor for users.
func NewBasicProcessor(users map[string][]byte) *BasicProcessor {
	return &BasicProcessor{Users: users, Realm: "jrpc"}
}

// Process implements endpoint.Processor.
func (p *BasicProcessor) Process(w http.ResponseWriter, r *http.Request, next endpoint.NextFunc) error {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return p.challenge(w)
	}
	hash, known := p.Users[user]
	if !known {
		hash = dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil || !known {
		return p.challenge(w)
	}
	principal := &Principal{Scheme: SchemeBasic, Subject: user}
	return next(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

func (p *BasicProcessor) challenge(w http.ResponseWriter) error {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+p.Realm+`", charset="UTF-8"`)
	return endpoint.Error(http.StatusUnauthorized, "", nil)
}

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

// ParseUsers parses "name:hash" entries as produced by HashPassword.
func ParseUsers(entries []string) (map[string][]byte, error) {
	users := make(map[string][]byte, len(entries))
	for _, e := range entries {
		name, hash, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || name == "" || hash == "" {
			return nil, errors.Errorf("invalid user entry %q, want name:bcrypt-hash", e)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.Wrapf(err, "user %q", name)
		}
		if _, dup := users[name]; dup {
			return nil, errors.Errorf("duplicate user %q", name)
		}
		users[name] = []byte(hash)
	}
	return users, nil
}

var _ endpoint.Processor = (*BasicProcessor)(nil)
