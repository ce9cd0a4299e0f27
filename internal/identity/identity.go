// Package identity authenticates storefront users from bearer tokens.
package identity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// User is an authenticated customer.
type User struct {
	ID    int64
	Email string
}

// Claims are the JWT claims issued to customers. The subject carries the
// numeric user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses token and returns the user it was issued to.
func (v *Verifier) Verify(token string) (User, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return User{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return User{}, errors.Wrapf(ErrInvalidToken, "bad subject %q", claims.Subject)
	}
	return User{ID: id, Email: claims.Email}, nil
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// TokenCookie carries the token for browser form posts.
const TokenCookie = "access_token"

// Middleware authenticates requests carrying an Authorization bearer token,
// or the TokenCookie when the header is absent. Requests with neither pass
// through as guests; an invalid token is reported through onError and the
// request stops there.
func Middleware(v *Verifier, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if header := r.Header.Get("Authorization"); header != "" {
				t, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					onError(w, r, errors.Wrap(ErrInvalidToken, "expected bearer scheme"))
					return
				}
				token = t
			} else if c, err := r.Cookie(TokenCookie); err == nil {
				token = c.Value
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
