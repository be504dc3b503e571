// Package auth resolves the bearer credential of a request to a user identity.
// Tokens are issued elsewhere; this package only verifies them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated user of a connection, or anonymous when
// UserID is nil.
type Identity struct {
	UserID *uint
	Email  string
}

func Anonymous() Identity { return Identity{} }

func (i Identity) Authenticated() bool { return i.UserID != nil }

type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Parse verifies an HMAC signed token and reads the user id from the
// `user_id` claim, falling back to `id`.
func (r *Resolver) Parse(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	id, ok := userIDClaim(claims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	return Identity{UserID: &id, Email: email}, nil
}

// FromRequest resolves the request's credential. A missing or invalid token
// yields an anonymous identity; endpoints decide whether that is acceptable.
func (r *Resolver) FromRequest(req *http.Request) Identity {
	tokenString := TokenFromRequest(req)
	if tokenString == "" {
		return Anonymous()
	}
	id, err := r.Parse(tokenString)
	if err != nil {
		return Anonymous()
	}
	return id
}

// Issue signs a token for userID. Used by tests and local tooling.
func (r *Resolver) Issue(userID uint, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	return token.SignedString(r.secret)
}

// TokenFromRequest looks at the `token` query parameter, then an
// `authorization` query parameter, then the Authorization header. A "Bearer "
// prefix is accepted everywhere.
func TokenFromRequest(req *http.Request) string {
	q := req.URL.Query()
	for _, v := range []string{q.Get("token"), q.Get("authorization"), req.Header.Get("Authorization")} {
		if t := stripBearer(v); t != "" {
			return t
		}
	}
	return ""
}

func stripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

func userIDClaim(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"user_id", "id"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 && v == float64(uint(v)) {
				return uint(v), true
			}
		case string:
			if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
				return uint(n), true
			}
		}
	}
	return 0, false
}
