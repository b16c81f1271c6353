// Package auth verifies bearer tokens and derives caller identity.
package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type userKey struct{}

type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Verify checks an HMAC-signed token and returns its subject as the user id.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.Join(ErrInvalidToken, errors.New("'sub' claim missing or not a string"))
	}
	return sub, nil
}

// Issue signs a token for userID. Used by tooling and tests.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the authenticated user of ctx, or "".
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}

// ClientIP picks the originating address: the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func ClientIP(header http.Header, remoteAddr string) string {
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
