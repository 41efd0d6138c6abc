package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a session token cannot be decoded.
var ErrMalformed = errors.New("malformed session token")

// Claims is the subset of the backend session token the client cares about.
// The backend signs tokens with a secret the client never sees, so claims are
// read without signature verification and are only used as hints.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	ID     string `json:"id,omitempty"`
	jwtlib.RegisteredClaims
}

// Subject returns the first non-empty user identifier carried by the token.
func (c *Claims) Subject() string {
	for _, v := range []string{c.UserID, c.ID, c.RegisteredClaims.Subject} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Expiry returns the expiry time, or zero when the token does not carry one.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the token expired before now. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !now.Before(exp)
}

// Inspect decodes a token's claims without verifying its signature.
func Inspect(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
		tokenStr = strings.TrimSpace(tokenStr[7:])
	}
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
