// Package token inspects bearer tokens locally, without contacting the
// server. The client holds no signing key, so the payload is decoded
// unverified; signature checks are the server's job. Anything that cannot
// be decoded is treated as expired — fail closed, never fail open.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reviewly/authsession/internal/common"
)

var parser = jwt.NewParser()

// ExpiresAt decodes the token's exp claim. Returns ErrTokenMalformed when
// the token cannot be decoded or carries no usable expiry.
func ExpiresAt(tok string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", common.ErrTokenMalformed)
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's expiry is in the past. Malformed
// tokens are expired by definition.
func IsExpired(tok string) bool {
	return isExpiredAt(tok, time.Now())
}

func isExpiredAt(tok string, now time.Time) bool {
	exp, err := ExpiresAt(tok)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
