// Package auth inspects the client's JWT credentials. The client never
// verifies signatures (it has no secret); it only extracts the identity
// and expiry the server encoded, to know who it is and when to reconnect
// with fresh credentials.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id,omitempty"`
}

// Identity is the authenticated user derived from a token.
type Identity struct {
	UserID    int64
	ExpiresAt time.Time
}

// ParseIdentity extracts the user id and expiry from a JWT without
// verifying the signature. The user id comes from the user_id claim,
// falling back to a numeric subject.
func ParseIdentity(tokenString string) (Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("non-numeric subject %q", claims.Subject)
		}
		userID = id
	}
	if userID == 0 {
		return Identity{}, fmt.Errorf("token carries no user identity")
	}

	ident := Identity{UserID: userID}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}
	return ident, nil
}

// Expired reports whether the identity's token has an expiry in the past.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Before(now)
}
