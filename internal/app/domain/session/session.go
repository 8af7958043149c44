// Package session models the authentication state of the wallet process.
package session

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization role carried by a session token.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// Session is the current authentication state. Role is always derived from
// Token; the two are set and cleared together.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Role          Role   `json:"role"`
	Token         string `json:"token"`
}

// Claims is the JWT claim set issued by the wallet backend.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// FromToken builds an authenticated session from a bearer token. The role is
// read from the token's claims at this moment and never inferred elsewhere.
// Signature verification is the issuing server's concern; the client only
// decodes the claim set.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, fmt.Errorf("token is required")
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}

	return Session{
		Authenticated: true,
		Role:          parseRole(claims.Role),
		Token:         token,
	}, nil
}

// Anonymous is the cleared session state.
func Anonymous() Session {
	return Session{}
}

func parseRole(raw string) Role {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(RoleUser):
		return RoleUser
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleNone
	}
}
