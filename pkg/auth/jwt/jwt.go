// Package jwt provides a JWT authenticator that validates HMAC-signed
// bearer tokens against a shared secret, with optional issuer checking
// and scope extraction.
package jwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/noctics/central/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the shared HMAC signing secret. Required.
	Secret string

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is
	// not validated.
	Issuer string

	// ScopesClaim is the JWT claim used for authorization scopes.
	// Default: "scope". The value can be a space-separated string or a
	// JSON array.
	ScopesClaim string
}

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	config Config
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	if cfg.ScopesClaim == "" {
		cfg.ScopesClaim = "scope"
	}
	return &Authenticator{config: cfg}
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it as an HMAC-signed JWT, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header, not a Bearer scheme, or the token
//     does not look like a JWT (API keys fall through to other voters)
//   - No: JWT present but invalid (expired, wrong issuer, bad signature)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	// A JWT has exactly three dot-separated segments; anything else is
	// some other bearer credential.
	if strings.Count(tokenStr, ".") != 2 {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	claims := jwtlib.MapClaims{}
	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if a.config.Issuer != "" {
		parserOpts = append(parserOpts, jwtlib.WithIssuer(a.config.Issuer))
	}

	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		return []byte(a.config.Secret), nil
	}, parserOpts...)
	if err != nil {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT: %w", err),
		}
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT has no sub claim"),
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Scopes:  extractScopes(claims[a.config.ScopesClaim]),
		},
	}
}

// extractScopes normalizes the scopes claim, which may be a
// space-separated string or an array of strings.
func extractScopes(claim any) []string {
	switch v := claim.(type) {
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	case []any:
		var scopes []string
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}
	return nil
}
