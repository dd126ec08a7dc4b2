package apikey

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/noctics/central/pkg/auth"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{Key: "key-one", Identity: auth.Identity{Subject: "svc-one"}},
		{Key: "key-two", Identity: auth.Identity{Subject: "svc-two", Scopes: []string{"turn"}}},
	})
}

func TestValidKey(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)
	req.Header.Set("Authorization", "Bearer key-two")

	result := a.Authenticate(context.Background(), req)
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want Yes", result.Decision)
	}
	if result.Identity.Subject != "svc-two" {
		t.Errorf("Subject = %q, want svc-two", result.Identity.Subject)
	}
	if len(result.Identity.Scopes) != 1 || result.Identity.Scopes[0] != "turn" {
		t.Errorf("Scopes = %v, want [turn]", result.Identity.Scopes)
	}
}

func TestInvalidKey(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")

	result := a.Authenticate(context.Background(), req)
	if result.Decision != auth.No {
		t.Errorf("Decision = %v, want No", result.Decision)
	}
}

func TestNoHeaderAbstains(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)

	result := a.Authenticate(context.Background(), req)
	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain", result.Decision)
	}
}

func TestNonBearerAbstains(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	result := a.Authenticate(context.Background(), req)
	if result.Decision != auth.Abstain {
		t.Errorf("Decision = %v, want Abstain", result.Decision)
	}
}

func TestEmptyBearerRejected(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)
	req.Header.Set("Authorization", "Bearer ")

	result := a.Authenticate(context.Background(), req)
	if result.Decision != auth.No {
		t.Errorf("Decision = %v, want No", result.Decision)
	}
}

func TestIdentityCopied(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("POST", "/v1/turn", nil)
	req.Header.Set("Authorization", "Bearer key-one")

	first := a.Authenticate(context.Background(), req)
	first.Identity.Subject = "mutated"

	second := a.Authenticate(context.Background(), req)
	if second.Identity.Subject != "svc-one" {
		t.Errorf("Subject = %q, stored identity was mutated", second.Identity.Subject)
	}
}
