package security

import (
	"testing"
	"time"

	"github.com/prism-search/prism/internal/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		APIKeys: []config.APIKeyConfig{
			{Key: "key-writer", Principal: "writer", Collections: []string{"docs-*"}, Actions: []string{"index", "search"}},
			{Key: "key-admin", Principal: "root", Collections: []string{"*"}, Actions: []string{"admin"}},
		},
		JWTSecret:   "test-secret",
		TokenExpiry: time.Minute,
	}
}

func TestGateAuthenticateAPIKey(t *testing.T) {
	gate := NewGate(testConfig())

	p, err := gate.Authenticate("Bearer key-writer")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p.ID != "writer" {
		t.Fatalf("expected principal writer, got %q", p.ID)
	}
}

func TestGateAuthenticateCaseInsensitivePrefix(t *testing.T) {
	gate := NewGate(testConfig())
	if _, err := gate.Authenticate("bearer key-writer"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
}

func TestGateAuthenticateMissingCredentials(t *testing.T) {
	gate := NewGate(testConfig())
	if _, err := gate.Authenticate(""); err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestGateAuthenticateInvalidCredentials(t *testing.T) {
	gate := NewGate(testConfig())
	for _, header := range []string{"Bearer nope", "Token key-writer", "key-writer"} {
		if _, err := gate.Authenticate(header); err != ErrInvalidCredentials {
			t.Fatalf("Authenticate(%q) error = %v, want ErrInvalidCredentials", header, err)
		}
	}
}

func TestGateAdminSessionRoundTrip(t *testing.T) {
	gate := NewGate(testConfig())

	token, err := gate.IssueAdminSession("root")
	if err != nil {
		t.Fatalf("IssueAdminSession() error = %v", err)
	}

	p, err := gate.Authenticate("Bearer " + token)
	if err != nil {
		t.Fatalf("Authenticate(session token) error = %v", err)
	}
	if p.ID != "root" {
		t.Fatalf("expected principal root, got %q", p.ID)
	}
}

func TestGateIssueAdminSessionDisabledWithoutSecret(t *testing.T) {
	gate := NewGate(config.AuthConfig{APIKeys: []config.APIKeyConfig{{Key: "k", Principal: "p", Actions: []string{"search"}}}})
	if _, err := gate.IssueAdminSession("p"); err != errAuthDisabled {
		t.Fatalf("expected errAuthDisabled, got %v", err)
	}
}

func TestGateAuthenticateUnknownAdminSessionSubject(t *testing.T) {
	gate := NewGate(testConfig())
	token, err := gate.IssueAdminSession("ghost")
	if err != nil {
		t.Fatalf("IssueAdminSession() error = %v", err)
	}
	if _, err := gate.Authenticate("Bearer " + token); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown subject, got %v", err)
	}
}

func TestGateAllowRequestUnboundedWhenRateLimitDisabled(t *testing.T) {
	gate := NewGate(testConfig())
	for i := 0; i < 100; i++ {
		if !gate.AllowRequest("writer") {
			t.Fatalf("expected no rate limiting when auth.rate_limit.enabled is false (request %d)", i)
		}
	}
}

func TestGateAllowRequestEnforcesBurstThenDenies(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 2}
	gate := NewGate(cfg)

	if !gate.AllowRequest("writer") || !gate.AllowRequest("writer") {
		t.Fatalf("expected the first two requests within burst size to be allowed")
	}
	if gate.AllowRequest("writer") {
		t.Fatalf("expected a third immediate request to exceed the burst and be denied")
	}
}

func TestGateAllowRequestIsolatesPrincipals(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 1}
	gate := NewGate(cfg)

	if !gate.AllowRequest("writer") {
		t.Fatalf("expected writer's first request to be allowed")
	}
	if gate.AllowRequest("writer") {
		t.Fatalf("expected writer's second immediate request to be denied")
	}
	if !gate.AllowRequest("root") {
		t.Fatalf("expected a different principal to have its own, unconsumed bucket")
	}
}
