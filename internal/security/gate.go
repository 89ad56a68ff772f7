// Package security implements Prism's security core: API-key authentication,
// glob-pattern authorization, per-request audit emission, and error
// sanitization at the trust boundary (spec.md §4.11).
package security

import (
	"errors"
	"strings"
	"time"

	"github.com/prism-search/prism/internal/config"
	"github.com/prism-search/prism/internal/ratelimit"
)

var (
	// ErrMissingCredentials is returned when a request carries no
	// Authorization header at all.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials is returned for a malformed or unrecognized key.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Principal is the caller identity resolved from an API key: a name plus
// the (collection-pattern, action) grants carried by its config entry.
type Principal struct {
	ID          string
	Collections []string
	Actions     []string
}

// hasAction reports whether p's grant set names action directly.
func (p Principal) hasAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Gate resolves API keys to principals and, once resolved, decides
// collection/action authorization. Its api-key table is a plain map so
// lookup is O(1), per spec.md §4.11's authentication requirement.
type Gate struct {
	apiKeys    map[string]Principal // api key -> principal
	principals map[string]Principal // principal id -> principal, for admin session lookup
	jwt        *jwtIssuer
	limiter    *ratelimit.Limiter // nil when rate limiting is disabled
}

// NewGate builds a Gate from the loaded security configuration.
func NewGate(cfg config.AuthConfig) *Gate {
	g := &Gate{apiKeys: map[string]Principal{}, principals: map[string]Principal{}}
	for _, entry := range cfg.APIKeys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		p := Principal{
			ID:          entry.Principal,
			Collections: entry.Collections,
			Actions:     entry.Actions,
		}
		g.apiKeys[key] = p
		if p.ID != "" {
			g.principals[p.ID] = p
		}
	}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		expiry := cfg.TokenExpiry
		if expiry <= 0 {
			expiry = time.Hour
		}
		g.jwt = newJWTIssuer(cfg.JWTSecret, expiry)
	}
	if cfg.RateLimit.Enabled {
		rlCfg := ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			Enabled:           true,
		}
		if rlCfg.RequestsPerSecond <= 0 {
			rlCfg.RequestsPerSecond = ratelimit.DefaultConfig().RequestsPerSecond
		}
		if rlCfg.BurstSize <= 0 {
			rlCfg.BurstSize = ratelimit.DefaultConfig().BurstSize
		}
		g.limiter = ratelimit.NewLimiter(rlCfg)
	}
	return g
}

// AllowRequest reports whether principalID may make another request right
// now. It always allows when rate limiting is disabled (no limiter
// configured) or the principal has no id (e.g. an unauthenticated probe
// that was already rejected upstream).
func (g *Gate) AllowRequest(principalID string) bool {
	if g.limiter == nil || principalID == "" {
		return true
	}
	return g.limiter.Allow(principalID)
}

// IssueAdminSession signs an admin session token for principalID, for
// callers that have already authenticated some other way (e.g. an
// operator console) and want a short-lived credential that still carries
// the issuing principal through the audit trail. Returns errAuthDisabled
// if no jwt_secret is configured.
func (g *Gate) IssueAdminSession(principalID string) (string, error) {
	if g.jwt == nil {
		return "", errAuthDisabled
	}
	return g.jwt.issue(principalID)
}

// Authenticate validates a request's Authorization header value (the full
// "Bearer <key>" string) and returns the resolved Principal. It accepts
// either a configured API key or a previously issued admin session token,
// so one gate serves both credential forms without the caller needing to
// distinguish them.
func (g *Gate) Authenticate(authorization string) (Principal, error) {
	token := strings.TrimSpace(authorization)
	if token == "" {
		return Principal{}, ErrMissingCredentials
	}
	const prefix = "bearer "
	if len(token) <= len(prefix) || !strings.EqualFold(token[:len(prefix)], prefix) {
		return Principal{}, ErrInvalidCredentials
	}
	key := strings.TrimSpace(token[len(prefix):])
	if key == "" {
		return Principal{}, ErrInvalidCredentials
	}

	if p, ok := g.apiKeys[key]; ok {
		return p, nil
	}
	if g.jwt != nil {
		if subject, err := g.jwt.validate(key); err == nil {
			if p, ok := g.principals[subject]; ok {
				return p, nil
			}
		}
	}
	return Principal{}, ErrInvalidCredentials
}
