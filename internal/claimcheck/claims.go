// Package claimcheck validates the registered claims (iss, aud, azp, exp,
// nbf, iat) against a per-token-kind policy, per spec.md §4.8. sub is not
// checked here; tokencontent rejects a payload with no sub when building
// the content. Rules differ by TokenKind: refresh tokens skip audience/azp
// checks entirely, id tokens require an aud claim, and access and id tokens
// both check aud against the issuer's expected audience set when one is
// configured.
package claimcheck

import (
	"fmt"
	"time"

	"github.com/tokenforge/jwtguard/internal/jwtdecode"
)

// ErrKind classifies a claims validation failure.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrExpired
	ErrNotYetValid
	ErrAudienceMismatch
	ErrAzpMismatch
	ErrIssuerMismatch
	ErrMissingClaim
)

// ValidateError carries which claim check failed.
type ValidateError struct {
	Kind   ErrKind
	Detail string
}

func (e *ValidateError) Error() string { return e.Detail }

// Context captures the moment validation runs against, so tests can pin
// "now" instead of racing the clock. ClockSkew defaults to 60s when zero
// (see Policy.skew).
type Context struct {
	Now       time.Time
	ClockSkew time.Duration
}

// Policy is the per-issuer, per-kind claim policy.
type Policy struct {
	Issuer            string
	ExpectedAudiences []string
	ExpectedAzp       string
	RequireAzp        bool
	ClockSkew         time.Duration
}

func (p Policy) skew() time.Duration {
	if p.ClockSkew <= 0 {
		return 60 * time.Second
	}
	return p.ClockSkew
}

// Validate checks payload against policy for the given kind at ctx.Now.
// Per spec.md's Open Question #1, an empty-string sub is accepted: this
// preserves documented behavior rather than tightening it.
func Validate(payload map[string]interface{}, kind jwtdecode.TokenKind, policy Policy, ctx Context) *ValidateError {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	skew := policy.skew()
	if ctx.ClockSkew > 0 {
		skew = ctx.ClockSkew
	}

	iss, _ := payload["iss"].(string)
	if iss == "" {
		return &ValidateError{Kind: ErrMissingClaim, Detail: "missing iss claim"}
	}
	if iss != policy.Issuer {
		return &ValidateError{Kind: ErrIssuerMismatch, Detail: fmt.Sprintf("token iss %q does not match resolved issuer %q", iss, policy.Issuer)}
	}

	if exp, ok := numericDate(payload["exp"]); ok {
		if now.After(exp.Add(skew)) {
			return &ValidateError{Kind: ErrExpired, Detail: "token exp has passed"}
		}
	} else if kind != jwtdecode.KindRefresh {
		return &ValidateError{Kind: ErrMissingClaim, Detail: "missing exp claim"}
	}

	if nbf, ok := numericDate(payload["nbf"]); ok {
		if now.Before(nbf.Add(-skew)) {
			return &ValidateError{Kind: ErrNotYetValid, Detail: "token nbf is in the future"}
		}
	}

	if iat, ok := numericDate(payload["iat"]); ok {
		if iat.After(now.Add(skew)) {
			return &ValidateError{Kind: ErrNotYetValid, Detail: "token iat is in the future"}
		}
	}

	if kind == jwtdecode.KindRefresh {
		return nil // refresh tokens carry no audience/azp
	}

	aud := audienceList(payload["aud"])
	if kind == jwtdecode.KindID && len(aud) == 0 {
		return &ValidateError{Kind: ErrMissingClaim, Detail: "missing aud claim"}
	}
	if len(policy.ExpectedAudiences) > 0 {
		if !intersects(aud, policy.ExpectedAudiences) {
			return &ValidateError{Kind: ErrAudienceMismatch, Detail: "aud does not intersect the issuer's expected audiences"}
		}
	}

	if policy.RequireAzp || policy.ExpectedAzp != "" {
		azp, _ := payload["azp"].(string)
		if policy.ExpectedAzp != "" && azp != policy.ExpectedAzp {
			return &ValidateError{Kind: ErrAzpMismatch, Detail: fmt.Sprintf("azp %q does not match expected %q", azp, policy.ExpectedAzp)}
		}
	}

	return nil
}

func numericDate(v interface{}) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), true
	case int64:
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

func audienceList(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if set[v] {
			return true
		}
	}
	return false
}
