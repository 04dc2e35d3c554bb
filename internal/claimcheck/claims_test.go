package claimcheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tokenforge/jwtguard/internal/jwtdecode"
)

func TestValidate_Success(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"iss": "https://issuer.example",
		"aud": "client-1",
		"exp": float64(now.Add(time.Hour).Unix()),
		"iat": float64(now.Add(-time.Minute).Unix()),
	}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{Now: now})
	assert.Nil(t, verr)
}

func TestValidate_ExpiredBeyondSkew(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"iss": "https://issuer.example",
		"aud": "client-1",
		"exp": float64(now.Add(-2 * time.Minute).Unix()),
	}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}, ClockSkew: 60 * time.Second}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{Now: now})
	assert.Equal(t, ErrExpired, verr.Kind)
}

func TestValidate_ExpiredWithinSkewTolerated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"iss": "https://issuer.example",
		"aud": "client-1",
		"exp": float64(now.Add(-30 * time.Second).Unix()),
	}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}, ClockSkew: 60 * time.Second}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{Now: now})
	assert.Nil(t, verr)
}

func TestValidate_NotYetValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"iss": "https://issuer.example",
		"aud": "client-1",
		"exp": float64(now.Add(time.Hour).Unix()),
		"nbf": float64(now.Add(5 * time.Minute).Unix()),
	}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}, ClockSkew: 60 * time.Second}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{Now: now})
	assert.Equal(t, ErrNotYetValid, verr.Kind)
}

func TestValidate_IssuerMismatch(t *testing.T) {
	payload := map[string]interface{}{"iss": "https://attacker.example", "exp": float64(9999999999)}
	policy := Policy{Issuer: "https://issuer.example"}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{})
	assert.Equal(t, ErrIssuerMismatch, verr.Kind)
}

func TestValidate_AudienceMismatch(t *testing.T) {
	payload := map[string]interface{}{"iss": "https://issuer.example", "aud": "other-client", "exp": float64(9999999999)}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{})
	assert.Equal(t, ErrAudienceMismatch, verr.Kind)
}

func TestValidate_AzpMismatch(t *testing.T) {
	payload := map[string]interface{}{
		"iss": "https://issuer.example",
		"aud": "client-1",
		"azp": "wrong-client",
		"exp": float64(9999999999),
	}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}, ExpectedAzp: "client-1"}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{})
	assert.Equal(t, ErrAzpMismatch, verr.Kind)
}

func TestValidate_RefreshTokenSkipsAudienceAzp(t *testing.T) {
	payload := map[string]interface{}{"iss": "https://issuer.example", "exp": float64(9999999999)}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAzp: "client-1"}
	verr := Validate(payload, jwtdecode.KindRefresh, policy, Context{})
	assert.Nil(t, verr)
}

func TestValidate_EmptySubjectAccepted(t *testing.T) {
	payload := map[string]interface{}{"iss": "https://issuer.example", "sub": "", "aud": "client-1", "exp": float64(9999999999)}
	policy := Policy{Issuer: "https://issuer.example", ExpectedAudiences: []string{"client-1"}}
	verr := Validate(payload, jwtdecode.KindAccess, policy, Context{})
	assert.Nil(t, verr)
}

func TestValidate_MissingIssuerClaim(t *testing.T) {
	payload := map[string]interface{}{"exp": float64(9999999999)}
	verr := Validate(payload, jwtdecode.KindAccess, Policy{Issuer: "https://issuer.example"}, Context{})
	assert.Equal(t, ErrMissingClaim, verr.Kind)
}
