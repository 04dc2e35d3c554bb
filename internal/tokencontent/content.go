// Package tokencontent builds the typed result spec.md §3 calls a
// TokenContent out of a decoded, verified payload: AccessTokenContent,
// IdTokenContent, or RefreshTokenContent, with unknown claims passed
// through untyped rather than dropped.
//
// Grounded on the teacher's auth/providers.go claim-mapping tables
// (Okta/Azure/Google/Keycloak attribute templates), generalized from
// "map an IdP's custom claims onto a user profile" to "map any issuer's
// registered + custom claims onto one of three fixed content shapes".
package tokencontent

import (
	"time"
)

// AccessTokenContent is the typed result of validating an access token.
type AccessTokenContent struct {
	Issuer    string
	Subject   string
	Audience  []string
	Scope     []string
	ClientID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Extra     map[string]interface{}
}

// IdTokenContent is the typed result of validating an ID token.
type IdTokenContent struct {
	Issuer    string
	Subject   string
	Audience  []string
	Name      string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Extra     map[string]interface{}
}

// RefreshTokenContent is the typed result for a refresh token, which may
// be opaque (no payload at all).
type RefreshTokenContent struct {
	Issuer   string
	Subject  string
	Opaque   bool
	Fingerprint string
}

// BuildErrKind classifies a build failure.
type BuildErrKind int

const (
	BuildErrNone BuildErrKind = iota
	BuildErrStructural
)

// BuildError reports TOKEN_BUILD_FAILED.
type BuildError struct {
	Kind   BuildErrKind
	Detail string
}

func (e *BuildError) Error() string { return e.Detail }

var knownAccessClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true, "nbf": true, "iat": true,
	"scope": true, "scp": true, "client_id": true, "azp": true,
}

var knownIDClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true, "nbf": true, "iat": true,
	"name": true, "email": true, "azp": true,
}

// BuildAccessToken maps a verified payload onto AccessTokenContent.
// Unrecognized claims are copied into Extra verbatim. A wholly-missing
// sub claim is rejected; a present-but-empty sub is accepted as-is (see
// DESIGN.md's Open Question #1).
func BuildAccessToken(payload map[string]interface{}) (*AccessTokenContent, *BuildError) {
	subVal, ok := payload["sub"]
	if !ok {
		return nil, &BuildError{Kind: BuildErrStructural, Detail: "access token payload has no sub claim to build from"}
	}
	sub, _ := subVal.(string)

	c := &AccessTokenContent{
		Issuer:   stringClaim(payload, "iss"),
		Subject:  sub,
		Audience: stringListClaim(payload, "aud"),
		ClientID: firstNonEmpty(stringClaim(payload, "client_id"), stringClaim(payload, "azp")),
		Extra:    map[string]interface{}{},
	}

	if scope := stringClaim(payload, "scope"); scope != "" {
		c.Scope = splitScope(scope)
	} else if scp := stringListClaim(payload, "scp"); len(scp) > 0 {
		c.Scope = scp
	}

	if exp, ok := numericDate(payload["exp"]); ok {
		c.ExpiresAt = exp
	}
	if iat, ok := numericDate(payload["iat"]); ok {
		c.IssuedAt = iat
	}

	if roles, ok := realmRoles(payload); ok {
		c.Extra["realm_roles"] = roles
	}
	copyUnknown(payload, knownAccessClaims, c.Extra)

	return c, nil
}

// BuildIdToken maps a verified payload onto IdTokenContent.
func BuildIdToken(payload map[string]interface{}) (*IdTokenContent, *BuildError) {
	sub, ok := payload["sub"]
	if !ok {
		return nil, &BuildError{Kind: BuildErrStructural, Detail: "id token payload has no sub claim to build from"}
	}
	subStr, _ := sub.(string)

	c := &IdTokenContent{
		Issuer:   stringClaim(payload, "iss"),
		Subject:  subStr,
		Audience: stringListClaim(payload, "aud"),
		Name:     stringClaim(payload, "name"),
		Email:    stringClaim(payload, "email"),
		Extra:    map[string]interface{}{},
	}
	if exp, ok := numericDate(payload["exp"]); ok {
		c.ExpiresAt = exp
	}
	if iat, ok := numericDate(payload["iat"]); ok {
		c.IssuedAt = iat
	}
	copyUnknown(payload, knownIDClaims, c.Extra)
	return c, nil
}

// BuildRefreshToken builds a RefreshTokenContent. For opaque tokens there
// is no payload to read claims from; fingerprint is the caller-supplied
// cache key (see internal/accesscache).
func BuildRefreshToken(payload map[string]interface{}, opaque bool, fingerprint string) (*RefreshTokenContent, *BuildError) {
	c := &RefreshTokenContent{Opaque: opaque, Fingerprint: fingerprint}
	if !opaque {
		c.Issuer = stringClaim(payload, "iss")
		c.Subject = stringClaim(payload, "sub")
	}
	return c, nil
}

func realmRoles(payload map[string]interface{}) ([]string, bool) {
	ra, ok := payload["realm_access"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	roles, ok := ra["roles"].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func copyUnknown(payload map[string]interface{}, known map[string]bool, dest map[string]interface{}) {
	for k, v := range payload {
		if !known[k] {
			dest[k] = v
		}
	}
}

func stringClaim(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

func stringListClaim(payload map[string]interface{}, key string) []string {
	switch v := payload[key].(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
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

func splitScope(scope string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(scope); i++ {
		if i == len(scope) || scope[i] == ' ' {
			if i > start {
				out = append(out, scope[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
