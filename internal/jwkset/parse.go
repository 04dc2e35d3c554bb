package jwkset

import (
	"encoding/json"
	"fmt"
)

const softKeyLimit = 50

type rawJwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

type rawJwks struct {
	Keys []rawJwk `json:"keys"`
}

// ParseResult carries the decoded keys plus whether the soft 50-key
// limit was exceeded and whether any key carried an unsupported kty, so
// the caller can emit the corresponding events without this package
// reaching into a counter directly.
type ParseResult struct {
	Keys             []JwkKey
	ExceededLimit    bool
	UnsupportedTypes bool
}

// ParseDocument decodes a JWKS document, filtering out kty=oct keys
// silently (spec.md §3). A kty outside {RSA,EC,OKP,oct} is also filtered
// out, but unlike oct it sets UnsupportedTypes so the caller can raise
// UNSUPPORTED_JWKS_TYPE rather than dropping it without a trace. A
// document with more than softKeyLimit keys is still fully accepted —
// ExceededLimit is set so the caller can log/count the warning — only a
// hard maxBytes violation (checked by the caller before this is invoked)
// is fatal.
func ParseDocument(body []byte) (*ParseResult, error) {
	var doc rawJwks
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwkset: invalid JWKS document: %w", err)
	}

	keys := make([]JwkKey, 0, len(doc.Keys))
	unsupportedTypes := false
	for _, rk := range doc.Keys {
		if rk.Kty == "oct" {
			continue
		}
		if rk.Kty != "RSA" && rk.Kty != "EC" && rk.Kty != "OKP" {
			unsupportedTypes = true
			continue
		}
		keys = append(keys, JwkKey{
			Kty: rk.Kty,
			Kid: rk.Kid,
			Use: rk.Use,
			Alg: rk.Alg,
			N:   rk.N,
			E:   rk.E,
			Crv: rk.Crv,
			X:   rk.X,
			Y:   rk.Y,
		})
	}

	return &ParseResult{
		Keys:             keys,
		ExceededLimit:    len(doc.Keys) > softKeyLimit,
		UnsupportedTypes: unsupportedTypes,
	}, nil
}
