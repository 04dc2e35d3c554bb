// Package header validates a decoded JWS header against an issuer's
// policy: typ, alg membership, and rejection of any crit extension, per
// spec.md §4.7. jwtguard's core understands no JWS extensions, so any
// crit header is an unconditional UNSUPPORTED_CRITICAL failure.
package header

import (
	"fmt"

	"github.com/tokenforge/jwtguard/internal/jwtdecode"
)

// ErrKind classifies a header validation failure.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrUnsupportedAlgorithm
	ErrUnsupportedCritical
	ErrMalformed
)

// ValidateError carries which header check failed.
type ValidateError struct {
	Kind   ErrKind
	Detail string
}

func (e *ValidateError) Error() string { return e.Detail }

// Policy is the subset of an issuer's Config that header validation
// needs: the allowed typ values per token kind and the allowed
// algorithms.
type Policy struct {
	AllowedAlgorithms []string
	AccessTokenTyp    []string // e.g. {"JWT", "at+jwt"}; empty means typ is not checked
	IDTokenTyp        []string
}

// Validate checks header against policy for the given token kind. alg
// and kid are returned for convenience since callers need both right
// after this check passes.
func Validate(header map[string]interface{}, kind jwtdecode.TokenKind, policy Policy) (alg, kid string, verr *ValidateError) {
	if _, present := header["crit"]; present {
		return "", "", &ValidateError{Kind: ErrUnsupportedCritical, Detail: "token declares a crit header, which jwtguard does not support"}
	}

	algVal, ok := header["alg"].(string)
	if !ok || algVal == "" {
		return "", "", &ValidateError{Kind: ErrMalformed, Detail: "header is missing alg"}
	}
	if !contains(policy.AllowedAlgorithms, algVal) {
		return "", "", &ValidateError{Kind: ErrUnsupportedAlgorithm, Detail: fmt.Sprintf("alg %q is not permitted for this issuer", algVal)}
	}

	kidVal, _ := header["kid"].(string)

	var expectedTyp []string
	switch kind {
	case jwtdecode.KindAccess:
		expectedTyp = policy.AccessTokenTyp
	case jwtdecode.KindID:
		expectedTyp = policy.IDTokenTyp
	}
	if len(expectedTyp) > 0 {
		if typVal, ok := header["typ"].(string); ok && typVal != "" && !contains(expectedTyp, typVal) {
			return "", "", &ValidateError{Kind: ErrMalformed, Detail: fmt.Sprintf("typ %q is not one of %v", typVal, expectedTyp)}
		}
	}

	return algVal, kidVal, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
