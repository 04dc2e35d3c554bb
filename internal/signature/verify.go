// Package signature verifies a JWS signature against a resolved JWKS key,
// matching algorithm family to key type per spec.md §4.6: RS*->RSA,
// PS*->RSASSA-PSS, ES*->ECDSA (curve matched to the alg suffix), EdDSA->
// Ed25519 (OKP).
//
// Grounded on golang-jwt/jwt/v5's signing-method registry (the same
// algorithm-name-to-implementation shape the teacher's auth/jwt.go relies
// on for token issuance), used here purely for its verification math —
// jwtguard supplies its own key material and never calls the library's
// Parse/ParseWithClaims, since those would re-decode and re-walk the
// claims jwtguard has already decoded under its own bounded parser.
package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tokenforge/jwtguard/internal/jwkset"
)

// ErrKind classifies a verification failure.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrUnsupportedAlgorithm
	ErrAlgKeyMismatch
	ErrKeyNotFound
	ErrSignatureInvalid
)

// VerifyError carries which step of verification failed.
type VerifyError struct {
	Kind   ErrKind
	Detail string
}

func (e *VerifyError) Error() string { return e.Detail }

// Verifier holds the algorithm allowlist and performs signature checks
// against whatever key a jwkset.Snapshot resolves for a given kid. It
// holds no mutable state, so a single Verifier is safe to share across
// goroutines without serializing calls (spec.md explicitly treats
// serialized verification as a non-goal).
type Verifier struct {
	allowedAlgorithms map[string]bool
}

// New builds a Verifier restricted to the given algorithm names (e.g.
// "RS256", "ES384", "EdDSA"). "none" is never permitted regardless of
// what's passed in.
func New(allowedAlgorithms []string) *Verifier {
	allowed := make(map[string]bool, len(allowedAlgorithms))
	for _, a := range allowedAlgorithms {
		if strings.EqualFold(a, "none") {
			continue
		}
		allowed[a] = true
	}
	return &Verifier{allowedAlgorithms: allowed}
}

// Verify checks signedBytes against sig using the key resolved for kid
// (or the snapshot's sole key, when kid is empty) in loader's current
// snapshot, restricted to alg.
func (v *Verifier) Verify(alg, kid string, signedBytes, sig []byte, loader *jwkset.Loader) *VerifyError {
	if alg == "" || strings.EqualFold(alg, "none") {
		return &VerifyError{Kind: ErrUnsupportedAlgorithm, Detail: "alg is missing or \"none\""}
	}
	if !v.allowedAlgorithms[alg] {
		return &VerifyError{Kind: ErrUnsupportedAlgorithm, Detail: fmt.Sprintf("alg %q is not in the issuer's allowed set", alg)}
	}

	key, ok := loader.GetKeyInfo(kid)
	if !ok {
		return &VerifyError{Kind: ErrKeyNotFound, Detail: fmt.Sprintf("no usable key for kid %q", kid)}
	}
	if !key.Usable(keysFor(alg)) {
		return &VerifyError{Kind: ErrKeyNotFound, Detail: fmt.Sprintf("key %q is not eligible for use=sig/alg %q", kid, alg)}
	}

	pub, err := publicKeyFor(alg, key)
	if err != nil {
		return &VerifyError{Kind: ErrAlgKeyMismatch, Detail: err.Error()}
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return &VerifyError{Kind: ErrUnsupportedAlgorithm, Detail: fmt.Sprintf("no signing method registered for %q", alg)}
	}

	if err := method.Verify(string(signedBytes), sig, pub); err != nil {
		return &VerifyError{Kind: ErrSignatureInvalid, Detail: err.Error()}
	}
	return nil
}

func keysFor(alg string) []string { return []string{alg} }

// publicKeyFor reconstructs a Go crypto public key from JWK fields,
// matching the key's declared type to the algorithm family requested.
func publicKeyFor(alg string, key jwkset.JwkKey) (interface{}, error) {
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		if key.Kty != "RSA" {
			return nil, fmt.Errorf("signature: alg %q requires an RSA key, got %q", alg, key.Kty)
		}
		return rsaPublicKey(key)
	case strings.HasPrefix(alg, "ES"):
		if key.Kty != "EC" {
			return nil, fmt.Errorf("signature: alg %q requires an EC key, got %q", alg, key.Kty)
		}
		return ecdsaPublicKey(alg, key)
	case alg == "EdDSA":
		if key.Kty != "OKP" {
			return nil, fmt.Errorf("signature: alg %q requires an OKP key, got %q", alg, key.Kty)
		}
		return ed25519PublicKey(key)
	default:
		return nil, fmt.Errorf("signature: unrecognized algorithm family %q", alg)
	}
}

func rsaPublicKey(key jwkset.JwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid RSA exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func ecdsaPublicKey(alg string, key jwkset.JwkKey) (*ecdsa.PublicKey, error) {
	curve, err := curveFor(alg, key.Crv)
	if err != nil {
		return nil, err
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid EC y coordinate: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func curveFor(alg, crv string) (elliptic.Curve, error) {
	want := map[string]string{"ES256": "P-256", "ES384": "P-384", "ES512": "P-521"}[alg]
	if want == "" {
		return nil, fmt.Errorf("signature: unrecognized ECDSA algorithm %q", alg)
	}
	if crv != want {
		return nil, fmt.Errorf("signature: alg %q expects curve %q, key declares %q", alg, want, crv)
	}
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("signature: unsupported curve %q", crv)
	}
}

func ed25519PublicKey(key jwkset.JwkKey) (ed25519.PublicKey, error) {
	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("signature: invalid OKP x value: %w", err)
	}
	if len(xBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signature: OKP key has unexpected length %d", len(xBytes))
	}
	return ed25519.PublicKey(xBytes), nil
}
