// Package jwkset implements the JWKS loader and snapshot cache described
// in spec.md §4.5: background, fail-fast, ETag-aware refresh with health
// state kept separate from the load path itself.
//
// Grounded on the teacher's internal/cache (Redis client construction,
// connection/timeout defaults, retry backoff shape) and internal/auth's
// OIDC discovery flow, generalized from "fetch and cache application
// data" to "fetch and cache a signing-key set with a health-gated status
// machine" — the client-construction and retry idioms carry over even
// though the payload and invalidation policy are entirely different.
package jwkset

// JwkKey is one signing key out of a JWKS document. kty=oct keys are
// filtered out before they ever reach this type — see ParseDocument.
type JwkKey struct {
	Kty string // "RSA", "EC", or "OKP"
	Kid string
	Use string // "sig" or absent
	Alg string

	// RSA
	N string
	E string

	// EC / OKP
	Crv string
	X   string
	Y   string // absent for OKP
}

// Usable reports whether this key is eligible for signature verification:
// use is absent or "sig", and alg (if set) is among the issuer's
// configured signature preferences.
func (k JwkKey) Usable(allowedAlgs []string) bool {
	if k.Use != "" && k.Use != "sig" {
		return false
	}
	if k.Alg == "" {
		return true
	}
	for _, a := range allowedAlgs {
		if a == k.Alg {
			return true
		}
	}
	return false
}

// LoaderStatus is the loader's health state, reported independently of
// whatever fetch is or isn't in flight.
type LoaderStatus int32

const (
	Uninitialized LoaderStatus = iota
	Loading
	Ok
	Error
)

func (s LoaderStatus) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ok:
		return "ok"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the immutable JWKS value readers observe. A new Snapshot is
// built and atomically swapped in; existing holders of a prior Snapshot
// never see a torn read.
type Snapshot struct {
	Keys       []JwkKey
	Issuer     string
	ETag       string
	LoadedAt   int64 // unix nanos; avoids importing time into the hot read path
	Status     LoaderStatus
}

// KeyByKid returns the key with the given kid, if present.
func (s *Snapshot) KeyByKid(kid string) (JwkKey, bool) {
	if s == nil {
		return JwkKey{}, false
	}
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JwkKey{}, false
}

// SoleKey returns the only key in the snapshot, if exactly one exists.
// Used when a header carries no kid at all (spec.md §4.5).
func (s *Snapshot) SoleKey() (JwkKey, bool) {
	if s == nil || len(s.Keys) != 1 {
		return JwkKey{}, false
	}
	return s.Keys[0], true
}
