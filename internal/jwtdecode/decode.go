// Package jwtdecode splits a compact JWS string into its three segments,
// base64url-decodes the header and payload under bounded limits, and
// hands back a DecodedJwt value — never a pointer into shared state, and
// never retained by any cache.
//
// Grounded on the teacher's auth/jwt.go token-shape handling (the
// "header.payload.signature" split documented at the top of that file),
// generalized to verification-side decoding with the allocation limits
// spec.md §4.3 requires, enforced by internal/jsonparse.
package jwtdecode

import (
	"encoding/base64"
	"strings"

	"github.com/tokenforge/jwtguard/internal/jsonparse"
)

// TokenKind identifies which of the three validation pipelines a token
// is being decoded for.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindID
	KindRefresh
)

func (k TokenKind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindID:
		return "id"
	case KindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Limits bounds decoding, mirroring spec.md §4.3's table.
type Limits struct {
	MaxTokenBytes    int
	MaxPartBytes     int
	MaxStringLen     int
	MaxArrayLen      int
	MaxDepth         int
}

// DefaultLimits matches spec.md's documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxTokenBytes: 8192,
		MaxPartBytes:  8192,
		MaxStringLen:  4096,
		MaxArrayLen:   64,
		MaxDepth:      10,
	}
}

// DecodedJwt is the ephemeral result of a decode. It is never stored in
// the access-token cache — only the typed TokenContent built from it is.
type DecodedJwt struct {
	Raw     string
	Parts   [3]string // empty for opaque refresh tokens
	Header  map[string]interface{}
	Payload map[string]interface{} // nil for opaque refresh tokens
	Issuer  string                 // fast-path extraction of the iss claim
	Opaque  bool
}

// ErrKind classifies a decode failure so the caller can raise the exact
// spec.md Kind (MALFORMED vs an OVERSIZE_* variant).
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrMalformed
	ErrOversizeToken
	ErrOversizeString
	ErrOversizeArray
	ErrDepthExceeded
	ErrJSONParseFailed
)

// DecodeError carries which limit/shape check failed.
type DecodeError struct {
	Kind   ErrKind
	Detail string
}

func (e *DecodeError) Error() string { return e.Detail }

// Decode splits and decodes a three-segment compact JWS. Use DecodeOpaque
// for single-segment refresh tokens instead.
func Decode(raw string, lim Limits) (*DecodedJwt, *DecodeError) {
	if lim.MaxTokenBytes > 0 && len(raw) > lim.MaxTokenBytes {
		return nil, &DecodeError{Kind: ErrOversizeToken, Detail: "token exceeds max_token_size"}
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, &DecodeError{Kind: ErrMalformed, Detail: "token is not three base64url segments"}
	}

	headerBytes, derr := decodePart(parts[0], lim)
	if derr != nil {
		return nil, derr
	}
	payloadBytes, derr := decodePart(parts[1], lim)
	if derr != nil {
		return nil, derr
	}

	jlim := jsonparse.Limits{MaxStringLen: lim.MaxStringLen, MaxArrayLen: lim.MaxArrayLen, MaxDepth: lim.MaxDepth}

	header, err := jsonparse.ParseObject(headerBytes, jlim)
	if err != nil {
		return nil, classifyJSONErr(err)
	}
	payload, err := jsonparse.ParseObject(payloadBytes, jlim)
	if err != nil {
		return nil, classifyJSONErr(err)
	}

	d := &DecodedJwt{
		Raw:     raw,
		Header:  header,
		Payload: payload,
	}
	copy(d.Parts[:], parts)
	if iss, ok := payload["iss"].(string); ok {
		d.Issuer = iss
	}
	return d, nil
}

// DecodeOpaque builds a DecodedJwt for a single-segment refresh token
// without touching the JSON parser at all, so opaque tokens never emit
// the parse-event counters a JWS-shaped token would.
func DecodeOpaque(raw string, lim Limits) (*DecodedJwt, *DecodeError) {
	if lim.MaxTokenBytes > 0 && len(raw) > lim.MaxTokenBytes {
		return nil, &DecodeError{Kind: ErrOversizeToken, Detail: "token exceeds max_token_size"}
	}
	if strings.Contains(raw, ".") {
		return nil, &DecodeError{Kind: ErrMalformed, Detail: "opaque token must not contain '.'"}
	}
	return &DecodedJwt{Raw: raw, Opaque: true}, nil
}

func decodePart(part string, lim Limits) ([]byte, *DecodeError) {
	decoded, err := base64.RawURLEncoding.DecodeString(part)
	if err != nil {
		return nil, &DecodeError{Kind: ErrMalformed, Detail: "segment is not valid base64url"}
	}
	if lim.MaxPartBytes > 0 && len(decoded) > lim.MaxPartBytes {
		return nil, &DecodeError{Kind: ErrOversizeToken, Detail: "decoded segment exceeds per-part limit"}
	}
	return decoded, nil
}

func classifyJSONErr(err error) *DecodeError {
	switch err {
	case jsonparse.ErrOversizeString:
		return &DecodeError{Kind: ErrOversizeString, Detail: err.Error()}
	case jsonparse.ErrOversizeArray:
		return &DecodeError{Kind: ErrOversizeArray, Detail: err.Error()}
	case jsonparse.ErrDepthExceeded:
		return &DecodeError{Kind: ErrDepthExceeded, Detail: err.Error()}
	default:
		return &DecodeError{Kind: ErrJSONParseFailed, Detail: err.Error()}
	}
}

// SignedBytes returns the exact "header.payload" bytes the signature was
// computed over.
func (d *DecodedJwt) SignedBytes() []byte {
	return []byte(d.Parts[0] + "." + d.Parts[1])
}

// SignatureBytes base64url-decodes the third segment.
func (d *DecodedJwt) SignatureBytes() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(d.Parts[2])
}
