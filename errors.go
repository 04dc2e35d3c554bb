// Package jwtguard is a multi-issuer JWT validation engine for embedding in
// authentication gateways and API servers. It verifies compact JWS strings
// against remotely-discovered JWKS keys, enforces claim-level policy, and
// returns strongly-typed token content for access, identity, and refresh
// tokens.
//
// jwtguard does not issue tokens, manage sessions, or implement OAuth 2.0
// flows — it only verifies what it is handed. See Validator for the public
// entry point.
package jwtguard

import "fmt"

// EventType is a metrics-facing code, 1:1 with an error Kind. Hosts scrape
// these through a SecurityEventCounter rather than parsing error strings.
type EventType string

const (
	EventMissingClaim             EventType = "missing-claim"
	EventIssuerMismatch           EventType = "issuer-mismatch"
	EventSignatureInvalid         EventType = "signature-invalid"
	EventKeyNotFound              EventType = "key-not-found"
	EventExpired                  EventType = "expired"
	EventNotYetValid              EventType = "not-yet-valid"
	EventAudienceMismatch         EventType = "audience-mismatch"
	EventAzpMismatch              EventType = "azp-mismatch"
	EventOversizeToken            EventType = "oversize-token"
	EventJwksParseFailed          EventType = "jwks-parse-failed"
	EventUnsupportedAlgorithm     EventType = "unsupported-algorithm"
	EventUnsupportedCritical      EventType = "unsupported-critical"
	EventAlgKeyMismatch           EventType = "alg-key-mismatch"
	EventUnknownIssuer            EventType = "unknown-issuer"
	EventIssuerNotHealthy         EventType = "issuer-not-healthy"
	EventMalformed                EventType = "malformed"
	EventTokenEmpty               EventType = "token-empty"
	EventJSONParseFailed          EventType = "json-parse-failed"
	EventOversizeString           EventType = "oversize-string"
	EventOversizeArray            EventType = "oversize-array"
	EventDepthExceeded            EventType = "depth-exceeded"
	EventJwksURIResolutionFailed  EventType = "jwks-uri-resolution-failed"
	EventJwksLoadFailed           EventType = "jwks-load-failed"
	EventJwksJSONParseFailed      EventType = "jwks-json-parse-failed"
	EventUnsupportedJwksType      EventType = "unsupported-jwks-type"
	EventTokenBuildFailed         EventType = "token-build-failed"
	EventMissingRecommended       EventType = "missing-recommended-element"
	EventCacheHit                 EventType = "cache-hit"
	EventCacheMiss                EventType = "cache-miss"
	EventAccessTokenCreated       EventType = "access-token-created"
	EventIDTokenCreated           EventType = "id-token-created"
	EventRefreshTokenCreated      EventType = "refresh-token-created"
	EventInternalCacheError       EventType = "internal-cache-error"
)

// Kind is the stable, programmatic error identifier a caller can switch on
// or compare with errors.Is. It maps 1:1 onto an EventType for metrics.
type Kind string

const (
	KindTokenEmpty             Kind = "TOKEN_EMPTY"
	KindTokenOversize          Kind = "TOKEN_OVERSIZE"
	KindMalformed              Kind = "MALFORMED"
	KindJSONParseFailed        Kind = "JSON_PARSE_FAILED"
	KindOversizeString         Kind = "OVERSIZE_STRING"
	KindOversizeArray          Kind = "OVERSIZE_ARRAY"
	KindDepthExceeded          Kind = "DEPTH_EXCEEDED"
	KindJwksURIResolutionFailed Kind = "JWKS_URI_RESOLUTION_FAILED"
	KindJwksLoadFailed         Kind = "JWKS_LOAD_FAILED"
	KindJwksJSONParseFailed    Kind = "JWKS_JSON_PARSE_FAILED"
	KindUnsupportedJwksType    Kind = "UNSUPPORTED_JWKS_TYPE"
	KindUnknownIssuer          Kind = "UNKNOWN_ISSUER"
	KindIssuerNotHealthy       Kind = "ISSUER_NOT_HEALTHY"
	KindUnsupportedAlgorithm   Kind = "UNSUPPORTED_ALGORITHM"
	KindUnsupportedCritical    Kind = "UNSUPPORTED_CRITICAL"
	KindAlgKeyMismatch         Kind = "ALG_KEY_MISMATCH"
	KindKeyNotFound            Kind = "KEY_NOT_FOUND"
	KindSignatureInvalid       Kind = "SIGNATURE_INVALID"
	KindMissingClaim           Kind = "MISSING_CLAIM"
	KindExpired                Kind = "EXPIRED"
	KindNotYetValid            Kind = "NOT_YET_VALID"
	KindAudienceMismatch       Kind = "AUDIENCE_MISMATCH"
	KindAzpMismatch            Kind = "AZP_MISMATCH"
	KindIssuerMismatch         Kind = "ISSUER_MISMATCH"
	KindTokenBuildFailed       Kind = "TOKEN_BUILD_FAILED"
)

// kindEvents maps every Kind to the EventType a SecurityEventCounter
// increments when that Kind is raised.
var kindEvents = map[Kind]EventType{
	KindTokenEmpty:              EventTokenEmpty,
	KindTokenOversize:           EventOversizeToken,
	KindMalformed:               EventMalformed,
	KindJSONParseFailed:         EventJSONParseFailed,
	KindOversizeString:          EventOversizeString,
	KindOversizeArray:           EventOversizeArray,
	KindDepthExceeded:           EventDepthExceeded,
	KindJwksURIResolutionFailed: EventJwksURIResolutionFailed,
	KindJwksLoadFailed:          EventJwksLoadFailed,
	KindJwksJSONParseFailed:     EventJwksJSONParseFailed,
	KindUnsupportedJwksType:     EventUnsupportedJwksType,
	KindUnknownIssuer:           EventUnknownIssuer,
	KindIssuerNotHealthy:        EventIssuerNotHealthy,
	KindUnsupportedAlgorithm:    EventUnsupportedAlgorithm,
	KindUnsupportedCritical:     EventUnsupportedCritical,
	KindAlgKeyMismatch:          EventAlgKeyMismatch,
	KindKeyNotFound:             EventKeyNotFound,
	KindSignatureInvalid:        EventSignatureInvalid,
	KindMissingClaim:            EventMissingClaim,
	KindExpired:                 EventExpired,
	KindNotYetValid:             EventNotYetValid,
	KindAudienceMismatch:        EventAudienceMismatch,
	KindAzpMismatch:             EventAzpMismatch,
	KindIssuerMismatch:          EventIssuerMismatch,
	KindTokenBuildFailed:        EventTokenBuildFailed,
}

// EventFor returns the EventType a Kind maps to for metrics purposes.
func EventFor(k Kind) EventType {
	return kindEvents[k]
}

// ValidationError is the single error type every pipeline step raises.
// Detail MUST NOT contain the raw token string — callers may log it
// safely, but must never echo it back with raw token material attached.
type ValidationError struct {
	Kind      Kind
	EventType EventType
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewValidationError constructs a ValidationError, deriving EventType from
// Kind so callers never have to keep the two in sync by hand.
func NewValidationError(kind Kind, detail string) *ValidationError {
	return &ValidationError{Kind: kind, EventType: EventFor(kind), Detail: detail}
}

// Is allows errors.Is(err, jwtguard.ErrExpired) style matching: two
// ValidationErrors match when their Kinds are equal, whatever their Detail.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons against a bare Kind, e.g.:
//
//	if errors.Is(err, jwtguard.ErrExpired) { ... }
var (
	ErrTokenEmpty           = &ValidationError{Kind: KindTokenEmpty}
	ErrTokenOversize        = &ValidationError{Kind: KindTokenOversize}
	ErrMalformed            = &ValidationError{Kind: KindMalformed}
	ErrUnknownIssuer        = &ValidationError{Kind: KindUnknownIssuer}
	ErrIssuerNotHealthy     = &ValidationError{Kind: KindIssuerNotHealthy}
	ErrUnsupportedAlgorithm = &ValidationError{Kind: KindUnsupportedAlgorithm}
	ErrKeyNotFound          = &ValidationError{Kind: KindKeyNotFound}
	ErrSignatureInvalid     = &ValidationError{Kind: KindSignatureInvalid}
	ErrExpired              = &ValidationError{Kind: KindExpired}
	ErrNotYetValid          = &ValidationError{Kind: KindNotYetValid}
	ErrAudienceMismatch     = &ValidationError{Kind: KindAudienceMismatch}
	ErrAzpMismatch          = &ValidationError{Kind: KindAzpMismatch}
	ErrIssuerMismatch       = &ValidationError{Kind: KindIssuerMismatch}
	ErrTokenBuildFailed     = &ValidationError{Kind: KindTokenBuildFailed}
)

// InternalCacheError marks a non-validation failure inside AccessTokenCache.
// Per spec it must never cause a token to be falsely accepted or rejected:
// the cache degrades to a miss and validation proceeds normally.
type InternalCacheError struct {
	Detail string
}

func (e *InternalCacheError) Error() string {
	return fmt.Sprintf("internal cache error: %s", e.Detail)
}
