package jwtguard

import (
	"github.com/tokenforge/jwtguard/internal/claimcheck"
	"github.com/tokenforge/jwtguard/internal/header"
	"github.com/tokenforge/jwtguard/internal/jwtdecode"
	"github.com/tokenforge/jwtguard/internal/signature"
)

// fromDecodeError, fromHeaderError, fromSignatureError, and
// fromClaimError translate each internal package's narrow error kind
// into the single public ValidationError taxonomy, so callers only ever
// have one error shape to switch on regardless of which pipeline stage
// failed.

func fromDecodeError(derr *jwtdecode.DecodeError) *ValidationError {
	switch derr.Kind {
	case jwtdecode.ErrOversizeToken:
		return NewValidationError(KindTokenOversize, derr.Detail)
	case jwtdecode.ErrOversizeString:
		return NewValidationError(KindOversizeString, derr.Detail)
	case jwtdecode.ErrOversizeArray:
		return NewValidationError(KindOversizeArray, derr.Detail)
	case jwtdecode.ErrDepthExceeded:
		return NewValidationError(KindDepthExceeded, derr.Detail)
	case jwtdecode.ErrJSONParseFailed:
		return NewValidationError(KindJSONParseFailed, derr.Detail)
	default:
		return NewValidationError(KindMalformed, derr.Detail)
	}
}

func fromHeaderError(herr *header.ValidateError) *ValidationError {
	switch herr.Kind {
	case header.ErrUnsupportedAlgorithm:
		return NewValidationError(KindUnsupportedAlgorithm, herr.Detail)
	case header.ErrUnsupportedCritical:
		return NewValidationError(KindUnsupportedCritical, herr.Detail)
	default:
		return NewValidationError(KindMalformed, herr.Detail)
	}
}

func fromSignatureError(serr *signature.VerifyError) *ValidationError {
	switch serr.Kind {
	case signature.ErrUnsupportedAlgorithm:
		return NewValidationError(KindUnsupportedAlgorithm, serr.Detail)
	case signature.ErrAlgKeyMismatch:
		return NewValidationError(KindAlgKeyMismatch, serr.Detail)
	case signature.ErrKeyNotFound:
		return NewValidationError(KindKeyNotFound, serr.Detail)
	default:
		return NewValidationError(KindSignatureInvalid, serr.Detail)
	}
}

func fromClaimError(cerr *claimcheck.ValidateError) *ValidationError {
	switch cerr.Kind {
	case claimcheck.ErrExpired:
		return NewValidationError(KindExpired, cerr.Detail)
	case claimcheck.ErrNotYetValid:
		return NewValidationError(KindNotYetValid, cerr.Detail)
	case claimcheck.ErrAudienceMismatch:
		return NewValidationError(KindAudienceMismatch, cerr.Detail)
	case claimcheck.ErrAzpMismatch:
		return NewValidationError(KindAzpMismatch, cerr.Detail)
	case claimcheck.ErrIssuerMismatch:
		return NewValidationError(KindIssuerMismatch, cerr.Detail)
	default:
		return NewValidationError(KindMissingClaim, cerr.Detail)
	}
}
