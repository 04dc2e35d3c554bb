package jwtguard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFor_MapsEveryKind(t *testing.T) {
	for kind := range kindEvents {
		event := EventFor(kind)
		assert.NotEmpty(t, string(event), "kind %q has no mapped EventType", kind)
	}
}

func TestNewValidationError_DerivesEventType(t *testing.T) {
	verr := NewValidationError(KindExpired, "token exp has passed")
	assert.Equal(t, KindExpired, verr.Kind)
	assert.Equal(t, EventExpired, verr.EventType)
	assert.Contains(t, verr.Error(), "EXPIRED")
	assert.Contains(t, verr.Error(), "token exp has passed")
}

func TestValidationError_ErrorsIsMatchesByKindOnly(t *testing.T) {
	err := NewValidationError(KindExpired, "some detail that varies per token")
	assert.True(t, errors.Is(err, ErrExpired))
	assert.False(t, errors.Is(err, ErrNotYetValid))
}

func TestInternalCacheError_NeverMatchesValidationError(t *testing.T) {
	cacheErr := &InternalCacheError{Detail: "redis unavailable"}
	var verr *ValidationError
	assert.False(t, errors.As(cacheErr, &verr))
	assert.Contains(t, cacheErr.Error(), "redis unavailable")
}
