package jwtdecode

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func buildToken(header, payload string) string {
	return b64(header) + "." + b64(payload) + "." + b64("sig-bytes")
}

func TestDecode_Success(t *testing.T) {
	raw := buildToken(`{"alg":"RS256","kid":"key-1"}`, `{"iss":"https://issuer.example","sub":"user-1"}`)
	d, derr := Decode(raw, DefaultLimits())
	assert.Nil(t, derr)
	assert.Equal(t, "RS256", d.Header["alg"])
	assert.Equal(t, "https://issuer.example", d.Issuer)
	assert.False(t, d.Opaque)
}

func TestDecode_MalformedWrongSegmentCount(t *testing.T) {
	_, derr := Decode("only.two", DefaultLimits())
	assert.NotNil(t, derr)
	assert.Equal(t, ErrMalformed, derr.Kind)
}

func TestDecode_OversizeToken(t *testing.T) {
	raw := buildToken(`{"alg":"RS256"}`, `{"iss":"x"}`)
	lim := DefaultLimits()
	lim.MaxTokenBytes = 5
	_, derr := Decode(raw, lim)
	assert.Equal(t, ErrOversizeToken, derr.Kind)
}

func TestDecode_InvalidBase64Segment(t *testing.T) {
	_, derr := Decode("not-base64!.also-not.sig", DefaultLimits())
	assert.Equal(t, ErrMalformed, derr.Kind)
}

func TestDecodeOpaque_RejectsDottedValue(t *testing.T) {
	_, derr := DecodeOpaque("has.a.dot", DefaultLimits())
	assert.Equal(t, ErrMalformed, derr.Kind)
}

func TestDecodeOpaque_Success(t *testing.T) {
	d, derr := DecodeOpaque("opaque-refresh-token-value", DefaultLimits())
	assert.Nil(t, derr)
	assert.True(t, d.Opaque)
	assert.Nil(t, d.Payload)
}

func TestSignedBytes_IsHeaderDotPayload(t *testing.T) {
	raw := buildToken(`{"alg":"RS256"}`, `{"iss":"x"}`)
	d, derr := Decode(raw, DefaultLimits())
	assert.Nil(t, derr)
	parts := strings.Split(raw, ".")
	assert.Equal(t, parts[0]+"."+parts[1], string(d.SignedBytes()))
}
