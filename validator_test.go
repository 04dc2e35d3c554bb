package jwtguard

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testIssuer struct {
	srv  *httptest.Server
	priv *rsa.PrivateKey
	kid  string
	url  string
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ti := &testIssuer{priv: priv, kid: "test-key-1"}
	ti.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": ti.kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(priv.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(eBytes(priv.PublicKey.E)),
			}},
		}
		w.Header().Set("ETag", `"v1"`)
		_ = json.NewEncoder(w).Encode(doc)
	}))
	ti.url = ti.srv.URL
	return ti
}

func eBytes(e int) []byte {
	if e == 0 {
		return []byte{0}
	}
	var b []byte
	for e > 0 {
		b = append([]byte{byte(e & 0xff)}, b...)
		e >>= 8
	}
	return b
}

func (ti *testIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ti.kid
	signed, err := token.SignedString(ti.priv)
	require.NoError(t, err)
	return signed
}

func waitHealthy(t *testing.T, v *Validator, issuer string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v.IssuerHealth(issuer) != 0 && v.IssuerHealth(issuer).String() == "ok" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("issuer %q never became healthy", issuer)
}

func TestValidator_HappyPath_AccessToken(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	issuerID := "https://issuer.example"
	v, err := New(context.Background(), Options{
		CacheMaxSize: 100,
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, issuerID)

	raw := ti.sign(t, jwt.MapClaims{
		"iss": issuerID,
		"sub": "user-1",
		"aud": "client-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	content, err := v.CreateAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", content.Subject)

	// Second call for the same raw token must be served from cache.
	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Counters()[string(EventCacheHit)])
}

func TestValidator_ExpiredToken(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	issuerID := "https://issuer.example"
	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, issuerID)

	raw := ti.sign(t, jwt.MapClaims{
		"iss": issuerID,
		"sub": "user-1",
		"aud": "client-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err = v.CreateAccessToken(raw)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Equal(t, KindExpired, verr.Kind)
}

func TestValidator_UnknownIssuer(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            "https://issuer.example",
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, "https://issuer.example")

	raw := ti.sign(t, jwt.MapClaims{
		"iss": "https://some-other-issuer.example",
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err = v.CreateAccessToken(raw)
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Equal(t, KindUnknownIssuer, verr.Kind)
}

func TestValidator_IssuerNotHealthyBeforeFirstLoad(t *testing.T) {
	issuerID := "https://issuer.example"
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           "http://127.0.0.1:1", // unreachable; loader never becomes healthy
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuerID,
		"sub": "user-1",
		"aud": "client-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "whatever"
	raw, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = v.CreateAccessToken(raw)
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Equal(t, KindIssuerNotHealthy, verr.Kind)
}

func TestValidator_HappyPath_IdToken(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	issuerID := "https://issuer.example"
	v, err := New(context.Background(), Options{
		CacheMaxSize: 100,
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, issuerID)

	raw := ti.sign(t, jwt.MapClaims{
		"iss":   issuerID,
		"sub":   "user-1",
		"aud":   "client-1",
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	content, err := v.CreateIdToken(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", content.Subject)
	require.Equal(t, "ada@example.com", content.Email)

	// ID tokens never go through the access-token cache: a second call
	// must re-validate from scratch rather than register a cache hit.
	_, err = v.CreateIdToken(raw)
	require.NoError(t, err)
	require.Equal(t, int64(0), v.Counters()[string(EventCacheHit)])
	require.Equal(t, int64(0), v.Counters()[string(EventCacheMiss)])
}

func TestValidator_JWSRefreshToken(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	issuerID := "https://issuer.example"
	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, issuerID)

	raw := ti.sign(t, jwt.MapClaims{
		"iss": issuerID,
		"sub": "user-1",
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})

	content, err := v.CreateRefreshToken(raw)
	require.NoError(t, err)
	require.False(t, content.Opaque)
	require.Equal(t, "user-1", content.Subject)
	require.Equal(t, issuerID, content.Issuer)
}

func TestValidator_OpaqueRefreshToken(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            "https://issuer.example",
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)

	content, err := v.CreateRefreshToken("opaque-refresh-token-no-dots")
	require.NoError(t, err)
	require.True(t, content.Opaque)
}

func TestValidator_New_AllowsEmptyExpectedAudiences(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	issuerID := "https://issuer.example"
	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            issuerID,
			JwksURL:           ti.url,
			AllowedAlgorithms: []string{"RS256"},
			// ExpectedAudiences intentionally left empty: spec.md §3 says
			// this disables the audience check rather than being rejected
			// at construction time.
		}},
	})
	require.NoError(t, err)
	waitHealthy(t, v, issuerID)

	raw := ti.sign(t, jwt.MapClaims{
		"iss": issuerID,
		"sub": "user-1",
		"aud": "whatever-client-wants",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err = v.CreateAccessToken(raw)
	require.NoError(t, err)
}

func TestValidator_EmptyTokenRejectedBeforeParsing(t *testing.T) {
	ti := newTestIssuer(t)
	defer ti.srv.Close()

	v, err := New(context.Background(), Options{
		Issuers: []IssuerOptions{{
			Issuer:            "https://issuer.example",
			JwksURL:           ti.url,
			ExpectedAudiences: []string{"client-1"},
			AllowedAlgorithms: []string{"RS256"},
		}},
	})
	require.NoError(t, err)

	_, err = v.CreateAccessToken("")
	require.Error(t, err)
	verr := err.(*ValidationError)
	require.Equal(t, KindTokenEmpty, verr.Kind)
}
