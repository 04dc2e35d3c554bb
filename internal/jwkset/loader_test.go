package jwkset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJwks = `{"keys":[{"kty":"RSA","kid":"key-1","n":"abc","e":"AQAB"}]}`

func TestLoader_FetchOnce_SuccessTransitionsToOk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleJwks))
	}))
	defer srv.Close()

	l := NewLoader("https://issuer.example", Config{JwksURL: srv.URL, RetryMaxAttempts: 1}, nil)
	assert.Equal(t, Uninitialized, l.GetCurrentStatus())

	l.fetchOnce(context.Background())

	assert.Equal(t, Ok, l.GetCurrentStatus())
	require.NotNil(t, l.CurrentSnapshot())
	assert.Equal(t, `"v1"`, l.CurrentSnapshot().ETag)
	assert.Len(t, l.CurrentSnapshot().Keys, 1)
}

func TestLoader_FetchOnce_304KeepsSnapshotIdentity(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleJwks))
	}))
	defer srv.Close()

	l := NewLoader("https://issuer.example", Config{JwksURL: srv.URL, RetryMaxAttempts: 1}, nil)

	l.fetchOnce(context.Background())
	first := l.CurrentSnapshot()
	require.NotNil(t, first)

	l.fetchOnce(context.Background())
	second := l.CurrentSnapshot()

	assert.Same(t, first, second, "snapshot identity must not change on a 304")
	assert.Equal(t, Ok, l.GetCurrentStatus())
	assert.Equal(t, 2, hits)
}

func TestLoader_FetchOnce_PermanentFailureWithNoPriorSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLoader("https://issuer.example", Config{JwksURL: srv.URL, RetryMaxAttempts: 1, FetchTimeout: time.Second}, nil)
	l.fetchOnce(context.Background())

	assert.Equal(t, Error, l.GetCurrentStatus())
	assert.Nil(t, l.CurrentSnapshot())
}

func TestLoader_FetchOnce_DegradesQuietlyWhenPriorSnapshotExists(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleJwks))
	}))
	defer srv.Close()

	l := NewLoader("https://issuer.example", Config{JwksURL: srv.URL, RetryMaxAttempts: 1}, nil)
	l.fetchOnce(context.Background())
	require.Equal(t, Ok, l.GetCurrentStatus())
	goodSnap := l.CurrentSnapshot()

	fail = true
	l.fetchOnce(context.Background())

	assert.Equal(t, Ok, l.GetCurrentStatus(), "status should stay Ok and keep serving the stale snapshot")
	assert.Same(t, goodSnap, l.CurrentSnapshot())
}

func TestLoader_GetCurrentStatus_NonBlocking(t *testing.T) {
	l := NewLoader("https://unreachable.example.invalid", Config{JwksURL: "http://127.0.0.1:1"}, nil)
	start := time.Now()
	status := l.GetCurrentStatus()
	assert.Less(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, Uninitialized, status)
}

func TestLoader_GetKeyInfo_NeverTriggersLoad(t *testing.T) {
	l := NewLoader("https://issuer.example", Config{JwksURL: "http://127.0.0.1:1"}, nil)
	_, ok := l.GetKeyInfo("any-kid")
	assert.False(t, ok)
	assert.Equal(t, Uninitialized, l.GetCurrentStatus(), "GetKeyInfo must not start a fetch")
}
