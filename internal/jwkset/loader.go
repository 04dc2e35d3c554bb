package jwkset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tokenforge/jwtguard/internal/logging"
)

// Config configures one issuer's Loader. Either JwksURL or IssuerURL must
// be set; when only IssuerURL is set the jwks_uri is resolved from the
// issuer's well-known document on first load.
type Config struct {
	JwksURL          string
	IssuerURL        string
	RefreshInterval  time.Duration
	FetchTimeout     time.Duration
	RetryMaxAttempts int
	MaxJwksBytes     int64
	HTTPClient       *http.Client
}

func (c Config) withDefaults() Config {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 60 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.MaxJwksBytes <= 0 {
		c.MaxJwksBytes = 512 * 1024
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	return c
}

// Loader owns one issuer's JWKS snapshot and its background refresh.
// Grounded on the teacher's Cache construction/retry idiom
// (internal/cache.NewCache's pool/timeout defaults), replacing "Redis
// connection" with "HTTP fetch + ETag cache" as the thing being pooled
// and retried.
//
// Concurrency: GetCurrentStatus and GetKeyInfo never block and never
// trigger I/O. Exactly one fetch is in flight at a time per Loader,
// enforced by the fetching CAS flag below; a scheduled tick that finds
// one already running is a no-op, not a queued second fetch.
type Loader struct {
	cfg      Config
	issuer   string
	snapshot atomic.Pointer[Snapshot]
	status   atomic.Int32

	fetching      atomic.Bool
	lastFetchedAt atomic.Int64
	jwksURL       atomic.Pointer[string]

	cronJob *cron.Cron
	onEvent func(eventType string)
}

// NewLoader constructs a Loader in the Uninitialized state. No I/O
// happens until StartAsyncLoad is called.
func NewLoader(issuer string, cfg Config, onEvent func(eventType string)) *Loader {
	cfg = cfg.withDefaults()
	l := &Loader{cfg: cfg, issuer: issuer, onEvent: onEvent}
	l.status.Store(int32(Uninitialized))
	if cfg.JwksURL != "" {
		url := cfg.JwksURL
		l.jwksURL.Store(&url)
	}
	return l
}

func (l *Loader) emit(event string) {
	if l.onEvent != nil {
		l.onEvent(event)
	}
}

// GetCurrentStatus is non-blocking and triggers no I/O, satisfying
// spec.md's readiness-probe requirement.
func (l *Loader) GetCurrentStatus() LoaderStatus {
	return LoaderStatus(l.status.Load())
}

// IsHealthy is exactly GetCurrentStatus() == Ok.
func (l *Loader) IsHealthy() bool {
	return l.GetCurrentStatus() == Ok
}

// CurrentSnapshot returns the latest atomically-swapped Snapshot, or nil
// before the first successful load.
func (l *Loader) CurrentSnapshot() *Snapshot {
	return l.snapshot.Load()
}

// SetSnapshotForTesting installs snap directly, bypassing the fetch path
// entirely. Exists so packages that consume a Loader (signature, issuer)
// can exercise it against fixed key material without standing up an HTTP
// server; production code has no reason to call this.
func (l *Loader) SetSnapshotForTesting(snap *Snapshot) {
	l.snapshot.Store(snap)
	if snap != nil {
		l.status.Store(int32(Ok))
	}
}

// GetKeyInfo looks up kid in the current snapshot. It never triggers a
// load: an absent or not-yet-loaded snapshot simply yields "not found".
func (l *Loader) GetKeyInfo(kid string) (JwkKey, bool) {
	snap := l.snapshot.Load()
	if snap == nil {
		return JwkKey{}, false
	}
	if kid == "" {
		return snap.SoleKey()
	}
	return snap.KeyByKid(kid)
}

// StartAsyncLoad schedules the initial fetch and the periodic refresh
// timer. Called once at host startup (spec.md §5 "Startup ordering").
// Returns immediately; the initial fetch and every refresh run on a
// background goroutine.
func (l *Loader) StartAsyncLoad(ctx context.Context) {
	l.status.CompareAndSwap(int32(Uninitialized), int32(Loading))
	go l.fetchOnce(ctx)

	l.cronJob = cron.New()
	spec := fmt.Sprintf("@every %s", l.cfg.RefreshInterval)
	_, _ = l.cronJob.AddFunc(spec, func() {
		l.fetchOnce(ctx)
	})
	l.cronJob.Start()
}

// Stop halts the background refresh timer.
func (l *Loader) Stop() {
	if l.cronJob != nil {
		l.cronJob.Stop()
	}
}

func (l *Loader) fetchOnce(ctx context.Context) {
	if !l.fetching.CompareAndSwap(false, true) {
		return // a fetch is already in flight; this tick coalesces into it
	}
	defer l.fetching.Store(false)

	url, err := l.resolveURL(ctx)
	if err != nil {
		l.emit("jwks-uri-resolution-failed")
		l.onFetchFailure()
		return
	}

	prevSnap := l.snapshot.Load()
	etag := ""
	if prevSnap != nil {
		etag = prevSnap.ETag
	}

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < l.cfg.RetryMaxAttempts; attempt++ {
		status, body, newEtag, ferr := l.attemptFetch(ctx, url, etag)
		if ferr != nil {
			lastErr = ferr
			time.Sleep(backoff)
			if backoff*2 < l.cfg.FetchTimeout {
				backoff *= 2
			}
			continue
		}

		switch status {
		case http.StatusNotModified:
			l.lastFetchedAt.Store(time.Now().UnixNano())
			if prevSnap != nil && prevSnap.Status != Ok {
				l.status.Store(int32(Ok))
			}
			return
		case http.StatusOK:
			if err := l.applyBody(body, newEtag); err != nil {
				lastErr = err
				l.emit("jwks-json-parse-failed")
				time.Sleep(backoff)
				continue
			}
			l.lastFetchedAt.Store(time.Now().UnixNano())
			l.status.Store(int32(Ok))
			return
		default:
			lastErr = fmt.Errorf("jwkset: unexpected status %d", status)
			time.Sleep(backoff)
			if backoff*2 < l.cfg.FetchTimeout {
				backoff *= 2
			}
		}
	}

	if lastErr != nil {
		logging.Jwks().Warn().Str("issuer", l.issuer).Err(lastErr).Msg("jwks fetch exhausted retries")
	}
	l.onFetchFailure()
}

func (l *Loader) onFetchFailure() {
	l.emit("jwks-load-failed")
	if l.snapshot.Load() == nil {
		l.status.Store(int32(Error))
		return
	}
	// A prior good snapshot exists: degrade quietly and keep serving it.
	logging.Jwks().Warn().Str("issuer", l.issuer).Msg("jwks refresh failed, serving stale snapshot")
}

func (l *Loader) resolveURL(ctx context.Context) (string, error) {
	if u := l.jwksURL.Load(); u != nil {
		return *u, nil
	}
	resolved, err := ResolveJwksURI(ctx, l.cfg.IssuerURL)
	if err != nil {
		return "", err
	}
	l.jwksURL.Store(&resolved)
	return resolved, nil
}

func (l *Loader) attemptFetch(ctx context.Context, url, etag string) (status int, body []byte, newEtag string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, nil, etag, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, "", nil
	}

	limited := io.LimitReader(resp.Body, l.cfg.MaxJwksBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return 0, nil, "", err
	}
	if int64(len(data)) > l.cfg.MaxJwksBytes {
		return 0, nil, "", fmt.Errorf("jwkset: document exceeds max_jwks_bytes")
	}

	return resp.StatusCode, data, resp.Header.Get("ETag"), nil
}

func (l *Loader) applyBody(body []byte, etag string) error {
	result, err := ParseDocument(body)
	if err != nil {
		return err
	}
	if result.ExceededLimit {
		l.emit("jwks-json-parse-failed")
		logging.Jwks().Warn().Str("issuer", l.issuer).Int("keys", len(result.Keys)).Msg("jwks document exceeds soft key limit")
	}
	if result.UnsupportedTypes {
		l.emit("unsupported-jwks-type")
		logging.Jwks().Warn().Str("issuer", l.issuer).Msg("jwks document contains a key with an unsupported kty")
	}

	snap := &Snapshot{
		Keys:     result.Keys,
		Issuer:   l.issuer,
		ETag:     etag,
		LoadedAt: time.Now().UnixNano(),
		Status:   Ok,
	}
	l.snapshot.Store(snap)
	return nil
}
