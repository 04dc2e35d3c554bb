// Package jwtguard is a multi-issuer JWT/JWS validation engine: given a
// set of trusted issuers, each backed by its own JWKS, it validates
// access, ID, and refresh tokens and returns typed, claim-checked
// content.
//
// jwtguard is a library, not a service: it never binds a listener, and its
// internal logger is a no-op until internal/logging is configured. Construction
// (New) wires a background JWKS loader per issuer and starts their
// refresh loops; the returned Validator is safe for concurrent use by
// many goroutines without external locking.
package jwtguard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/tokenforge/jwtguard/internal/accesscache"
	"github.com/tokenforge/jwtguard/internal/claimcheck"
	"github.com/tokenforge/jwtguard/internal/eventcounter"
	"github.com/tokenforge/jwtguard/internal/header"
	"github.com/tokenforge/jwtguard/internal/issuer"
	"github.com/tokenforge/jwtguard/internal/jwkset"
	"github.com/tokenforge/jwtguard/internal/jwtdecode"
	"github.com/tokenforge/jwtguard/internal/logging"
	"github.com/tokenforge/jwtguard/internal/monitor"
	"github.com/tokenforge/jwtguard/internal/signature"
	"github.com/tokenforge/jwtguard/internal/tokencontent"
)

var structValidator = validator.New()

// IssuerOptions describes one trusted issuer at construction time.
type IssuerOptions struct {
	Issuer            string   `validate:"required"`
	JwksURL           string   // set this, or IssuerURL below, not both
	IssuerURL         string   // enables well-known discovery of jwks_uri
	ExpectedAudiences []string // empty disables the audience check for access tokens (spec.md §3)
	ExpectedAzp       string
	AllowedAlgorithms []string `validate:"required,min=1"`
	RequireAzp        bool
	AccessTokenTyp    []string
	IDTokenTyp        []string
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	RetryMaxAttempts  int
	MaxJwksBytes      int64
	HTTPClient        *http.Client
}

// Options configures a Validator at construction time.
type Options struct {
	Issuers             []IssuerOptions `validate:"required,min=1,dive"`
	CacheMaxSize        int
	CacheClockSkew      time.Duration
	ClaimsClockSkew     time.Duration
	RedisMirror         *accesscache.RedisMirrorConfig
	MonitorWindowSize   int
	EnabledMeasurements []monitor.MeasurementType
	MaxTokenBytes       int
}

// Validator validates access, ID, and refresh tokens against the issuers
// supplied at construction. Build one with New and keep it for the
// lifetime of the process; it owns background goroutines per issuer.
type Validator struct {
	catalog   *issuer.Catalog
	verifiers map[string]*signature.Verifier
	cache     *accesscache.Cache
	counter   *eventcounter.Counter
	mon       *monitor.Monitor
	limits    jwtdecode.Limits
	claimSkew time.Duration
}

// New validates opts, builds one JWKS Loader per issuer, starts their
// background refresh, schedules a sweep of expired access-token cache
// entries every 5 minutes (when the cache is enabled), and returns a ready
// Validator. The initial JWKS
// fetch for every issuer runs asynchronously: New does not block on
// network I/O, matching spec.md §5's startup ordering.
func New(ctx context.Context, opts Options) (*Validator, error) {
	if err := structValidator.Struct(opts); err != nil {
		return nil, fmt.Errorf("jwtguard: invalid options: %w", err)
	}

	counter := eventcounter.New()
	configs := make([]issuer.Config, 0, len(opts.Issuers))
	verifiers := make(map[string]*signature.Verifier, len(opts.Issuers))

	for _, io := range opts.Issuers {
		if err := structValidator.Struct(io); err != nil {
			return nil, fmt.Errorf("jwtguard: invalid issuer options for %q: %w", io.Issuer, err)
		}
		if io.JwksURL == "" && io.IssuerURL == "" {
			return nil, fmt.Errorf("jwtguard: issuer %q must set JwksURL or IssuerURL", io.Issuer)
		}

		loader := jwkset.NewLoader(io.Issuer, jwkset.Config{
			JwksURL:          io.JwksURL,
			IssuerURL:        io.IssuerURL,
			RefreshInterval:  io.RefreshInterval,
			FetchTimeout:     io.FetchTimeout,
			RetryMaxAttempts: io.RetryMaxAttempts,
			MaxJwksBytes:     io.MaxJwksBytes,
			HTTPClient:       io.HTTPClient,
		}, counter.Increment)
		loader.StartAsyncLoad(ctx)

		cfg := issuer.Config{
			Issuer:            io.Issuer,
			ExpectedAudiences: io.ExpectedAudiences,
			ExpectedAzp:       io.ExpectedAzp,
			AllowedAlgorithms: io.AllowedAlgorithms,
			RequireAzp:        io.RequireAzp,
			AccessTokenTyp:    io.AccessTokenTyp,
			IDTokenTyp:        io.IDTokenTyp,
			Loader:            loader,
		}
		missing, err := cfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("jwtguard: issuer %q: %w", io.Issuer, err)
		}
		for _, m := range missing {
			counter.Increment("missing-recommended-element")
			logging.Validator().Warn().Str("issuer", io.Issuer).Str("element", m).Msg("issuer config is missing a recommended element")
		}
		configs = append(configs, cfg)
		verifiers[io.Issuer] = signature.New(io.AllowedAlgorithms)
	}

	catalog, err := issuer.NewCatalog(configs)
	if err != nil {
		return nil, err
	}

	var mirror *accesscache.RedisMirror
	if opts.RedisMirror != nil {
		mirror = accesscache.NewRedisMirror(*opts.RedisMirror)
	}

	limits := jwtdecode.DefaultLimits()
	if opts.MaxTokenBytes > 0 {
		limits.MaxTokenBytes = opts.MaxTokenBytes
	}

	claimSkew := opts.ClaimsClockSkew
	if claimSkew <= 0 {
		claimSkew = 60 * time.Second
	}

	cache := accesscache.New(opts.CacheMaxSize, opts.CacheClockSkew, mirror)
	if opts.CacheMaxSize > 0 {
		sweeper := cron.New()
		_, _ = sweeper.AddFunc("@every 5m", func() { cache.Sweep() })
		sweeper.Start()
	}

	return &Validator{
		catalog:   catalog,
		verifiers: verifiers,
		cache:     cache,
		counter:   counter,
		mon:       monitor.New(opts.MonitorWindowSize, opts.EnabledMeasurements),
		limits:    limits,
		claimSkew: claimSkew,
	}, nil
}

// Counters exposes a read-only snapshot of every security event counted
// since construction.
func (v *Validator) Counters() map[string]int64 {
	return v.counter.Snapshot()
}

// Measurements exposes a latency percentile summary for one pipeline
// stage; stages not enabled at construction report a zero Summary.
func (v *Validator) Measurements(t monitor.MeasurementType) monitor.Summary {
	return v.mon.Summarize(t)
}

// IssuerHealth reports the JWKS loader status for issuer, or
// jwkset.Uninitialized if issuer is unknown.
func (v *Validator) IssuerHealth(issuerID string) jwkset.LoaderStatus {
	cfg, kind := v.catalog.Resolve(issuerID)
	if kind == issuer.ResolveUnknownIssuer {
		return jwkset.Uninitialized
	}
	return cfg.Loader.GetCurrentStatus()
}

func (v *Validator) preCheck(raw string) *ValidationError {
	if raw == "" {
		return NewValidationError(KindTokenEmpty, "token is empty")
	}
	if v.limits.MaxTokenBytes > 0 && len(raw) > v.limits.MaxTokenBytes {
		return NewValidationError(KindTokenOversize, "token exceeds max_token_size")
	}
	return nil
}

// CreateAccessToken validates raw as an access token and returns its
// typed content. The validation pipeline runs pre-check, cache lookup,
// decode, issuer resolve, header validate, signature verify, build,
// claims validate, cache store, in that order, short-circuiting at the
// first failing stage.
func (v *Validator) CreateAccessToken(raw string) (*tokencontent.AccessTokenContent, error) {
	done := v.mon.Start(monitor.CompleteValidation)
	defer done.StopAndRecord()

	if verr := v.preCheck(raw); verr != nil {
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	fp := accesscache.Fingerprint(raw)
	lookup := v.mon.Start(monitor.CacheLookup)
	cached, hit := v.cache.Get(fp)
	lookup.StopAndRecord()
	if hit {
		v.counter.Increment(string(EventCacheHit))
		content, ok := cached.(*tokencontent.AccessTokenContent)
		if ok {
			return content, nil
		}
	}
	v.counter.Increment(string(EventCacheMiss))

	decoded, derr := jwtdecode.Decode(raw, v.limits)
	if derr != nil {
		verr := fromDecodeError(derr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	cfg, rkind := v.catalog.Resolve(decoded.Issuer)
	if rkind == issuer.ResolveUnknownIssuer {
		verr := NewValidationError(KindUnknownIssuer, fmt.Sprintf("issuer %q is not configured", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}
	if rkind == issuer.ResolveNotHealthy {
		verr := NewValidationError(KindIssuerNotHealthy, fmt.Sprintf("issuer %q has no healthy JWKS snapshot", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	alg, kid, herr := header.Validate(decoded.Header, jwtdecode.KindAccess, header.Policy{
		AllowedAlgorithms: cfg.AllowedAlgorithms,
		AccessTokenTyp:    cfg.HeaderAccessTyp(),
	})
	if herr != nil {
		verr := fromHeaderError(herr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	sig, sigErr := decoded.SignatureBytes()
	if sigErr != nil {
		verr := NewValidationError(KindMalformed, "signature segment is not valid base64url")
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	verifier := v.verifiers[cfg.Issuer]
	if verifyErr := verifier.Verify(alg, kid, decoded.SignedBytes(), sig, cfg.Loader); verifyErr != nil {
		verr := fromSignatureError(verifyErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	content, buildErr := tokencontent.BuildAccessToken(decoded.Payload)
	if buildErr != nil {
		verr := NewValidationError(KindTokenBuildFailed, buildErr.Error())
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	if claimErr := claimcheck.Validate(decoded.Payload, jwtdecode.KindAccess, claimcheck.Policy{
		Issuer:            cfg.Issuer,
		ExpectedAudiences: cfg.ExpectedAudiences,
		ExpectedAzp:       cfg.ExpectedAzp,
		RequireAzp:        cfg.RequireAzp,
		ClockSkew:         v.claimSkew,
	}, claimcheck.Context{ClockSkew: v.claimSkew}); claimErr != nil {
		verr := fromClaimError(claimErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	v.cache.Put(fp, content, content.ExpiresAt)
	v.counter.Increment(string(EventAccessTokenCreated))
	return content, nil
}

// CreateIdToken validates raw as an ID token and returns its typed
// content, following the same pipeline as CreateAccessToken with
// ID-token-specific header/claim policy. Unlike access tokens, ID tokens
// are never looked up in or stored into the access-token cache (spec.md
// §2, §4.10): they're validated fresh on every call.
func (v *Validator) CreateIdToken(raw string) (*tokencontent.IdTokenContent, error) {
	done := v.mon.Start(monitor.CompleteValidation)
	defer done.StopAndRecord()

	if verr := v.preCheck(raw); verr != nil {
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	decoded, derr := jwtdecode.Decode(raw, v.limits)
	if derr != nil {
		verr := fromDecodeError(derr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	cfg, rkind := v.catalog.Resolve(decoded.Issuer)
	if rkind == issuer.ResolveUnknownIssuer {
		verr := NewValidationError(KindUnknownIssuer, fmt.Sprintf("issuer %q is not configured", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}
	if rkind == issuer.ResolveNotHealthy {
		verr := NewValidationError(KindIssuerNotHealthy, fmt.Sprintf("issuer %q has no healthy JWKS snapshot", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	alg, kid, herr := header.Validate(decoded.Header, jwtdecode.KindID, header.Policy{
		AllowedAlgorithms: cfg.AllowedAlgorithms,
		IDTokenTyp:        cfg.HeaderIDTyp(),
	})
	if herr != nil {
		verr := fromHeaderError(herr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	sig, sigErr := decoded.SignatureBytes()
	if sigErr != nil {
		verr := NewValidationError(KindMalformed, "signature segment is not valid base64url")
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	verifier := v.verifiers[cfg.Issuer]
	if verifyErr := verifier.Verify(alg, kid, decoded.SignedBytes(), sig, cfg.Loader); verifyErr != nil {
		verr := fromSignatureError(verifyErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	content, buildErr := tokencontent.BuildIdToken(decoded.Payload)
	if buildErr != nil {
		verr := NewValidationError(KindTokenBuildFailed, buildErr.Error())
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	if claimErr := claimcheck.Validate(decoded.Payload, jwtdecode.KindID, claimcheck.Policy{
		Issuer:            cfg.Issuer,
		ExpectedAudiences: cfg.ExpectedAudiences,
		ExpectedAzp:       cfg.ExpectedAzp,
		RequireAzp:        cfg.RequireAzp,
		ClockSkew:         v.claimSkew,
	}, claimcheck.Context{ClockSkew: v.claimSkew}); claimErr != nil {
		verr := fromClaimError(claimErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	v.counter.Increment(string(EventIDTokenCreated))
	return content, nil
}

// CreateRefreshToken validates raw as a refresh token. JWS-shaped refresh
// tokens run decode, issuer resolve, header validate (alg and crit only, no
// typ), signature verify, claims validate and build, in that order; they
// skip the access-token cache and the audience/azp checks. A
// single-segment value is treated as opaque and never reaches the JSON
// parser at all, per spec.md §4.3.
func (v *Validator) CreateRefreshToken(raw string) (*tokencontent.RefreshTokenContent, error) {
	done := v.mon.Start(monitor.CompleteValidation)
	defer done.StopAndRecord()

	if verr := v.preCheck(raw); verr != nil {
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	if !looksLikeJws(raw) {
		decoded, derr := jwtdecode.DecodeOpaque(raw, v.limits)
		if derr != nil {
			verr := fromDecodeError(derr)
			v.counter.Increment(string(verr.EventType))
			return nil, verr
		}
		content, buildErr := tokencontent.BuildRefreshToken(nil, true, accesscache.Fingerprint(decoded.Raw))
		if buildErr != nil {
			verr := NewValidationError(KindTokenBuildFailed, buildErr.Error())
			v.counter.Increment(string(verr.EventType))
			return nil, verr
		}
		v.counter.Increment(string(EventRefreshTokenCreated))
		return content, nil
	}

	decoded, derr := jwtdecode.Decode(raw, v.limits)
	if derr != nil {
		verr := fromDecodeError(derr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	cfg, rkind := v.catalog.Resolve(decoded.Issuer)
	if rkind == issuer.ResolveUnknownIssuer {
		verr := NewValidationError(KindUnknownIssuer, fmt.Sprintf("issuer %q is not configured", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}
	if rkind == issuer.ResolveNotHealthy {
		verr := NewValidationError(KindIssuerNotHealthy, fmt.Sprintf("issuer %q has no healthy JWKS snapshot", decoded.Issuer))
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	alg, kid, herr := header.Validate(decoded.Header, jwtdecode.KindRefresh, header.Policy{
		AllowedAlgorithms: cfg.AllowedAlgorithms,
	})
	if herr != nil {
		verr := fromHeaderError(herr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	sig, sigErr := decoded.SignatureBytes()
	if sigErr != nil {
		verr := NewValidationError(KindMalformed, "signature segment is not valid base64url")
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	verifier := v.verifiers[cfg.Issuer]
	if verifyErr := verifier.Verify(alg, kid, decoded.SignedBytes(), sig, cfg.Loader); verifyErr != nil {
		verr := fromSignatureError(verifyErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	if claimErr := claimcheck.Validate(decoded.Payload, jwtdecode.KindRefresh, claimcheck.Policy{
		Issuer:    cfg.Issuer,
		ClockSkew: v.claimSkew,
	}, claimcheck.Context{ClockSkew: v.claimSkew}); claimErr != nil {
		verr := fromClaimError(claimErr)
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	content, buildErr := tokencontent.BuildRefreshToken(decoded.Payload, false, accesscache.Fingerprint(raw))
	if buildErr != nil {
		verr := NewValidationError(KindTokenBuildFailed, buildErr.Error())
		v.counter.Increment(string(verr.EventType))
		return nil, verr
	}

	v.counter.Increment(string(EventRefreshTokenCreated))
	return content, nil
}

func looksLikeJws(raw string) bool {
	dots := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			dots++
		}
	}
	return dots == 2
}
