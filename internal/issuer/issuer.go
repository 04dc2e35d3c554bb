// Package issuer implements the issuer catalog and resolver described in
// spec.md §4.4: a frozen, exact-match map from issuer identifier to its
// configuration and JWKS loader, gated by that loader's health.
//
// Grounded on the teacher's internal/auth/providers.go (per-provider
// attribute-mapping templates built once at startup and looked up by
// issuer/domain at request time), generalized from "OIDC provider
// template" to "issuer validation policy".
package issuer

import (
	"fmt"

	"github.com/tokenforge/jwtguard/internal/jwkset"
)

// Config is one issuer's validation policy. Built once at startup and
// never mutated afterward.
type Config struct {
	Issuer            string `validate:"required"`
	ExpectedAudiences []string // empty disables the audience check for access tokens (spec.md §3)
	ExpectedAzp       string
	AllowedAlgorithms []string `validate:"required,min=1"`
	RequireAzp        bool
	AccessTokenTyp    []string
	IDTokenTyp        []string
	Loader            *jwkset.Loader `validate:"required"`
}

// HeaderAccessTyp and HeaderIDTyp expose the typ allowlist for header
// validation.
func (c Config) HeaderAccessTyp() []string { return c.AccessTokenTyp }
func (c Config) HeaderIDTyp() []string     { return c.IDTokenTyp }

// Validate performs the construction-time checks spec.md §4.4 calls for
// beyond struct tags: it doesn't reject a missing audience/azp outright,
// but it does report which recommended elements are absent so the host
// can log MISSING_RECOMMENDED_ELEMENT once at startup instead of per
// request.
func (c Config) Validate() (missing []string, err error) {
	if c.Issuer == "" {
		return nil, fmt.Errorf("issuer: issuer identifier must not be empty")
	}
	if c.Loader == nil {
		return nil, fmt.Errorf("issuer: %s: loader must not be nil", c.Issuer)
	}
	if len(c.AllowedAlgorithms) == 0 {
		return nil, fmt.Errorf("issuer: %s: at least one allowed algorithm is required", c.Issuer)
	}
	if len(c.ExpectedAudiences) == 0 {
		missing = append(missing, "expected_audiences")
	}
	if c.ExpectedAzp == "" {
		missing = append(missing, "expected_azp")
	}
	return missing, nil
}

// Catalog is the frozen issuer -> Config map built at startup.
type Catalog struct {
	byIssuer map[string]Config
}

// NewCatalog builds a Catalog from a set of issuer configs, keyed by
// Config.Issuer. A duplicate issuer identifier is a construction error:
// spec.md has no notion of issuer aliasing.
func NewCatalog(configs []Config) (*Catalog, error) {
	byIssuer := make(map[string]Config, len(configs))
	for _, c := range configs {
		if _, exists := byIssuer[c.Issuer]; exists {
			return nil, fmt.Errorf("issuer: duplicate issuer %q in catalog", c.Issuer)
		}
		byIssuer[c.Issuer] = c
	}
	return &Catalog{byIssuer: byIssuer}, nil
}

// ResolveErrKind distinguishes the two resolution failures spec.md §4.4
// names, so the caller can map each to its Kind/EventType.
type ResolveErrKind int

const (
	ResolveOk ResolveErrKind = iota
	ResolveUnknownIssuer
	ResolveNotHealthy
)

// Resolve performs exact-match lookup by issuer identifier, then gates on
// the matched issuer's loader health. It never triggers a load. On
// ResolveNotHealthy the matched Config is still returned, so a caller can
// read its loader's status.
func (c *Catalog) Resolve(issuer string) (Config, ResolveErrKind) {
	cfg, ok := c.byIssuer[issuer]
	if !ok {
		return Config{}, ResolveUnknownIssuer
	}
	if !cfg.Loader.IsHealthy() {
		return cfg, ResolveNotHealthy
	}
	return cfg, ResolveOk
}

// Len reports how many issuers are registered, mainly for diagnostics.
func (c *Catalog) Len() int {
	return len(c.byIssuer)
}
