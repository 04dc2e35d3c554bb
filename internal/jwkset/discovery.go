package jwkset

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ResolveJwksURI fetches and minimally parses an OpenID well-known
// document, returning its jwks_uri. Grounded on the teacher's
// auth/oidc.go discovery flow (oidc.NewProvider against ProviderURL);
// unlike the teacher, jwtguard only wants the jwks_uri out of the
// document — it builds its own verifier rather than using
// oidc.Provider's bundled one, so signature verification stays under
// this module's own SignatureVerifier as spec.md §4.6 requires.
func ResolveJwksURI(ctx context.Context, issuerURL string) (string, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return "", fmt.Errorf("jwkset: well-known discovery failed: %w", err)
	}

	var claims struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&claims); err != nil {
		return "", fmt.Errorf("jwkset: failed to read discovery claims: %w", err)
	}
	if claims.JwksURI == "" {
		return "", fmt.Errorf("jwkset: discovery document has no jwks_uri")
	}
	return claims.JwksURI, nil
}
