package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"authorityd/metadata"
	"authorityd/transport"
)

// EndpointMetadata holds the discovered endpoint set for an authority. The
// values are templated: AAD-style documents carry the literal {tenant}
// placeholder, which the façade substitutes per authority.
type EndpointMetadata struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	EndSessionEndpoint    string
	Issuer                string
	JWKSURI               string
	// FromNetwork records whether the well-known endpoint was fetched, as
	// opposed to adopting static configuration.
	FromNetwork bool

	fromCache bool
}

// EndpointStrategy retrieves the OIDC endpoint metadata for a canonical
// authority. cacheHost is the preferred cache host established by instance
// resolution; cached endpoint lookups key on it.
type EndpointStrategy interface {
	ResolveEndpoints(ctx context.Context, u AuthorityURL, cacheHost string) (EndpointMetadata, error)
}

type endpointResolver struct {
	clientID string
	cfg      Config
	store    metadata.Store
	net      transport.Client
	now      func() time.Time
}

// ResolveEndpoints applies the resolution priority: previously cached
// endpoint metadata, then the caller's static document, then the well-known
// OpenID configuration endpoint. There is no synthesized fallback: a failed
// fetch propagates as ErrOpenIDConfigFetch.
func (r *endpointResolver) ResolveEndpoints(ctx context.Context, u AuthorityURL, cacheHost string) (EndpointMetadata, error) {
	if rec, ok, err := r.store.Get(ctx, metadata.Key(r.clientID, cacheHost)); err == nil && ok &&
		!rec.IsExpired(r.now()) && rec.HasEndpoints() {
		return EndpointMetadata{
			AuthorizationEndpoint: rec.AuthorizationEndpoint,
			TokenEndpoint:         rec.TokenEndpoint,
			EndSessionEndpoint:    rec.EndSessionEndpoint,
			Issuer:                rec.Issuer,
			JWKSURI:               rec.JWKSURI,
			FromNetwork:           rec.EndpointsFromNetwork,
			fromCache:             true,
		}, nil
	}

	if r.cfg.AuthorityMetadata != "" {
		var doc openIDConfiguration
		if err := json.Unmarshal([]byte(r.cfg.AuthorityMetadata), &doc); err != nil {
			return EndpointMetadata{}, fmt.Errorf("%w: %v", ErrInvalidAuthorityMetadata, err)
		}
		if !doc.complete() {
			return EndpointMetadata{}, fmt.Errorf("%w: missing required endpoint fields", ErrInvalidAuthorityMetadata)
		}
		return fromOpenIDConfiguration(doc, false), nil
	}

	var doc openIDConfiguration
	if err := r.net.GetJSON(ctx, wellKnownURL(u), &doc); err != nil {
		return EndpointMetadata{}, fmt.Errorf("%w: %w", ErrOpenIDConfigFetch, err)
	}
	if !doc.complete() {
		return EndpointMetadata{}, fmt.Errorf("%w: document from %s is missing required fields", ErrOpenIDConfigFetch, wellKnownURL(u))
	}
	return fromOpenIDConfiguration(doc, true), nil
}

func fromOpenIDConfiguration(doc openIDConfiguration, fromNetwork bool) EndpointMetadata {
	return EndpointMetadata{
		AuthorizationEndpoint: doc.AuthorizationEndpoint,
		TokenEndpoint:         doc.TokenEndpoint,
		EndSessionEndpoint:    doc.EndSessionEndpoint,
		Issuer:                doc.Issuer,
		JWKSURI:               doc.JWKSURI,
		FromNetwork:           fromNetwork,
	}
}
