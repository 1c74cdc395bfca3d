// Package authority resolves an identity-provider authority URL into a
// trusted set of OAuth2/OIDC endpoints and the canonical host aliases used
// to partition a token cache. Resolution runs two steps in order: cloud
// instance discovery establishes which hostnames are equivalent aliases of
// the authority (and may rewrite the canonical host), then OIDC endpoint
// discovery retrieves the authorization/token/end-session endpoints. Each
// step prefers cached metadata, then caller-supplied static configuration,
// then the network, and fails closed when no source succeeds.
package authority

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"authorityd/metadata"
	"authorityd/transport"
)

type resolutionState int

const (
	stateUninitialized resolutionState = iota
	stateInFlight
	stateResolved
	stateFailed
)

// Options wires the external capabilities an Authority borrows. Zero-value
// fields select defaults: an in-memory store, the stock HTTP transport, and
// the built-in resolution strategies.
type Options struct {
	// ClientID partitions cached metadata between applications.
	ClientID string
	// Config supplies protocol mode, known authorities, and optional static
	// discovery documents.
	Config Config
	// Store persists resolved metadata between Authority instances.
	Store metadata.Store
	// Transport performs the discovery network calls.
	Transport transport.Client
	// Instance overrides the cloud-instance resolution strategy.
	Instance InstanceStrategy
	// Endpoints overrides the endpoint-discovery strategy.
	Endpoints EndpointStrategy
	// Now overrides the clock used for record expiry.
	Now func() time.Time
}

// Endpoints is the concrete, tenant-substituted endpoint set of a resolved
// authority.
type Endpoints struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	EndSessionEndpoint    string
	DeviceCodeEndpoint    string
	Issuer                string
	JWKSURI               string
}

// OAuth2 converts the endpoint set into the golang.org/x/oauth2 form.
func (e Endpoints) OAuth2() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:       e.AuthorizationEndpoint,
		TokenURL:      e.TokenEndpoint,
		DeviceAuthURL: e.DeviceCodeEndpoint,
	}
}

// Authority owns one canonical authority URL and its resolution state. An
// instance performs at most one meaningful resolution; construct a new
// instance (or reset the canonical authority) to re-resolve. Cache and
// transport handles are borrowed, never owned.
type Authority struct {
	mu sync.Mutex

	url      AuthorityURL
	clientID string
	cfg      Config
	store    metadata.Store
	instance InstanceStrategy
	endpoint EndpointStrategy
	now      func() time.Time

	state    resolutionState
	cloud    *CloudMetadata
	meta     *EndpointMetadata
	resolved Endpoints
}

// New canonicalizes raw and constructs an unresolved Authority.
func New(raw string, opts Options) (*Authority, error) {
	u, err := ParseAuthorityURL(raw)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = metadata.NewMemoryStore()
	}
	net := opts.Transport
	if net == nil {
		net = transport.NewHTTPClient(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	a := &Authority{
		url:      u,
		clientID: opts.ClientID,
		cfg:      opts.Config,
		store:    store,
		now:      now,
		state:    stateUninitialized,
	}
	a.instance = opts.Instance
	if a.instance == nil {
		a.instance = &instanceResolver{clientID: opts.ClientID, cfg: opts.Config, store: store, net: net, now: now}
	}
	a.endpoint = opts.Endpoints
	if a.endpoint == nil {
		a.endpoint = &endpointResolver{clientID: opts.ClientID, cfg: opts.Config, store: store, net: net, now: now}
	}
	return a, nil
}

// Resolve establishes trust in the authority and populates its endpoints.
// It is idempotent once resolved. Instance resolution runs first because it
// may rewrite the canonical host and determines the cache key endpoint
// resolution uses.
func (a *Authority) Resolve(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateResolved {
		return nil
	}
	a.state = stateInFlight

	cloud, err := a.instance.ResolveInstance(ctx, a.url)
	if err != nil {
		a.state = stateFailed
		return err
	}

	if cloud.PreferredNetwork != "" && !strings.EqualFold(cloud.PreferredNetwork, a.url.Host()) {
		a.url = a.url.WithHost(cloud.PreferredNetwork)
	}

	meta, err := a.endpoint.ResolveEndpoints(ctx, a.url, cloud.PreferredCache)
	if err != nil {
		a.state = stateFailed
		return err
	}

	if !(cloud.fromCache && meta.fromCache) {
		rec := metadata.Record{
			Aliases:               cloud.Aliases,
			PreferredNetwork:      cloud.PreferredNetwork,
			PreferredCache:        cloud.PreferredCache,
			AliasesFromNetwork:    cloud.FromNetwork,
			AuthorizationEndpoint: meta.AuthorizationEndpoint,
			TokenEndpoint:         meta.TokenEndpoint,
			EndSessionEndpoint:    meta.EndSessionEndpoint,
			Issuer:                meta.Issuer,
			JWKSURI:               meta.JWKSURI,
			EndpointsFromNetwork:  meta.FromNetwork,
			CanonicalAuthority:    a.url.String(),
			ExpiresAt:             a.now().Add(metadata.DefaultTTL),
		}
		// The record converges under the preferred cache host so that
		// differently-spelled aliases share one entry.
		if err := a.store.Put(ctx, metadata.Key(a.clientID, cloud.PreferredCache), rec); err != nil {
			a.state = stateFailed
			return fmt.Errorf("persist authority metadata: %w", err)
		}
	}

	a.cloud = &cloud
	a.meta = &meta
	a.resolved = buildEndpoints(a.url, meta, a.cfg.mode())
	a.state = stateResolved
	return nil
}

// CanonicalAuthority returns the current canonical authority string. After
// a successful resolve this reflects the preferred network host.
func (a *Authority) CanonicalAuthority() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.url.String()
}

// Tenant returns the tenant path segment of the canonical authority.
func (a *Authority) Tenant() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.url.Tenant()
}

// SetCanonicalAuthority replaces the canonical authority, applying the same
// validation as construction. Any completed discovery state is discarded
// and the instance returns to the unresolved state.
func (a *Authority) SetCanonicalAuthority(raw string) error {
	u, err := ParseAuthorityURL(raw)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.url = u
	a.state = stateUninitialized
	a.cloud = nil
	a.meta = nil
	a.resolved = Endpoints{}
	return nil
}

// Endpoints returns the full resolved endpoint set, or ErrNotResolved
// before a successful Resolve.
func (a *Authority) Endpoints() (Endpoints, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateResolved {
		return Endpoints{}, ErrNotResolved
	}
	return a.resolved, nil
}

// AuthorizationEndpoint returns the resolved authorization endpoint.
func (a *Authority) AuthorizationEndpoint() (string, error) {
	eps, err := a.Endpoints()
	return eps.AuthorizationEndpoint, err
}

// TokenEndpoint returns the resolved token endpoint.
func (a *Authority) TokenEndpoint() (string, error) {
	eps, err := a.Endpoints()
	return eps.TokenEndpoint, err
}

// EndSessionEndpoint returns the resolved end-session endpoint.
func (a *Authority) EndSessionEndpoint() (string, error) {
	eps, err := a.Endpoints()
	return eps.EndSessionEndpoint, err
}

// DeviceCodeEndpoint returns the device-code endpoint, derived from the
// token endpoint by rewriting its final path segment.
func (a *Authority) DeviceCodeEndpoint() (string, error) {
	eps, err := a.Endpoints()
	return eps.DeviceCodeEndpoint, err
}

// SelfSignedJWTAudience returns the issuer value a client assertion must
// name as its audience.
func (a *Authority) SelfSignedJWTAudience() (string, error) {
	eps, err := a.Endpoints()
	return eps.Issuer, err
}

// JWKSURI returns the provider's JSON Web Key Set location, when the
// discovery source exposed one.
func (a *Authority) JWKSURI() (string, error) {
	eps, err := a.Endpoints()
	return eps.JWKSURI, err
}

// PreferredCacheHost returns the host token caches should partition on.
func (a *Authority) PreferredCacheHost() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cloud == nil {
		return "", ErrNotResolved
	}
	return a.cloud.PreferredCache, nil
}

// IsAlias reports whether host belongs to the resolved alias set. It
// returns false, never an error, while cloud metadata is unresolved.
func (a *Authority) IsAlias(host string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cloud == nil {
		return false
	}
	return a.cloud.IsAlias(host)
}

// AliasesFromNetwork reports whether the alias set came from a network
// round trip. False until cloud metadata is resolved.
func (a *Authority) AliasesFromNetwork() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cloud != nil && a.cloud.FromNetwork
}

// EndpointsFromNetwork reports whether the endpoint set came from the
// well-known endpoint. False until endpoint metadata is resolved.
func (a *Authority) EndpointsFromNetwork() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta != nil && a.meta.FromNetwork
}

// Aliases returns a copy of the resolved alias set; nil when unresolved.
func (a *Authority) Aliases() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cloud == nil {
		return nil
	}
	out := make([]string, len(a.cloud.Aliases))
	copy(out, a.cloud.Aliases)
	return out
}

// DiscoveryComplete reports whether both cloud and endpoint metadata are
// populated with their required fields. It never returns an error.
func (a *Authority) DiscoveryComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateResolved || a.cloud == nil || a.meta == nil {
		return false
	}
	cloudOK := len(a.cloud.Aliases) > 0 && a.cloud.PreferredNetwork != "" && a.cloud.PreferredCache != ""
	endpointsOK := a.meta.AuthorizationEndpoint != "" && a.meta.TokenEndpoint != "" && a.meta.Issuer != ""
	return cloudOK && endpointsOK
}

// buildEndpoints turns templated endpoint metadata into the concrete set
// for one authority. The {tenant} placeholder is substituted only for AAD
// authorities whose path is a plain tenant: ADFS paths and policy-qualified
// (B2C) paths are already fully qualified, and plain OIDC providers carry
// no vendor placeholders.
func buildEndpoints(u AuthorityURL, meta EndpointMetadata, mode ProtocolMode) Endpoints {
	substitute := func(s string) string { return s }
	if mode == ProtocolModeAAD && !u.IsADFS() && !u.PolicyQualified() {
		tenant := u.Tenant()
		substitute = func(s string) string {
			return strings.ReplaceAll(s, tenantPlaceholder, tenant)
		}
	}

	eps := Endpoints{
		AuthorizationEndpoint: substitute(meta.AuthorizationEndpoint),
		TokenEndpoint:         substitute(meta.TokenEndpoint),
		EndSessionEndpoint:    substitute(meta.EndSessionEndpoint),
		Issuer:                substitute(meta.Issuer),
		JWKSURI:               substitute(meta.JWKSURI),
	}
	eps.DeviceCodeEndpoint = deviceCodeEndpoint(eps.TokenEndpoint)
	return eps
}

// deviceCodeEndpoint rewrites the token endpoint's final path segment from
// the token-issuance segment to the device-code segment. The device-code
// endpoint is never separately discovered.
func deviceCodeEndpoint(tokenEndpoint string) string {
	if tokenEndpoint == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(tokenEndpoint, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return trimmed
	}
	return trimmed[:i+1] + deviceCodeSegment
}
