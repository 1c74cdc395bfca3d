package authority

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	wellKnownSuffix   = ".well-known/openid-configuration"
	tenantPlaceholder = "{tenant}"
	deviceCodeSegment = "devicecode"
	commonTenant      = "common"
)

// instanceDiscoveryResponse mirrors the cloud instance discovery document:
// one or more alias groups, each naming the preferred network and cache
// hosts for the group.
type instanceDiscoveryResponse struct {
	TenantDiscoveryEndpoint string                   `json:"tenant_discovery_endpoint"`
	Metadata                []instanceDiscoveryEntry `json:"metadata"`
}

type instanceDiscoveryEntry struct {
	PreferredNetwork string   `json:"preferred_network"`
	PreferredCache   string   `json:"preferred_cache"`
	Aliases          []string `json:"aliases"`
}

func (e instanceDiscoveryEntry) hasAlias(host string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}

// entryForHost selects the alias group containing host, case-insensitively.
func (r instanceDiscoveryResponse) entryForHost(host string) (instanceDiscoveryEntry, bool) {
	for _, entry := range r.Metadata {
		if entry.hasAlias(host) {
			return entry, true
		}
	}
	return instanceDiscoveryEntry{}, false
}

// openIDConfiguration mirrors the subset of the OpenID provider metadata
// document consumed here. Endpoint values may carry the literal {tenant}
// placeholder.
type openIDConfiguration struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	Issuer                string `json:"issuer"`
	JWKSURI               string `json:"jwks_uri"`
}

func (d openIDConfiguration) complete() bool {
	return d.AuthorizationEndpoint != "" && d.TokenEndpoint != "" && d.Issuer != ""
}

// instanceDiscoveryURL builds the instance-discovery request for the
// authority host. The query carries the authority's own v2 authorization
// endpoint so the instance can validate the authority it is asked about.
func instanceDiscoveryURL(u AuthorityURL) string {
	tenant := u.Tenant()
	if tenant == "" {
		tenant = commonTenant
	}
	q := url.Values{}
	q.Set("api-version", "1.1")
	q.Set("authorization_endpoint", fmt.Sprintf("https://%s/%s/oauth2/v2.0/authorize", u.Host(), tenant))
	return fmt.Sprintf("https://%s/common/discovery/instance?%s", u.Host(), q.Encode())
}

// wellKnownURL appends the fixed well-known suffix to the canonical
// authority as-is. Policy-qualified (B2C) paths already encode the full
// tenant+policy base, so no path rewriting happens here; protocol variants
// differ only in how the returned document is templated afterwards.
func wellKnownURL(u AuthorityURL) string {
	return u.String() + wellKnownSuffix
}
