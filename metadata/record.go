// Package metadata defines the persisted authority metadata record, the
// cache-key scheme, and the stores that keep records between resolutions.
package metadata

import (
	"fmt"
	"strings"
	"time"
)

// KeyPrefix namespaces authority metadata entries in a shared store.
const KeyPrefix = "authority-metadata"

// DefaultTTL bounds how long a cached record is honored before resolution
// must consult static configuration or the network again.
const DefaultTTL = 24 * time.Hour

// Key computes the cache key for a client/host pair. Key construction is a
// pure function so storage backends stay swappable.
func Key(clientID, host string) string {
	return fmt.Sprintf("%s-%s-%s", KeyPrefix, clientID, host)
}

// Record is the cached unit of authority metadata. It carries two halves:
// the cloud-discovery half (aliases and preferred hosts) and the endpoint
// half (OIDC endpoint templates). A record may hold either half or both.
// Endpoint values are stored templated, with the literal {tenant}
// placeholder intact, so one host-keyed record serves every tenant of that
// host.
type Record struct {
	Aliases            []string `json:"aliases"`
	PreferredNetwork   string   `json:"preferred_network"`
	PreferredCache     string   `json:"preferred_cache"`
	AliasesFromNetwork bool     `json:"aliases_from_network"`

	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	Issuer                string `json:"issuer"`
	JWKSURI               string `json:"jwks_uri,omitempty"`
	EndpointsFromNetwork  bool   `json:"endpoints_from_network"`

	CanonicalAuthority string    `json:"canonical_authority"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// IsExpired reports whether the record must be treated as absent. Expired
// records are not removed; they may still be overwritten by a later write.
func (r Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// HasAliases reports whether the cloud-discovery half is fully populated.
func (r Record) HasAliases() bool {
	return len(r.Aliases) > 0 && r.PreferredNetwork != "" && r.PreferredCache != ""
}

// HasEndpoints reports whether the endpoint half is fully populated.
func (r Record) HasEndpoints() bool {
	return r.AuthorizationEndpoint != "" && r.TokenEndpoint != "" && r.Issuer != ""
}

// IsAlias reports whether host belongs to the record's alias set. Hostname
// comparison is case-insensitive.
func (r Record) IsAlias(host string) bool {
	for _, a := range r.Aliases {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}
