package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"authorityd/metadata"
	"authorityd/transport"
)

// CloudMetadata is the established trust decision for an authority host:
// the set of hostnames that are equivalent aliases of it and the hosts
// preferred for outbound requests and cache partitioning.
type CloudMetadata struct {
	Aliases          []string
	PreferredNetwork string
	PreferredCache   string
	// FromNetwork records whether a network round trip produced the alias
	// set, as opposed to static configuration.
	FromNetwork bool

	fromCache bool
}

// IsAlias reports case-insensitive membership of host in the alias set.
func (m CloudMetadata) IsAlias(host string) bool {
	for _, a := range m.Aliases {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}

// InstanceStrategy establishes the trusted alias set for an authority.
// The default implementation consults cache, static configuration, and the
// network in that order; tests may substitute their own.
type InstanceStrategy interface {
	ResolveInstance(ctx context.Context, u AuthorityURL) (CloudMetadata, error)
}

type instanceResolver struct {
	clientID string
	cfg      Config
	store    metadata.Store
	net      transport.Client
	now      func() time.Time
}

// ResolveInstance applies the resolution priority: previously cached
// metadata, then caller-supplied static configuration, then a live instance
// discovery call. A host is never trusted implicitly: when every source
// fails, the result is ErrUntrustedAuthority.
func (r *instanceResolver) ResolveInstance(ctx context.Context, u AuthorityURL) (CloudMetadata, error) {
	host := u.Host()

	// Lookups before instance resolution key on the constructed host; the
	// eventual write converges on the preferred cache host.
	if rec, ok, err := r.store.Get(ctx, metadata.Key(r.clientID, host)); err == nil && ok &&
		!rec.IsExpired(r.now()) && rec.HasAliases() {
		return CloudMetadata{
			Aliases:          rec.Aliases,
			PreferredNetwork: rec.PreferredNetwork,
			PreferredCache:   rec.PreferredCache,
			FromNetwork:      rec.AliasesFromNetwork,
			fromCache:        true,
		}, nil
	}

	if r.cfg.knowsHost(host) {
		return hostIdentityMetadata(host, false), nil
	}

	if r.cfg.CloudDiscoveryMetadata != "" {
		var doc instanceDiscoveryResponse
		if err := json.Unmarshal([]byte(r.cfg.CloudDiscoveryMetadata), &doc); err != nil {
			return CloudMetadata{}, fmt.Errorf("%w: %v", ErrInvalidCloudDiscoveryMetadata, err)
		}
		if entry, ok := doc.entryForHost(host); ok {
			return CloudMetadata{
				Aliases:          entry.Aliases,
				PreferredNetwork: entry.PreferredNetwork,
				PreferredCache:   entry.PreferredCache,
			}, nil
		}
		// No group names this host; fall through to the network.
	}

	var doc instanceDiscoveryResponse
	if err := r.net.GetJSON(ctx, instanceDiscoveryURL(u), &doc); err != nil {
		return CloudMetadata{}, fmt.Errorf("%w: instance discovery failed: %w", ErrUntrustedAuthority, err)
	}
	if entry, ok := doc.entryForHost(host); ok {
		return CloudMetadata{
			Aliases:          entry.Aliases,
			PreferredNetwork: entry.PreferredNetwork,
			PreferredCache:   entry.PreferredCache,
			FromNetwork:      true,
		}, nil
	}

	// The instance answered but did not list this host in any alias group.
	// The round trip itself establishes trust in the host's own identity.
	return hostIdentityMetadata(host, true), nil
}

func hostIdentityMetadata(host string, fromNetwork bool) CloudMetadata {
	return CloudMetadata{
		Aliases:          []string{host},
		PreferredNetwork: host,
		PreferredCache:   host,
		FromNetwork:      fromNetwork,
	}
}
