package authority

import "strings"

// ProtocolMode selects the identity protocol family the authority speaks.
type ProtocolMode string

const (
	// ProtocolModeAAD enables AAD-specific behavior: tenant templating of
	// discovered endpoints and the v2 endpoint family.
	ProtocolModeAAD ProtocolMode = "AAD"
	// ProtocolModeOIDC treats the authority as a plain OpenID Connect
	// provider with no vendor-specific template placeholders.
	ProtocolModeOIDC ProtocolMode = "OIDC"
)

// Config is the caller-supplied, per-instance authority configuration. The
// optional fields are mutually independent; when all are absent, trust and
// endpoints come entirely from network discovery.
type Config struct {
	// ProtocolMode defaults to AAD when empty.
	ProtocolMode ProtocolMode

	// KnownAuthorities lists hostnames the caller declares trusted. A host
	// found here short-circuits instance discovery with a single-alias
	// record.
	KnownAuthorities []string

	// CloudDiscoveryMetadata optionally carries a raw instance-discovery
	// document (JSON) to consult before the network.
	CloudDiscoveryMetadata string

	// AuthorityMetadata optionally carries a raw OpenID configuration
	// document (JSON) to adopt instead of fetching the well-known endpoint.
	AuthorityMetadata string
}

func (c Config) mode() ProtocolMode {
	if c.ProtocolMode == "" {
		return ProtocolModeAAD
	}
	return c.ProtocolMode
}

func (c Config) knowsHost(host string) bool {
	for _, h := range c.KnownAuthorities {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
