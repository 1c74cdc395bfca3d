package authority

import (
	"fmt"
	"net/url"
	"strings"
)

const adfsPathMarker = "adfs"

// AuthorityURL is the canonical, validated form of an authority base URL.
// The canonical string always uses https, preserves host casing, keeps the
// tenant/policy path segments in order, and ends with a trailing slash.
// Query and fragment are stripped from the canonical form but their prior
// presence remains observable.
type AuthorityURL struct {
	host        string
	segments    []string
	hadQuery    bool
	hadFragment bool
}

// ParseAuthorityURL canonicalizes a raw authority string. It is
// side-effect-free and idempotent: re-parsing a canonical string yields the
// same canonical string.
func ParseAuthorityURL(raw string) (AuthorityURL, error) {
	if strings.TrimSpace(raw) == "" {
		return AuthorityURL{}, ErrEmptyAuthority
	}
	u, err := url.Parse(raw)
	if err != nil {
		return AuthorityURL{}, fmt.Errorf("%w: %v", ErrInvalidAuthorityURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return AuthorityURL{}, fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidAuthorityURL, raw)
	}
	if u.Scheme != "https" {
		return AuthorityURL{}, fmt.Errorf("%w: got %q", ErrInsecureAuthorityScheme, u.Scheme)
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return AuthorityURL{
		host:        u.Host,
		segments:    segments,
		hadQuery:    u.RawQuery != "",
		hadFragment: u.Fragment != "",
	}, nil
}

// String returns the canonical representation, always ending with "/".
func (u AuthorityURL) String() string {
	if len(u.segments) == 0 {
		return "https://" + u.host + "/"
	}
	return "https://" + u.host + "/" + strings.Join(u.segments, "/") + "/"
}

// Host returns the host[:port] component with its original casing.
func (u AuthorityURL) Host() string { return u.host }

// Tenant returns the first path segment, identifying the directory the
// authority is scoped to. Empty when the path is bare.
func (u AuthorityURL) Tenant() string {
	if len(u.segments) == 0 {
		return ""
	}
	return u.segments[0]
}

// PathSegments returns a copy of the ordered tenant/policy path segments.
func (u AuthorityURL) PathSegments() []string {
	out := make([]string, len(u.segments))
	copy(out, u.segments)
	return out
}

// IsADFS reports whether the authority addresses a legacy ADFS instance,
// recognized by its first path segment.
func (u AuthorityURL) IsADFS() bool {
	return len(u.segments) > 0 && strings.EqualFold(u.segments[0], adfsPathMarker)
}

// PolicyQualified reports whether the path already encodes a tenant plus
// policy (B2C-style). Endpoints of such authorities are fully qualified and
// must never be tenant-substituted.
func (u AuthorityURL) PolicyQualified() bool {
	return len(u.segments) >= 2 && !u.IsADFS()
}

// HadQuery reports whether the raw input carried a query component that the
// canonical form dropped.
func (u AuthorityURL) HadQuery() bool { return u.hadQuery }

// HadFragment reports whether the raw input carried a fragment component
// that the canonical form dropped.
func (u AuthorityURL) HadFragment() bool { return u.hadFragment }

// WithHost returns a copy of the URL with the host replaced and the path
// preserved.
func (u AuthorityURL) WithHost(host string) AuthorityURL {
	out := u
	out.host = host
	out.segments = make([]string, len(u.segments))
	copy(out.segments, u.segments)
	return out
}
