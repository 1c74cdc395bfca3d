package authority

import "errors"

// Configuration errors: the caller-supplied input is invalid and only the
// caller can recover by fixing it.
var (
	// ErrEmptyAuthority is returned when the authority string is empty.
	ErrEmptyAuthority = errors.New("authority URL is empty")

	// ErrInvalidAuthorityURL is returned when the authority string is not a
	// well-formed absolute URL.
	ErrInvalidAuthorityURL = errors.New("authority URL is not well formed")

	// ErrInsecureAuthorityScheme is returned when the authority scheme is not
	// https.
	ErrInsecureAuthorityScheme = errors.New("authority URL scheme must be https")

	// ErrInvalidCloudDiscoveryMetadata is returned when the static
	// cloud-discovery document cannot be parsed.
	ErrInvalidCloudDiscoveryMetadata = errors.New("cloud discovery metadata is not valid JSON")

	// ErrInvalidAuthorityMetadata is returned when the static endpoint
	// metadata document cannot be parsed or lacks required fields.
	ErrInvalidAuthorityMetadata = errors.New("authority metadata is not valid JSON")

	// ErrUntrustedAuthority is returned when no trust source succeeded:
	// nothing cached, no static configuration matched, and instance
	// discovery could not be completed. An authority is never trusted
	// merely because it was asked for.
	ErrUntrustedAuthority = errors.New("untrusted authority")
)

// Runtime errors: environment or sequencing problems.
var (
	// ErrOpenIDConfigFetch wraps the transport error raised while fetching
	// the OpenID configuration document.
	ErrOpenIDConfigFetch = errors.New("unable to fetch OpenID configuration")

	// ErrNotResolved is returned by endpoint accessors before a resolution
	// attempt has completed successfully.
	ErrNotResolved = errors.New("authority endpoints not resolved")
)
