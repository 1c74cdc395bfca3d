package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"authorityd/metadata"
)

// fakeTransport serves canned JSON documents by URL and records every call.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeTransport) GetJSON(_ context.Context, rawURL string, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	if err, ok := f.errs[rawURL]; ok {
		return err
	}
	body, ok := f.responses[rawURL]
	if !ok {
		return fmt.Errorf("no canned response for %s", rawURL)
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeTransport) PostJSON(context.Context, string, any, any) error {
	return fmt.Errorf("unexpected POST")
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const worldwideInstanceDoc = `{
  "tenant_discovery_endpoint": "https://login.windows.net/common/.well-known/openid-configuration",
  "metadata": [
    {
      "preferred_network": "login.windows.net",
      "preferred_cache": "sts.windows.net",
      "aliases": ["login.microsoftonline.com", "login.windows.net", "sts.windows.net"]
    }
  ]
}`

const templatedOIDCDoc = `{
  "authorization_endpoint": "https://login.windows.net/{tenant}/oauth2/v2.0/authorize",
  "token_endpoint": "https://login.windows.net/{tenant}/oauth2/v2.0/token",
  "end_session_endpoint": "https://login.windows.net/{tenant}/oauth2/v2.0/logout",
  "issuer": "https://login.windows.net/{tenant}/v2.0",
  "jwks_uri": "https://login.windows.net/{tenant}/discovery/v2.0/keys"
}`

func mustParse(t *testing.T, raw string) AuthorityURL {
	t.Helper()
	u, err := ParseAuthorityURL(raw)
	if err != nil {
		t.Fatalf("ParseAuthorityURL(%q) returned error: %v", raw, err)
	}
	return u
}

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func freshRecord(now func() time.Time) metadata.Record {
	return metadata.Record{
		Aliases:               []string{"login.microsoftonline.com", "login.windows.net", "sts.windows.net"},
		PreferredNetwork:      "login.windows.net",
		PreferredCache:        "sts.windows.net",
		AliasesFromNetwork:    true,
		AuthorizationEndpoint: "https://login.windows.net/{tenant}/oauth2/v2.0/authorize",
		TokenEndpoint:         "https://login.windows.net/{tenant}/oauth2/v2.0/token",
		EndSessionEndpoint:    "https://login.windows.net/{tenant}/oauth2/v2.0/logout",
		Issuer:                "https://login.windows.net/{tenant}/v2.0",
		JWKSURI:               "https://login.windows.net/{tenant}/discovery/v2.0/keys",
		EndpointsFromNetwork:  true,
		CanonicalAuthority:    "https://login.windows.net/common/",
		ExpiresAt:             now().Add(time.Hour),
	}
}
