package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"authorityd/authority"
)

type resolveResponse struct {
	CanonicalAuthority    string   `json:"canonical_authority"`
	Tenant                string   `json:"tenant,omitempty"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	EndSessionEndpoint    string   `json:"end_session_endpoint,omitempty"`
	DeviceCodeEndpoint    string   `json:"device_code_endpoint,omitempty"`
	Issuer                string   `json:"issuer"`
	JWKSURI               string   `json:"jwks_uri,omitempty"`
	Aliases               []string `json:"aliases"`
	PreferredCacheHost    string   `json:"preferred_cache_host"`
	AliasesFromNetwork    bool     `json:"aliases_from_network"`
	EndpointsFromNetwork  bool     `json:"endpoints_from_network"`
	DiscoveryComplete     bool     `json:"discovery_complete"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResolve resolves the authority named by the "authority" query
// parameter and returns its endpoints and alias set.
func (a *App) handleResolve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("authority")
	clientID := r.URL.Query().Get("client_id")

	auth, err := a.NewAuthority(raw, clientID)
	if err != nil {
		a.Logger.Warn("authority rejected", "error", err, "authority", raw)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := auth.Resolve(r.Context()); err != nil {
		status := resolveErrorStatus(err)
		a.Logger.Error("resolution failed", "error", err, "authority", auth.CanonicalAuthority(), "status", status)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	eps, err := auth.Endpoints()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	cacheHost, _ := auth.PreferredCacheHost()

	writeJSON(w, http.StatusOK, resolveResponse{
		CanonicalAuthority:    auth.CanonicalAuthority(),
		Tenant:                auth.Tenant(),
		AuthorizationEndpoint: eps.AuthorizationEndpoint,
		TokenEndpoint:         eps.TokenEndpoint,
		EndSessionEndpoint:    eps.EndSessionEndpoint,
		DeviceCodeEndpoint:    eps.DeviceCodeEndpoint,
		Issuer:                eps.Issuer,
		JWKSURI:               eps.JWKSURI,
		Aliases:               auth.Aliases(),
		PreferredCacheHost:    cacheHost,
		AliasesFromNetwork:    auth.AliasesFromNetwork(),
		EndpointsFromNetwork:  auth.EndpointsFromNetwork(),
		DiscoveryComplete:     auth.DiscoveryComplete(),
	})
}

// resolveErrorStatus maps resolution failures onto HTTP statuses: caller
// and configuration mistakes are 4xx, upstream discovery failures are 502.
func resolveErrorStatus(err error) int {
	switch {
	case errors.Is(err, authority.ErrEmptyAuthority),
		errors.Is(err, authority.ErrInvalidAuthorityURL),
		errors.Is(err, authority.ErrInsecureAuthorityScheme),
		errors.Is(err, authority.ErrInvalidCloudDiscoveryMetadata),
		errors.Is(err, authority.ErrInvalidAuthorityMetadata):
		return http.StatusBadRequest
	case errors.Is(err, authority.ErrUntrustedAuthority),
		errors.Is(err, authority.ErrOpenIDConfigFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
