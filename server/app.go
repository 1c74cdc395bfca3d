// Package server exposes authority resolution over HTTP: a /resolve
// endpoint that canonicalizes an authority URL, runs instance and
// endpoint discovery against the shared metadata cache, and reports the
// resolved endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"authorityd/authority"
	"authorityd/metadata"
	"authorityd/transport"
)

// App bundles runtime dependencies for the HTTP service.
type App struct {
	Config    Config
	Logger    *slog.Logger
	Store     metadata.Store
	Transport transport.Client
}

// NewApp wires together the application state from configuration.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Transport: transport.NewHTTPClient(httpClient),
	}, nil
}

func newStore(ctx context.Context, cfg Config) (metadata.Store, error) {
	if cfg.Redis.URL == "" {
		return metadata.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return metadata.NewRedisStore(client), nil
}

// NewAuthority builds a resolver facade for one request, sharing the
// app's metadata store and HTTP transport.
func (a *App) NewAuthority(raw, clientID string) (*authority.Authority, error) {
	if clientID == "" {
		clientID = a.Config.Authority.DefaultClientID
	}
	return authority.New(raw, authority.Options{
		ClientID:  clientID,
		Config:    a.Config.AuthorityOptions(),
		Store:     a.Store,
		Transport: a.Transport,
	})
}
