// Command anima-analytics runs the emotion analytics API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/justestif/anima-analytics/internal/analyses"
	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/config"
	"github.com/justestif/anima-analytics/internal/db"
	"github.com/justestif/anima-analytics/internal/logging"
	"github.com/justestif/anima-analytics/internal/memstore"
	"github.com/justestif/anima-analytics/internal/playlists"
	"github.com/justestif/anima-analytics/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Logging())

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()

	deps := web.Deps{
		Resolver: auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	}

	var repos analyses.Repositories
	if cfg.Database.InMemory() {
		logging.Warn().Msg("using in-memory storage, data is lost on exit")
		repos = analyses.FromMemory(memstore.New())
	} else {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		database, err := db.New(connectCtx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		repos = analyses.FromDB(database)
		deps.Health = database
	}

	svc := analyses.New(repos,
		analyses.WithLocation(loc),
		analyses.WithDedupWindow(cfg.Analytics.DedupWindow),
	)
	if err := svc.EnsureEmotions(ctx); err != nil {
		return fmt.Errorf("seeding emotions: %w", err)
	}
	deps.Analytics = svc

	if cfg.Spotify.Enabled() {
		store, closeStore, err := tokenStore(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeStore()

		conn, err := auth.NewConnector(auth.SpotifyConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURL:  cfg.Spotify.RedirectURL,
		}, store)
		if err != nil {
			return fmt.Errorf("configuring spotify: %w", err)
		}
		deps.Spotify = web.ConnectorAccounts{Connector: conn}
		deps.Playlists = playlists.New(playlists.ConnectorSource{Connector: conn}, svc, playlists.WithLocation(loc))
	} else {
		logging.Info().Msg("spotify credentials not set, spotify routes disabled")
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
	}, deps)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// tokenStore returns the Redis token store when configured, else an
// in-process one.
func tokenStore(ctx context.Context, cfg config.RedisConfig) (auth.TokenStore, func(), error) {
	if cfg.Addr == "" {
		logging.Info().Msg("redis not configured, keeping spotify tokens in memory")
		store := auth.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	store, err := auth.NewRedisStore(ctx, auth.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
