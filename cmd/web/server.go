package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	libspotify "github.com/zmb3/spotify"

	"Party-Trivia-Go/pkg/config"
	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/game"
	"Party-Trivia-Go/pkg/handlers"
	"Party-Trivia-Go/pkg/lobby"
	"Party-Trivia-Go/pkg/metrics"
	"Party-Trivia-Go/pkg/music"
	"Party-Trivia-Go/pkg/spotify"
)

// server bundles the wired application.
type server struct {
	DB         *db.DB
	Aggregator *music.Aggregator
	App        *handlers.Application
	log        logrus.FieldLogger
}

// newServer opens the database and wires every component from cfg.
func newServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*server, error) {
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	auth := libspotify.NewAuthenticator(cfg.Spotify.RedirectURL, spotify.Scopes...)
	auth.SetAuthInfo(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)

	var callLog logrus.FieldLogger
	if cfg.Logging.SpotifyCalls {
		callLog = log.WithField("component", "spotify")
	}
	source := spotify.NewSource(auth, callLog)
	creds := spotify.NewCredentials(database, auth)

	agg := &music.Aggregator{
		Members:     database,
		Credentials: creds,
		Tracks:      source,
		Log:         log.WithField("component", "aggregator"),
	}
	lb := &lobby.Lobby{
		Store:                database,
		AllowHostParticipant: cfg.Game.AllowHostParticipant,
		Log:                  log.WithField("component", "lobby"),
	}
	games := &game.Manager{
		Aggregator: agg,
		Catalog:    spotify.NewCatalogClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret),
		Log:        log.WithField("component", "game"),
	}
	app := &handlers.Application{
		DB:            database,
		Lobby:         lb,
		Games:         games,
		Authenticator: auth,
		Profiles:      spotify.NewProfiles(auth),
		Tokens:        creds,
		Playlists:     source,
		SignKey:       []byte(cfg.Server.SigningKey),
		WebURL:        cfg.Server.WebURL,
		Version:       version,
		Log:           log.WithField("component", "http"),
	}
	return &server{DB: database, Aggregator: agg, App: app, log: log}, nil
}

// Handler returns the API routes plus /metrics wrapped in the middleware
// chain.
func (s *server) Handler() http.Handler {
	mux := s.App.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())
	return handlers.SecurityHeaders(handlers.RequestLogger(s.log, metrics.Instrument(mux)))
}

func (s *server) Close() error {
	return s.DB.Close()
}
