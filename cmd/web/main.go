// Command web runs the party trivia server. The default command serves the
// HTTP API; the aggregate subcommand builds one group playlist and prints it
// as JSON, which is handy for checking what a group would get. Settings come
// from an optional TOML file, a .env file and the environment.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"Party-Trivia-Go/pkg/config"
	"Party-Trivia-Go/pkg/lobby"
	"Party-Trivia-Go/pkg/music"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "trivia",
		Short:        "Party trivia built from everyone's Spotify listening",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	serve := newServeCmd(&configPath)
	root.RunE = serve.RunE
	root.AddCommand(serve, newAggregateCmd(&configPath))
	return root
}

// setup loads and validates the configuration and builds the logger.
func setup(configPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newLogger builds a logrus logger from the logging settings. Tracing
// Spotify calls needs debug output, so it raises the level when enabled.
func newLogger(c config.LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if c.SpotifyCalls && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newServer(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.WithField("addr", srv.Addr).Info("listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newAggregateCmd(configPath *string) *cobra.Command {
	var (
		group string
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Build the playlist of a group and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group = strings.ToUpper(group)
			if !lobby.ValidGroup(group) {
				return lobby.ErrInvalidGroup
			}
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			s, err := newServer(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			var seedp *int64
			if cmd.Flags().Changed("seed") {
				seedp = &seed
			}
			res, err := s.Aggregator.Aggregate(cmd.Context(), group, count, seedp)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "group code")
	cmd.Flags().IntVar(&count, "count", music.DefaultTargetCount, "number of tracks to select")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for a reproducible playlist")
	cmd.MarkFlagRequired("group")
	return cmd
}
