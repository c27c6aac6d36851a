package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stwalsh4118/livetv/internal/client"
	"github.com/stwalsh4118/livetv/internal/config"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/playback"
	"github.com/stwalsh4118/livetv/internal/session"
	"github.com/stwalsh4118/livetv/internal/state"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "livetv-player",
		Usage: "Headless live TV player with now-playing guide info",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "name of the playlist to open",
			},
			&cli.Int64Flag{
				Name:  "channel",
				Usage: "channel id to tune directly",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		// The logger may not be configured when setup fails
		fmt.Fprintf(os.Stderr, "livetv-player: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.InitWithFile(cfg.Logging.Level, cfg.Logging.Pretty, logger.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	loc, err := loadLocation(cfg.Player.Location)
	if err != nil {
		return err
	}

	store, err := state.NewStore(afero.NewOsFs(), cfg.Player.StateDir, nil)
	if err != nil {
		return err
	}

	api := client.New(cfg.Player.APIBaseURL, cfg.Player.RequestTimeout)
	sessionID := uuid.NewString()

	controller := session.NewController(session.Deps{
		Refresher: guide.NewRefresher(api, nil, guide.Options{
			Lookahead: cfg.Guide.Lookahead,
			Cooldown:  cfg.Guide.RefreshCooldown,
		}),
		Player:    playback.NewHLSPlayer(playback.Options{}),
		Lookup:    api,
		Recent:    store,
		Selection: store,
		Playlists: api,
		History:   api,
		Renderer:  session.LogRenderer{SessionID: sessionID},
		StreamURL: api.StreamURL,
	}, session.Options{
		DisplayInterval: cfg.Guide.DisplayInterval,
		RefreshInterval: cfg.Guide.RefreshInterval,
		Location:        loc,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info().
		Str("session_id", sessionID).
		Str("api", cfg.Player.APIBaseURL).
		Msg("Starting player session")

	if err := controller.LoadPlaylists(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to load playlists")
	}

	switch {
	case cmd.Int64("channel") > 0:
		if err := controller.SelectChannelByID(ctx, cmd.Int64("channel")); err != nil {
			logger.Log.Warn().Err(err).Int64("channel_id", cmd.Int64("channel")).Msg("Failed to tune channel")
		}
	case cmd.String("playlist") != "":
		if !selectPlaylistByName(ctx, controller, cmd.String("playlist")) {
			logger.Log.Warn().Str("playlist", cmd.String("playlist")).Msg("Playlist not found")
		}
	default:
		if err := controller.RestoreSelection(ctx); err != nil && !errors.Is(err, session.ErrNoPlaylists) {
			logger.Log.Warn().Err(err).Msg("Failed to restore selection")
		}
	}

	return controller.Run(ctx)
}

// loadLocation resolves the display time zone; "Local" and "" mean the host zone
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid player location %q: %w", name, err)
	}
	return loc, nil
}

func selectPlaylistByName(ctx context.Context, controller *session.Controller, name string) bool {
	for _, p := range controller.Playlists() {
		if p.Name == name {
			controller.SelectPlaylist(ctx, p)
			return true
		}
	}
	return false
}
