package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/john/commander/internal/aggregator"
	"github.com/john/commander/internal/command"
	"github.com/john/commander/internal/config"
	"github.com/john/commander/internal/dispatch"
	"github.com/john/commander/internal/format"
	"github.com/john/commander/internal/health"
	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/message"
	"github.com/john/commander/internal/recorder"
	"github.com/john/commander/internal/source"
	"github.com/john/commander/internal/twitch"
	"github.com/john/commander/internal/uploader"
)

func main() {
	// Get config path from environment variable or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.L().Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "commander"})
	log := logging.L()
	log.Info().Str("room", cfg.Twitch.Room).Str("nick", cfg.Twitch.Nickname).Int("sources", len(cfg.Sources)).Msg("Commander starting...")

	loc, err := cfg.Bot.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load time zone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	clock := clockwork.NewRealClock()
	conn := twitch.New(cfg.Twitch.Username, cfg.Twitch.OAuth, cfg.Twitch.Host, cfg.Twitch.Room)

	formatter := format.New(format.Config{
		Game:      cfg.Bot.Game,
		GameShort: cfg.Bot.GameShort,
		MaxItems:  cfg.Bot.MaxItems,
		Layout:    cfg.Bot.Layout,
		Location:  loc,
		ZoneLabel: cfg.Bot.TimezoneLabel,
	})
	live := &command.Live{
		Aggregator: aggregator.New(source.NewClient(), cfg.Sources),
		Formatter:  formatter,
	}

	dispatcher := dispatch.New(cfg.Twitch.Nickname, cfg.Bot.CommandPrefix, dispatch.NewEmitter(conn, cfg.Bot.MessageInterval))
	command.Register(dispatcher, &command.Now{Clock: clock, Formatter: formatter}, live)

	var wg sync.WaitGroup

	// Start the snapshot archive (if configured)
	if cfg.Archive.Enabled {
		rec := recorder.New(cfg.Archive.OutputDir, cfg.Archive.BufferSize, cfg.Archive.RotateMinutes, cfg.Archive.RotateMegabytes, clock)
		live.Recorder = rec

		if cfg.S3.RoleARN != "" {
			log.Info().Str("role", cfg.S3.RoleARN).Msg("Using OIDC authentication")
		} else {
			log.Warn().Msg("Using static AWS credentials (deprecated). Migrate to OIDC for better security.")
		}
		up, err := uploader.New(ctx, uploader.Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			RoleARN:         cfg.S3.RoleARN,
			TokenSocket:     cfg.S3.TokenSocket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			DeleteAfter:     cfg.Uploader.DeleteAfterUpload,
			MaxRetries:      cfg.Uploader.MaxRetries,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create uploader")
		}
		if err := up.ScanAndUploadExisting(ctx, cfg.Archive.OutputDir); err != nil {
			log.Warn().Err(err).Msg("Failed to scan for existing files")
		}

		fileChan := make(chan string, 100)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := rec.Start(ctx, fileChan); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Recorder error")
			}
		}()
		go func() {
			defer wg.Done()
			if err := up.Start(ctx, fileChan); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Uploader error")
			}
		}()
	}

	// Inbound messages are queued so a slow handler never stalls the IRC reader.
	inbox := make(chan message.ChatMessage, 64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Serve(ctx, inbox); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Dispatcher error")
		}
	}()

	// Connection failures are fatal: stop everything.
	var connFailed atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := conn.Start(ctx, func(_ context.Context, msg message.ChatMessage) {
			select {
			case inbox <- msg:
			default:
				log.Warn().Str("sender", msg.Sender).Msg("Inbox full, dropping message")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Twitch connector error")
			connFailed.Store(true)
			cancel()
		}
	}()

	healthServer := health.New(cfg.Health.Addr, conn.Connected)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := healthServer.Start(); err != nil {
			log.Error().Err(err).Msg("Health server error")
		}
	}()

	log.Info().Msg("All components started successfully")

	select {
	case <-sigChan:
		log.Info().Msg("Shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Warn().Msg("Chat session ended, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down health server")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All components stopped gracefully")
		if connFailed.Load() {
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}
}
