package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/captioner/config"
	"github.com/bnema/captioner/internal/adapter/engine/ffmpeg"
	"github.com/bnema/captioner/internal/adapter/engine/textconv"
	"github.com/bnema/captioner/internal/adapter/engine/whisper"
	httpadapter "github.com/bnema/captioner/internal/adapter/http"
	"github.com/bnema/captioner/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/captioner/internal/adapter/storage/sqlite"
	"github.com/bnema/captioner/internal/adapter/styles"
	"github.com/bnema/captioner/internal/adapter/telegram"
	"github.com/bnema/captioner/internal/adapter/watcher"
	"github.com/bnema/captioner/internal/infrastructure/executor"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
	"github.com/bnema/captioner/internal/service"
)

// Per-session command buffer of the orchestrator lanes.
const laneDepth = 64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot, the drop-folder watcher and the workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info.Printf("starting captioner %s on port %d, domain=%s, store=%s", version, cfg.Port, cfg.Domain, cfg.StoreBackend)

	for _, dir := range []string{cfg.DataDir, cfg.WorkDir(), cfg.OutputDir(), cfg.UploadDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// The job queue always lives in SQLite; session state may use the JSON backend.
	db, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()
	store, closeStore, err := openStateStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	queue := sqlitestore.NewJobQueue(db)

	catalog, err := styles.Load(cfg.StylesPath)
	if err != nil {
		return fmt.Errorf("load styles: %w", err)
	}

	exec := executor.New()
	engine := ffmpeg.NewEngine(exec, ffmpeg.Config{
		FFmpegBinary:   cfg.FFmpegBinary,
		FFprobeBinary:  cfg.FFprobeBinary,
		WorkDir:        cfg.WorkDir(),
		OutputDir:      cfg.OutputDir(),
		SegmentSeconds: cfg.SegmentSeconds,
	})
	transcriber := whisper.NewTranscriber(exec, whisper.Config{
		FFmpegBinary: cfg.FFmpegBinary,
		Binary:       cfg.WhisperBinary,
		ModelPath:    cfg.WhisperModel,
		Language:     cfg.WhisperLanguage,
		Threads:      cfg.WhisperThreads,
		TempDir:      cfg.WorkDir(),
	})
	var converter port.TextConverter
	if cfg.ConvertCommand != "" {
		c, err := textconv.NewConverter(exec, cfg.ConvertCommand)
		if err != nil {
			return fmt.Errorf("text converter: %w", err)
		}
		converter = c
	}

	eventBus := service.NewEventBus()
	notifiers := service.Notifiers{eventBus}
	var bot *telegram.Adapter
	if cfg.TelegramBotToken != "" {
		bot, err = telegram.New(telegram.Config{
			Token:       cfg.TelegramBotToken,
			UploadDir:   cfg.UploadDir(),
			MaxUploadMB: cfg.MaxUploadSizeMB,
		}, catalog)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		notifiers = append(notifiers, bot)
	}

	lanes := service.NewLanes(int64(cfg.MaxActiveSessions), laneDepth)
	policy := service.RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.BackoffMin,
		Multiplier:   cfg.BackoffFactor,
		MaxDelay:     cfg.BackoffMax,
		Jitter:       0.5,
	}
	orch := service.NewOrchestrator(store, queue, lanes, catalog, notifiers, policy)
	if converter != nil {
		orch.EnableConversions()
	} else {
		logger.Info.Printf("CONVERT_COMMAND not set, segment conversion is disabled")
	}

	pool, err := service.NewWorkerPool(queue, orch, service.NewExecutors(engine, transcriber, converter), service.WorkerConfig{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		Grace:        cfg.ShutdownGrace,
	})
	if err != nil {
		lanes.Stop()
		return fmt.Errorf("worker pool: %w", err)
	}
	sweeper, err := service.NewSweeper(store, service.SweeperConfig{
		Schedule:   cfg.SweepSchedule,
		IdleWindow: cfg.IdleWindow,
		Retention:  cfg.Retention(),
		WorkDir:    cfg.WorkDir(),
	})
	if err != nil {
		lanes.Stop()
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := orch.Rehydrate(context.Background()); err != nil {
		lanes.Stop()
		return fmt.Errorf("rehydrate: %w", err)
	}
	pool.Start(context.Background())
	sweeper.Start()

	intakeCtx, stopIntake := context.WithCancel(context.Background())
	defer stopIntake()
	var intake sync.WaitGroup

	allowedRoots := []string{cfg.UploadDir()}
	if cfg.WatchDir != "" {
		w, err := watcher.New(cfg.WatchDir, func(ctx context.Context, path string) error {
			_, err := orch.SubmitVideo(ctx, service.SubmitRequest{OwnerID: "folder", VideoRef: path})
			return err
		})
		if err != nil {
			shutdown(stopIntake, nil, &intake, pool, sweeper, lanes)
			return err
		}
		allowedRoots = append(allowedRoots, cfg.WatchDir)
		intake.Add(1)
		go func() {
			defer intake.Done()
			defer func() { _ = w.Close() }()
			if err := w.Run(intakeCtx); err != nil {
				logger.Error.Printf("watcher stopped: %v", err)
			}
		}()
		logger.Info.Printf("watching %s for new videos", cfg.WatchDir)
	}
	if bot != nil {
		intake.Add(1)
		go func() {
			defer intake.Done()
			bot.Run(intakeCtx, orch)
		}()
	}

	var verifier httpadapter.TokenVerifier
	if cfg.APITokenHash != "" {
		auth, err := service.NewTokenAuth(cfg.APITokenHash)
		if err != nil {
			shutdown(stopIntake, nil, &intake, pool, sweeper, lanes)
			return err
		}
		verifier = auth
	} else {
		logger.Warn.Printf("API_TOKEN_HASH is not set, the HTTP API accepts unauthenticated requests")
	}

	server := httpadapter.NewServer(orch, eventBus, verifier, httpadapter.Config{
		UploadDir:    cfg.UploadDir(),
		AllowedRoots: allowedRoots,
		MaxUploadMB:  cfg.MaxUploadSizeMB,
		BehindProxy:  cfg.BehindProxy,
		Version:      version,
	})
	defer server.Close()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		// Request contexts end with intake so SSE streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return intakeCtx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info.Printf("received %s, shutting down", sig)
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	go func() {
		for sig := range sigCh {
			logger.Warn.Printf("received %s during shutdown, ignoring", sig)
		}
	}()

	shutdown(stopIntake, httpServer, &intake, pool, sweeper, lanes)
	return runErr
}

// shutdown stops intake first, then lets workers drain before the lanes and
// the store go away.
func shutdown(stopIntake context.CancelFunc, httpServer *http.Server, intake *sync.WaitGroup, pool *service.WorkerPool, sweeper *service.Sweeper, lanes *service.Lanes) {
	stopIntake()
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}
		cancel()
	}
	intake.Wait()

	pool.Stop()
	sweeper.Stop()
	if !lanes.WaitIdle(10 * time.Second) {
		logger.Warn.Printf("session lanes still busy, stopping anyway")
	}
	lanes.Stop()
	logger.Info.Printf("shutdown complete")
}

// openStateStore returns the store for sessions, segments and applied keys.
func openStateStore(cfg *config.Config, db *sqlitestore.Store) (port.Store, func(), error) {
	if cfg.StoreBackend != "json" {
		return db, func() {}, nil
	}
	js, err := jsonfile.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open json store: %w", err)
	}
	return js, func() { _ = js.Close() }, nil
}
