// Package app wires configuration, storage, the dedup engine and the
// delivery pipeline into a runnable service.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"soc-alert-relay-go/internal/assets"
	"soc-alert-relay-go/internal/config"
	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/dedup/gormstore"
	"soc-alert-relay-go/internal/dedup/memstore"
	"soc-alert-relay-go/internal/dedup/redistore"
	"soc-alert-relay-go/internal/enrich"
	"soc-alert-relay-go/internal/enrich/claude"
	"soc-alert-relay-go/internal/fetcher"
	"soc-alert-relay-go/internal/handlers"
	"soc-alert-relay-go/internal/metrics"
	"soc-alert-relay-go/internal/notify/telegram"
	"soc-alert-relay-go/internal/processor"
	"soc-alert-relay-go/internal/scheduler"
	"soc-alert-relay-go/internal/server"
	"soc-alert-relay-go/internal/storage"
)

// ConfigureLogging applies the configured log level and format.
func ConfigureLogging(cfg *config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
	}
	logrus.SetLevel(level)

	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// App holds the wired components of one service instance.
type App struct {
	cfg     *config.Config
	db      *gorm.DB
	store   dedup.Store
	engine  *dedup.Engine
	fetcher fetcher.EmailFetcher
	proc    *processor.Processor
	sched   *scheduler.Scheduler
	srv     *http.Server
}

// New wires a full instance from configuration. latestMode switches the
// fetcher to read-only tail-of-mailbox fetching for ad-hoc runs.
func New(cfg *config.Config, latestMode bool) (*App, error) {
	dbConn, err := storage.InitDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	store, sweeper, err := buildStore(cfg, dbConn)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Dedup store backend: %s, window %s, threshold %d",
		cfg.Dedup.Backend, cfg.Dedup.Window(), cfg.Dedup.RepeatThreshold)

	engine, err := dedup.NewEngine(store, cfg.Dedup.Window(), cfg.Dedup.RepeatThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup engine: %w", err)
	}

	f, err := buildFetcher(&cfg.Mailbox, latestMode)
	if err != nil {
		return nil, err
	}

	repo := storage.New(dbConn)
	assetSvc := assets.NewService(dbConn)

	var narrator enrich.Narrator
	if cfg.Narrator.Enabled {
		narrator = claude.New(cfg.Narrator.APIKey, cfg.Narrator.Model, cfg.Narrator.MaxTokens, cfg.Narrator.Timeout())
		logrus.Infof("Narration enabled with model %s", cfg.Narrator.Model)
	}

	notifier, err := buildNotifier(&cfg.Telegram, assetSvc)
	if err != nil {
		return nil, err
	}

	proc := processor.New(processor.Params{
		Fetcher:    f,
		Engine:     engine,
		Audit:      repo,
		Assets:     assetSvc,
		Narrator:   narrator,
		Notifier:   notifier,
		Metrics:    m,
		Sweeper:    sweeper,
		FetchLimit: cfg.Mailbox.FetchLimit,
	})

	sched := scheduler.New(cfg.Scheduler.Interval(), proc, m)

	h := handlers.NewHandlers(dbConn, assetSvc, repo, store, engine, sched)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		cfg:     cfg,
		db:      dbConn,
		store:   store,
		engine:  engine,
		fetcher: f,
		proc:    proc,
		sched:   sched,
		srv:     srv,
	}, nil
}

// Run starts the scheduler and HTTP server and blocks until SIGINT or
// SIGTERM.
func (a *App) Run() error {
	if err := a.sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", a.cfg.Server.Port)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	a.sched.Wait()

	if err := a.srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	a.Close()
	logrus.Info("Stopped gracefully")
	return nil
}

// RunOnce executes a single processing cycle without the HTTP surface.
func (a *App) RunOnce(ctx context.Context) (processor.CycleStats, error) {
	return a.sched.RunOnce(ctx)
}

// Close releases the fetcher and store connections.
func (a *App) Close() {
	if err := a.fetcher.Close(); err != nil {
		logrus.Errorf("Failed to close fetcher: %v", err)
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.Errorf("Failed to close dedup store: %v", err)
		}
	}
}

func buildStore(cfg *config.Config, db *gorm.DB) (dedup.Store, dedup.Sweeper, error) {
	switch cfg.Dedup.Backend {
	case "redis":
		s, err := redistore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Dedup.Window())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis dedup store: %w", err)
		}
		// Redis expires records through TTLs, no sweeper needed.
		return s, nil, nil
	case "database":
		s := gormstore.New(db)
		return s, s, nil
	default:
		s := memstore.New()
		return s, s, nil
	}
}

func buildFetcher(cfg *config.MailboxConfig, latest bool) (fetcher.EmailFetcher, error) {
	switch cfg.Provider {
	case "gmail":
		f, err := fetcher.NewGmailFetcher(cfg, latest)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail fetcher: %w", err)
		}
		logrus.Info("Using Gmail API for mail ingestion")
		return f, nil
	default:
		f, err := fetcher.NewIMAPFetcher(cfg, latest)
		if err != nil {
			return nil, fmt.Errorf("failed to create IMAP fetcher: %w", err)
		}
		logrus.Info("Using IMAP for mail ingestion")
		return f, nil
	}
}

func buildNotifier(cfg *config.TelegramConfig, recipients telegram.RecipientSource) (*telegram.Notifier, error) {
	if !cfg.Enabled {
		logrus.Info("Telegram dispatch disabled, decisions will only be audited")
		return telegram.New("", nil, recipients), nil
	}

	chats := make([]int64, 0, len(cfg.AdminChatIDs))
	for _, raw := range cfg.AdminChatIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin chat id %q: %w", raw, err)
		}
		chats = append(chats, id)
	}
	return telegram.New(cfg.BotToken, chats, recipients), nil
}
