package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	grouppollservice "pollbot/contexts/community-experience/group-poll-service"
	"pollbot/contexts/community-experience/group-poll-service/adapters/cache"
	httpadapter "pollbot/contexts/community-experience/group-poll-service/adapters/http"
	lineadapter "pollbot/contexts/community-experience/group-poll-service/adapters/line"
	"pollbot/contexts/community-experience/group-poll-service/adapters/memory"
	postgresadapter "pollbot/contexts/community-experience/group-poll-service/adapters/postgres"
	sqliteadapter "pollbot/contexts/community-experience/group-poll-service/adapters/sqlite"
	"pollbot/contexts/community-experience/group-poll-service/application/commands"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/ports"
	"pollbot/internal/platform/config"
	"pollbot/internal/platform/db"
	"pollbot/internal/platform/httpserver"
	"pollbot/internal/platform/messaging"
	"pollbot/internal/platform/tracing"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	shutdownTimeout = 10 * time.Second
	eventBusBuffer  = 256
)

type APIApp struct {
	server   *httpserver.Server
	module   grouppollservice.Module
	bus      *messaging.Bus
	postgres *db.Postgres
	sqlite   *sql.DB
	tracing  *tracing.Provider
	logger   *slog.Logger
}

type WorkerApp struct {
	trigger  httpadapter.RemoteSweepTrigger
	interval time.Duration
	tracing  *tracing.Provider
	logger   *slog.Logger
}

// BuildAPI loads configuration (configPath may be empty) and wires the poll
// module behind the HTTP server.
func BuildAPI(configPath string) (*APIApp, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg).With("service", cfg.ServiceName, "process", "api")
	if cfg.LineChannelSecret == "" {
		logger.Warn("LINE channel secret is empty; every webhook delivery will be ignored",
			"event", "bootstrap_line_secret_missing",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	provider, err := tracing.NewProvider(tracingConfig(cfg))
	if err != nil {
		return nil, err
	}
	app := &APIApp{tracing: provider, logger: logger}

	if cfg.NeedsPostgres() {
		pg, err := db.ConnectPostgres(cfg.PostgresDSN, db.DefaultPostgresOptions())
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.postgres = pg
		if err := postgresadapter.Migrate(pg.DB); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("migrate group poll tables: %w", err)
		}
	}

	store := memory.NewStore()
	lineClient := lineadapter.NewClient(lineadapter.Config{
		BaseURL:      cfg.LineAPIBaseURL,
		ChannelToken: cfg.LineChannelToken,
		Tracer:       provider.Tracer(),
		Logger:       logger,
	})

	var repo *postgresadapter.Repository
	if app.postgres != nil {
		repo = postgresadapter.NewRepository(app.postgres.DB, logger)
	}
	members := buildMembership(cfg, store, repo, lineClient, logger)

	archive, err := app.buildArchive(cfg, repo)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	deps := grouppollservice.Dependencies{
		Polls:            store,
		Members:          members,
		Dispatcher:       lineadapter.Dispatcher{Client: lineClient},
		Dedup:            cache.NewEventDedup(cfg.EventDedupTTL, time.Minute),
		Archive:          archive,
		Clock:            postgresadapter.SystemClock{},
		IDGen:            postgresadapter.UUIDGenerator{},
		MentionBatchSize: cfg.MentionBatchSize,
		QuickReplyLimit:  cfg.QuickReplyLimit,
		ExternalTimeout:  cfg.ExternalCallTimeout,
		DedupTTL:         cfg.EventDedupTTL,
		SweepSecret:      cfg.SweepSecret,
		Tracer:           provider.Tracer(),
		Logger:           logger,
	}
	if archive != nil {
		app.bus = messaging.NewBus(eventBusBuffer, logger)
		deps.Events = app.bus
		deps.Subscriber = app.bus
	}

	app.module = grouppollservice.NewModule(deps)
	app.module.Store = store
	app.server = httpserver.New(app.module, cfg.LineChannelSecret, logger, normalizeAddr(cfg.HTTPPort))

	logger.Info("api wired",
		"event", "bootstrap_api_wired",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"membership_mode", members.Mode(),
		"archive_driver", cfg.ArchiveDriver,
		"sweep_enabled", cfg.SweepSecret != "",
		"tracing_enabled", provider.Enabled(),
	)
	return app, nil
}

func buildMembership(
	cfg config.Config,
	store *memory.Store,
	repo *postgresadapter.Repository,
	lineClient *lineadapter.Client,
	logger *slog.Logger,
) ports.MembershipTracker {
	if cfg.MembershipMode == config.MembershipDirectory {
		var directory ports.MemberDirectory = lineadapter.Directory{Client: lineClient}
		if cfg.DirectorySource == config.DirectorySourcePostgres && repo != nil {
			directory = repo
		}
		return commands.DirectoryMembership{
			Directory: directory,
			MaxPages:  cfg.DirectoryMaxPages,
			Logger:    logger,
		}
	}
	var registry ports.MemberRegistry = store
	if cfg.MemberStore == config.MemberStorePostgres && repo != nil {
		registry = repo
	}
	return commands.ObservedMembership{Registry: registry}
}

func (a *APIApp) buildArchive(cfg config.Config, repo *postgresadapter.Repository) (ports.ResultArchive, error) {
	switch cfg.ArchiveDriver {
	case config.ArchivePostgres:
		if repo == nil {
			return nil, errors.New("postgres archive requires a postgres connection")
		}
		return repo, nil
	case config.ArchiveSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sqlite = conn
		archive, err := sqliteadapter.NewArchive(conn, a.logger)
		if err != nil {
			return nil, err
		}
		return archive, nil
	default:
		return nil, nil
	}
}

// Run serves HTTP until ctx is cancelled, then drains the server.
func (a *APIApp) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return errors.New("api app is not initialized")
	}
	if a.bus != nil {
		if err := a.module.Archive.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if a.bus != nil {
		a.bus.Wait()
	}
	return nil
}

func (a *APIApp) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.tracing.Shutdown(ctx))
		cancel()
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

// BuildWorker wires the periodic reminder trigger. Active polls live in the
// API process, so the worker drives the sweep over HTTP.
func BuildWorker(configPath string) (*WorkerApp, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg).With("service", cfg.ServiceName, "process", "worker")
	if cfg.SweepSecret == "" {
		return nil, errors.New("sweep.secret is required to run the reminder worker")
	}
	provider, err := tracing.NewProvider(tracingConfig(cfg))
	if err != nil {
		return nil, err
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &WorkerApp{
		trigger: httpadapter.RemoteSweepTrigger{
			TargetURL: cfg.SweepTargetURL,
			Secret:    cfg.SweepSecret,
			Logger:    logger,
		},
		interval: interval,
		tracing:  provider,
		logger:   logger,
	}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker app is not initialized")
	}
	w.logger.Info("reminder worker started",
		"event", "worker_started",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped",
				"event", "worker_stopped",
				"module", "internal/app/bootstrap",
				"layer", "worker",
			)
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil && errors.Is(err, domainerrors.ErrSweepForbidden) {
				return err
			}
		}
	}
}

// RunOnce triggers a single sweep. A disabled or failing endpoint is logged;
// a secret mismatch is returned since retrying cannot fix it.
func (w *WorkerApp) RunOnce(ctx context.Context) error {
	ctx, span := w.tracing.Tracer().Start(ctx, "group_poll.remote_sweep")
	defer span.End()

	report, err := w.trigger.Trigger(ctx)
	if err != nil {
		span.RecordError(err)
		w.logger.Warn("reminder sweep trigger failed",
			"event", "worker_sweep_trigger_failed",
			"module", "internal/app/bootstrap",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	w.logger.Info("reminder sweep triggered",
		"event", "worker_sweep_triggered",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"conversations", report.Conversations,
		"reminded", report.Reminded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"notified", report.Notified,
	)
	return nil
}

func (w *WorkerApp) Close() error {
	if w == nil || w.tracing == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return w.tracing.Shutdown(ctx)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func tracingConfig(cfg config.Config) tracing.Config {
	out := tracing.DefaultConfig()
	out.Enabled = cfg.Tracing.Enabled
	out.Exporter = cfg.Tracing.Exporter
	out.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	out.SampleRate = cfg.Tracing.SampleRate
	if cfg.ServiceName != "" {
		out.ServiceName = cfg.ServiceName
	}
	return out
}

func normalizeAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
