// Package main is the entry point of the voice XP bot.
//
// The process owns the in-memory record store. It accrues XP on a fixed tick
// from the voice states the gateway relay pushes into Redis, flushes the
// records to the durable store, ships periodic backups, announces level-ups
// and answers /rank and /top over the interactions endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gmz-labs/voicexp/config"

	// Application layer
	"github.com/gmz-labs/voicexp/internal/application/command"
	"github.com/gmz-labs/voicexp/internal/application/eventhandler"
	"github.com/gmz-labs/voicexp/internal/application/query"

	// Domain layer
	"github.com/gmz-labs/voicexp/internal/domain/presence"
	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"

	// Infrastructure layer
	"github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/infrastructure/external/objectstore"
	"github.com/gmz-labs/voicexp/internal/infrastructure/messaging"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"
	"github.com/gmz-labs/voicexp/internal/infrastructure/persistence/file"
	"github.com/gmz-labs/voicexp/internal/infrastructure/persistence/postgres"
	"github.com/gmz-labs/voicexp/internal/infrastructure/persistence/redis"
	"github.com/gmz-labs/voicexp/internal/infrastructure/persistence/sqlite"
	"github.com/gmz-labs/voicexp/internal/infrastructure/scheduler"
	"github.com/gmz-labs/voicexp/internal/infrastructure/scheduler/jobs"
	"github.com/gmz-labs/voicexp/internal/infrastructure/service"

	// Interface layer
	interactions "github.com/gmz-labs/voicexp/internal/interface/discord"
	"github.com/gmz-labs/voicexp/internal/interface/discord/handler"
	"github.com/gmz-labs/voicexp/internal/interface/discord/presenter"
	httpserver "github.com/gmz-labs/voicexp/internal/interface/http"
	"github.com/gmz-labs/voicexp/internal/interface/http/handlers"

	// Packages
	"github.com/gmz-labs/voicexp/pkg/logger"
	"github.com/gmz-labs/voicexp/pkg/retry"
)

const (
	jobAccrue = "accrue_voice_xp"
	jobFlush  = "flush_records"
	jobBackup = "backup_records"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting voice XP bot",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.Store.Driver,
		"backup", cfg.Backup.Driver,
		"features", cfg.Features.Enabled(),
	)

	var collector *metrics.Collector
	if cfg.Observability.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DURABLE STORE (fatal when missing or malformed)
	// ─────────────────────────────────────────────────────────────────────────
	checks := handlers.NewCompositeHealthChecker(cfg.App.Version, 2*time.Second)

	repo, closeRepo, err := openRepository(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeRepo()

	loaded, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	store, err := record.NewStore(loaded)
	if err != nil {
		return fmt.Errorf("invalid record set: %w", err)
	}
	log.Info("records loaded", "members", store.Len(), "total_xp", store.TotalXP())

	// ─────────────────────────────────────────────────────────────────────────
	// 3. VOICE STATE FEED (Redis)
	// ─────────────────────────────────────────────────────────────────────────
	redisCfg := redis.DefaultConfig()
	redisCfg.URL = cfg.Redis.URL
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	redisClient, err := redis.NewClient(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection...")
		_ = redisClient.Close()
	}()

	tracker := redis.NewVoiceTracker(redisClient, cfg.Discord.GuildID, cfg.Redis.HeartbeatTTL)
	nameCache := redis.NewNameCache(redisClient, cfg.Redis.NameCacheTTL)
	checks.AddCheck("redis", handlers.NewPingCheck(tracker))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. DISCORD CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	discordCfg := discord.DefaultClientConfig(cfg.Discord.Token, cfg.Discord.ApplicationID)
	discordCfg.Timeout = cfg.Discord.RequestTimeout
	discordCfg.Logger = log
	discordCfg.Retrier = retry.DiscordRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("retrying discord request", "attempt", attempt, "delay", delay, "error", err)
	}, retry.WithMaxAttempts(cfg.Discord.MaxRetries+1))
	discordClient := discord.NewClient(discordCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS & LEVEL-UP ANNOUNCEMENTS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Observer = func(eventType shared.EventType, _ time.Duration, err error) {
		collector.ObserveEvent(string(eventType), err)
	}
	bus := messaging.NewInMemoryEventBus(busCfg)

	switch {
	case !cfg.Features.IsEnabled(config.FeatureAnnounceLevelUp):
		log.Info("level-up announcements disabled by feature flag")
	case cfg.Discord.LogChannelID == "":
		log.Warn("DISCORD_LOG_CHANNEL_ID not set, level-ups will not be announced")
	default:
		announcer := service.NewDiscordAnnouncer(discordClient, cfg.Discord.LogChannelID, collector, log)
		onLevelUp := eventhandler.NewOnLevelUpHandler(announcer, log, eventhandler.LevelUpConfig{
			Timeout: cfg.Discord.AnnounceTimeout,
		})
		if err := bus.Subscribe(shared.EventLevelUp, onLevelUp.Handle); err != nil {
			return fmt.Errorf("failed to subscribe level-up handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER & JOBS
	// ─────────────────────────────────────────────────────────────────────────
	accrue := command.NewAccrueXPHandler(store, bus, log)
	sink, err := newBackupSink(ctx, cfg, discordClient, log)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	jobCfg := jobs.DefaultAccrueVoiceXPConfig()
	jobCfg.Timeout = cfg.Scheduler.JobTimeout

	for _, j := range []struct {
		job      scheduler.Job
		interval time.Duration
	}{
		{jobs.NewAccrueVoiceXPJob(presence.NewScanner(tracker), accrue, store, collector, log, jobCfg), cfg.Scheduler.AccrueInterval},
		{jobs.NewFlushRecordsJob(store, repo, collector, log, cfg.Scheduler.JobTimeout), cfg.Scheduler.FlushInterval},
		{jobs.NewBackupRecordsJob(store, sink, collector, log, 2*cfg.Scheduler.JobTimeout), cfg.Scheduler.BackupInterval},
	} {
		if err := sched.Register(j.job, scheduler.NewIntervalSchedule(j.interval)); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}
	checks.AddCheck("accrual", handlers.NewFreshnessCheck(jobAccrue,
		func() time.Time { return lastRun(sched, jobAccrue) },
		3*cfg.Scheduler.AccrueInterval+cfg.Scheduler.JobTimeout,
		2*cfg.Scheduler.AccrueInterval+cfg.Scheduler.JobTimeout,
	))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SLASH COMMANDS
	// ─────────────────────────────────────────────────────────────────────────
	rankQuery := query.NewGetMemberRankHandler(store, cfg.Scheduler.AccrueInterval)
	boardQuery := query.NewGetLeaderboardHandler(store)
	view := presenter.New(cfg.Discord.EmbedFooter)

	var router *interactions.Router
	if cfg.Discord.PublicKey != "" {
		publicKey, err := discord.ParsePublicKey(cfg.Discord.PublicKey)
		if err != nil {
			return fmt.Errorf("invalid discord public key: %w", err)
		}
		router = interactions.NewRouter(interactions.RouterConfig{
			PublicKey: publicKey,
			Metrics:   collector,
			Logger:    log,
		})
		if cfg.Features.IsEnabled(config.FeatureCommandRank) {
			router.Register(interactions.CommandRank, handler.NewRankHandler(rankQuery, view))
		}
		if cfg.Features.IsEnabled(config.FeatureCommandTop) {
			names := service.NewUserDirectory(discordClient, nameCache, log)
			router.Register(interactions.CommandTop, handler.NewTopHandler(boardQuery, names, view, cfg.Discord.LeaderboardSize))
		}
		if cfg.Features.IsEnabled(config.FeatureCommandsRegister) {
			registerCommands(ctx, discordClient, cfg, log)
		}
	} else {
		log.Warn("DISCORD_PUBLIC_KEY not set, slash commands are disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	httpCfg.IngestTokens = cfg.HTTP.IngestTokens
	httpCfg.Version = cfg.App.Version

	deps := httpserver.Dependencies{
		VoiceStates:   tracker,
		HealthChecker: checks,
		Metrics:       collector,
		Logger:        log,
	}
	if cfg.Features.IsEnabled(config.FeatureQueryAPI) {
		deps.GetMemberRankHandler = rankQuery
		deps.GetLeaderboardHandler = boardQuery
	}
	if router != nil {
		deps.Interactions = router
	}
	if len(cfg.HTTP.IngestTokens) == 0 {
		log.Warn("PRESENCE_INGEST_TOKEN not set, voice states must be written to redis directly")
	}
	httpServer := httpserver.NewServer(httpCfg, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. START
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	errCh := httpServer.StartAsync()

	log.Info("voice XP bot is running",
		"http_address", httpCfg.Address(),
		"guild_id", cfg.Discord.GuildID,
		"accrue_interval", cfg.Scheduler.AccrueInterval.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", "error", err)
			runErr = err
		}
	case <-ctx.Done():
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Stop accepting requests
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}

	// 2. Stop ticking; waits for in-flight jobs
	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}

	// 3. Persist what was earned since the last flush
	if cfg.Features.IsEnabled(config.FeatureShutdownFlush) {
		if _, err := sched.RunNow(shutdownCtx, jobFlush); err != nil {
			log.Error("final flush failed", "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("final flush: %w", err)
			}
		} else {
			log.Info("final flush completed", "members", store.Len())
		}
	}

	// 4. Drain pending announcements
	if err := bus.Close(); err != nil {
		log.Warn("event bus closed with errors", "error", err)
	}

	log.Info("shutdown completed")
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openRepository opens the durable store selected by STORE_DRIVER.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger, checks *handlers.CompositeHealthChecker) (record.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pgCfg := postgres.DefaultConfig(cfg.Postgres.URL)
		pgCfg.MaxConns = int32(cfg.Postgres.MaxConns)
		pgCfg.MinConns = int32(cfg.Postgres.MinConns)
		pgCfg.MaxConnLifetime = cfg.Postgres.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Postgres.ConnMaxIdleTime

		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		checks.AddCheck("postgres", handlers.NewPingCheck(conn))
		return postgres.NewRecordRepository(conn, log), conn.Close, nil

	case config.StoreDriverSQLite:
		repo, err := sqlite.Open(cfg.SQLite.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return repo, func() { _ = repo.Close() }, nil

	default:
		repo, err := file.NewJSONStore(file.JSONStoreConfig{
			Path:      cfg.Store.FilePath,
			InitEmpty: cfg.Store.InitEmpty,
			Logger:    log,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}
}

// newBackupSink builds the sink selected by BACKUP_DRIVER.
func newBackupSink(ctx context.Context, cfg *config.Config, client *discord.Client, log *slog.Logger) (record.BackupSink, error) {
	switch cfg.Backup.Driver {
	case config.BackupDriverS3:
		archive, err := objectstore.New(ctx, objectstore.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Logger:          log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure s3 backups: %w", err)
		}
		return service.NewS3BackupSink(archive, retry.ObjectStoreRetrier()), nil
	case config.BackupDriverNone:
		return service.NewNopBackupSink(log), nil
	default:
		return service.NewDiscordBackupSink(client, cfg.Discord.BackupChannelID), nil
	}
}

// registerCommands overwrites the guild's slash commands. Failure leaves the
// previous definitions in place, so it is logged and startup continues.
func registerCommands(ctx context.Context, client *discord.Client, cfg *config.Config, log *slog.Logger) {
	regCtx, cancel := context.WithTimeout(ctx, cfg.Discord.RequestTimeout)
	defer cancel()

	registered, err := client.RegisterCommands(regCtx, cfg.Discord.GuildID, interactions.Commands())
	if err != nil {
		if errors.Is(err, discord.ErrNoApplicationID) {
			log.Warn("DISCORD_APPLICATION_ID not set, slash commands not registered")
			return
		}
		log.Error("failed to register slash commands", "error", err)
		return
	}
	log.Info("slash commands registered", "count", len(registered), "guild_id", cfg.Discord.GuildID)
}

// lastRun returns when a job last started, zero if never.
func lastRun(s *scheduler.Scheduler, name string) time.Time {
	for _, info := range s.ListJobs() {
		if info.Name == name {
			return info.LastRun
		}
	}
	return time.Time{}
}

// setupLogger builds the process logger and installs it as the default.
func setupLogger(cfg *config.Config) *slog.Logger {
	format := logger.FormatForEnv(string(cfg.App.Environment))
	switch cfg.Observability.LogFormat {
	case "json":
		format = logger.FormatJSON
	case "text":
		format = logger.FormatText
	}

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	log := logger.New(logger.Options{
		Output:  out,
		Level:   level,
		Format:  format,
		Service: cfg.App.Name,
		Env:     string(cfg.App.Environment),
	})
	slog.SetDefault(log)
	return log
}
