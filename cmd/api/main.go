package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/emandor/course_service/internal/app"
	"github.com/emandor/course_service/internal/auth"
	"github.com/emandor/course_service/internal/cache"
	"github.com/emandor/course_service/internal/config"
	"github.com/emandor/course_service/internal/course"
	"github.com/emandor/course_service/internal/db"
	"github.com/emandor/course_service/internal/metrics"
	"github.com/emandor/course_service/internal/store"
	"github.com/emandor/course_service/internal/telemetry"
	"github.com/emandor/course_service/internal/user"
	"github.com/emandor/course_service/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	doReset := flag.Bool("reset", false, "drop every table and exit")
	flag.Parse()

	cfg := config.Load()
	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("booting course_service")

	sqlxDB, dbErr := db.Open(cfg.DBDSN)

	if *doMigrate || *doReset {
		if dbErr == nil {
			dbErr = db.NewHealth(sqlxDB, nil).Check(context.Background())
		}
		if dbErr != nil {
			tlog.Fatal().Err(dbErr).Msg("db_connect_failed")
		}
		if *doReset {
			if err := db.Reset(sqlxDB); err != nil {
				tlog.Fatal().Err(err).Msg("db_reset_failed")
			}
			tlog.Warn().Msg("database reset")
		}
		if *doMigrate {
			if err := db.Migrate(sqlxDB); err != nil {
				tlog.Fatal().Err(err).Msg("migrate_failed")
			}
			tlog.Info().Msg("migrations done")
		}
		return
	}

	if dbErr != nil {
		// keep serving; the status route reports the failure and /api answers 503
		tlog.Error().Err(dbErr).Msg("db_not_configured")
	}
	health := db.NewHealth(sqlxDB, dbErr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := health.Check(ctx); err != nil && sqlxDB != nil {
		tlog.Error().Err(err).Msg("db_unavailable_at_boot")
	}
	go health.Watch(ctx, cfg.DBHealthInterval)

	var kv cache.Store
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			tlog.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis_connect_failed")
		}
		defer rdb.Close()
		kv = cache.NewRedis(rdb)
	} else {
		tlog.Warn().Msg("REDIS_ADDR not set; sessions and consumed nonces are kept in process memory")
		kv = cache.NewMemory(time.Minute)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	provider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		RPS:          cfg.ProviderRPS,
		Burst:        cfg.ProviderBurst,
		Timeout:      cfg.ProviderTimeout,
	})

	hub := ws.NewHub()
	users := user.NewProvisioner(store.NewUsers(sqlxDB), m)
	courses := course.NewService(store.NewLessons(sqlxDB), store.NewProgress(sqlxDB), hub, m)

	server := app.New(app.Deps{
		Config:   cfg,
		Health:   health,
		Auth:     auth.NewHandler(cfg, provider, users, kv, m),
		Course:   course.NewHandler(courses),
		Hub:      hub,
		Gatherer: reg,
	})

	go func() {
		<-ctx.Done()
		tlog.Info().Msg("shutting down")
		_ = server.ShutdownWithTimeout(10 * time.Second)
	}()

	if err := server.Listen(":" + cfg.AppPort); err != nil {
		tlog.Fatal().Err(err).Msg("listen_failed")
	}
}
