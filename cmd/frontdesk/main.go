package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/api"
	"github.com/meracare/frontdesk/internal/audit"
	"github.com/meracare/frontdesk/internal/dispatch"
	"github.com/meracare/frontdesk/internal/events"
	"github.com/meracare/frontdesk/internal/roster"
	"github.com/meracare/frontdesk/internal/scheduler"
	"github.com/meracare/frontdesk/internal/shared/auth"
	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/shared/database"
	"github.com/meracare/frontdesk/internal/shared/logging"
	"github.com/meracare/frontdesk/internal/shared/metrics"
	secmiddleware "github.com/meracare/frontdesk/internal/shared/middleware"
	"github.com/meracare/frontdesk/internal/simulation"
	"github.com/meracare/frontdesk/internal/store"
	"github.com/meracare/frontdesk/internal/upstream"
)

// App holds the long-lived application components.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	DB      *database.DB
	Channel *events.Channel
	Legacy  *roster.LegacySource
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Server.Env, cfg.Log.Level)
	app := &App{Config: cfg, Log: log}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres backs the operator action audit. The console runs without it;
	// actions then go unaudited but everything else works.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("audit database not available, actions will not be audited")
	} else {
		app.DB = db
		defer db.Close()
		if err := database.Migrate(ctx, db.Pool, logging.Component(log, "database")); err != nil {
			log.Warn().Err(err).Msg("audit migration failed")
		}
	}

	// The event channel is optional too: without it the scheduler runs on
	// the degraded poll interval alone.
	channel, err := events.NewChannel(cfg.Stream, logging.Component(log, "events"))
	if err != nil {
		log.Warn().Err(err).Msg("event stream not available, running on polling alone")
	} else {
		app.Channel = channel
		defer channel.Close()
		go channel.Run(ctx)
	}

	client := upstream.New(cfg.Upstream, logging.Component(log, "upstream"))

	var fetcher store.Fetcher = client
	if cfg.Roster.Source == "legacy" {
		legacy, err := roster.NewLegacySource(cfg.Roster, logging.Component(log, "roster"))
		if err != nil {
			log.Warn().Err(err).Msg("legacy roster source not available, falling back to the gateway roster")
		} else {
			app.Legacy = legacy
			defer legacy.Close()
			fetcher = roster.WithSource(client, legacy)
			log.Info().Msg("doctor roster sourced from the legacy HIS database")
		}
	}

	st := store.New(fetcher, logging.Component(log, "store"))

	var source events.Source
	if app.Channel != nil {
		source = app.Channel
	}
	sched := scheduler.New(st, source, cfg.Sync, logging.Component(log, "scheduler"))
	go sched.Run(ctx)

	var recorder dispatch.Recorder
	if app.DB != nil {
		recorder = audit.NewRepository(app.DB.Pool)
	}
	dispatcher := dispatch.New(client, sched, recorder, logging.Component(log, "dispatch"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(logging.Component(log, "http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).Middleware)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		consoleHandler := api.NewHandler(st, dispatcher, client, source, cfg.Sync.DefaultPageSize, logging.Component(log, "api"))
		r.Mount("/", consoleHandler.Routes())

		if app.DB != nil {
			auditHandler := audit.NewHandler(audit.NewRepository(app.DB.Pool))
			r.Mount("/audit", auditHandler.Routes())
		}

		if app.Channel != nil && cfg.Server.Env != "production" {
			simHandler := simulation.NewHandler(app.Channel)
			r.Mount("/simulation", simHandler.Routes())
			log.Info().Msg("notification simulator enabled")
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("upstream", cfg.Upstream.BaseURL).
		Str("roster_source", cfg.Roster.Source).
		Bool("events", app.Channel != nil).
		Bool("audit", app.DB != nil).
		Msg("front desk console started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Front Desk Console",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Channel != nil {
			if err := app.Channel.Health(); err != nil {
				checks["events"] = "not ready: " + err.Error()
			} else {
				checks["events"] = "ready"
			}
		} else {
			checks["events"] = "not configured"
		}

		if app.Legacy != nil {
			if err := app.Legacy.Health(r.Context()); err != nil {
				checks["legacy_roster"] = "not ready: " + err.Error()
			} else {
				checks["legacy_roster"] = "ready"
			}
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
