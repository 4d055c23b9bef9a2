package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-gradebook/internal/api/http"
	"github.com/mind-engage/mindengage-gradebook/internal/audit"
	auth "github.com/mind-engage/mindengage-gradebook/internal/auth/middleware"
	"github.com/mind-engage/mindengage-gradebook/internal/cache"
	"github.com/mind-engage/mindengage-gradebook/internal/config"
	"github.com/mind-engage/mindengage-gradebook/internal/db"
	"github.com/mind-engage/mindengage-gradebook/internal/export"
	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
	"github.com/mind-engage/mindengage-gradebook/internal/logger"
	"github.com/mind-engage/mindengage-gradebook/internal/rbac"
	"github.com/mind-engage/mindengage-gradebook/internal/source/httpsource"
	"github.com/mind-engage/mindengage-gradebook/internal/source/sqlsource"
	"github.com/mind-engage/mindengage-gradebook/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
	}
	defer dbh.Close()

	src, err := newSource(ctx, cfg, dbh, log)
	if err != nil {
		log.Fatal("source setup failed", "driver", cfg.SourceDriver, "error", err)
	}

	rowCache, err := cache.New(cache.Driver(cfg.CacheDriver), cfg.CacheTTL, cfg.RedisAddr, log)
	if err != nil {
		log.Fatal("cache setup failed", "error", err)
	}

	svc := gradebook.NewService(src, log,
		gradebook.WithCache(rowCache),
		gradebook.WithRecorder(audit.NewEventRepo(dbh, "")),
		gradebook.WithConcurrency(cfg.FetchConcurrency),
	)

	var archive *export.Archive
	if cfg.ExportArchiveDir != "" {
		bs, err := storage.NewFSStore(cfg.ExportArchiveDir)
		if err != nil {
			log.Fatal("blob store", "dir", cfg.ExportArchiveDir, "error", err)
		}
		archive = export.NewArchive(bs)
	}

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, map[string]auth.Account{
		cfg.AdminUser: {Hash: cfg.AdminPassHash, Role: rbac.RoleAdmin},
	})

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", api.Healthz)
	r.Get("/readyz", api.Readyz(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return dbh.PingContext(ctx)
	}))

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/auth/login", auth.LoginHandler(authSvc))

		// Protected API (JWT → role in context → RBAC)
		ar.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(authSvc))
			api.MountGradebook(pr, api.Deps{Service: svc, Archive: archive, Log: log})
		})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver,
			"source", cfg.SourceDriver, "cache", cfg.CacheDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func newSource(ctx context.Context, cfg config.Config, dbh *sql.DB, log *logger.Logger) (gradebook.Source, error) {
	switch cfg.SourceDriver {
	case "http":
		if cfg.UpstreamBaseURL == "" {
			return nil, errors.New("UPSTREAM_BASE_URL is required for the http source")
		}
		return httpsource.New(httpsource.Config{
			BaseURL:      cfg.UpstreamBaseURL,
			TokenURL:     cfg.UpstreamTokenURL,
			ClientID:     cfg.UpstreamClientID,
			ClientSecret: cfg.UpstreamClientSecret,
			Timeout:      cfg.UpstreamTimeout,
		}), nil
	case "sql", "":
		store := sqlsource.New(dbh)
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			fx, err := sqlsource.LoadFixture(f)
			if err != nil {
				return nil, err
			}
			if err := store.Seed(ctx, fx); err != nil {
				return nil, err
			}
			log.Info("fixture loaded", "file", cfg.SeedFile, "sections", len(fx.Sections))
		}
		return store, nil
	default:
		return nil, errors.New("unsupported source driver: " + cfg.SourceDriver)
	}
}
