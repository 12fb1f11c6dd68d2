package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-grading/internal/api/http"
	auth "github.com/mind-engage/mindengage-grading/internal/auth/middleware"
	"github.com/mind-engage/mindengage-grading/internal/catalog"
	"github.com/mind-engage/mindengage-grading/internal/config"
	"github.com/mind-engage/mindengage-grading/internal/db"
	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/rbac"
	"github.com/mind-engage/mindengage-grading/internal/submission"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "grading ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	var store exam.Store
	if cfg.DBDriver == "memory" {
		store = exam.NewMemoryStore()
	} else {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		defer dbh.Close()
		store = exam.NewSQLStore(dbh)
	}

	// --- Catalog + workflow ---
	cat := catalog.New(catalog.Config{
		BaseURL:      cfg.CatalogBaseURL,
		TokenURL:     cfg.CatalogTokenURL,
		ClientID:     cfg.CatalogClientID,
		ClientSecret: cfg.CatalogClientSecret,
		CallerToken:  auth.TokenFromContext,
		Timeout:      cfg.CatalogTimeout,
	})
	svc := submission.NewService(store, cat, cat,
		submission.WithLogger(logger),
		submission.WithFullRegrade(cfg.RegradeFull),
	)

	if cfg.EventsWebhookURL != "" {
		relay := syncx.NewRelay(store, syncx.WebhookSink{
			URL:  cfg.EventsWebhookURL,
			HTTP: &http.Client{Timeout: 10 * time.Second},
		}, cfg.EventsPollInterval, logger)
		relay.StartAt(cfg.EventsStartAfter)
		go func() {
			relay.Run(ctx)
			logger.Printf("event relay stopped after offset %d", relay.Cursor())
		}()
	}

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginAccount{
			Username: cfg.AdminUser,
			UserID:   cfg.AdminUserID,
			PassHash: cfg.AdminPassHash,
			Role:     rbac.RoleAdmin,
		}))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Route("/api/responses", func(rr chi.Router) {
			api.MountResponses(rr, svc)
		})
		pr.With(rbac.Require(rbac.PermEventsView)).
			Get("/api/admin/events", api.ListEventsHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.EventsSince(r.Context(), 0, 1); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("listening on %s (mode=%s, db=%s, catalog=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.CatalogBaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
