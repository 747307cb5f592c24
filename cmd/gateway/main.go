package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/mind-engage/mindengage-coe/internal/api/http"
	auth "github.com/mind-engage/mindengage-coe/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/config"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeStore, err := coe.OpenStore(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer closeStore()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	svc := coe.NewService(store, bs,
		coe.WithEngine(grading.NewEngine(grading.WithMaxGrace(cfg.MaxGraceMarks))),
		coe.WithBundleSize(cfg.BundleSize),
	)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginConfig{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLogin:      cfg.EnableDevLogin,
		}))

		// Protected API (JWT → role in context → RBAC)
		ar.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(authSvc))
			api.MountCOE(pr, svc, bs)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("listening on %s (mode=%s, db=%s, dev_login=%t)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.EnableDevLogin)
	log.Fatal(s.ListenAndServe())
}
