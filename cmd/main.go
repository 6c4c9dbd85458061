// smartod-od-service
//
// Approval backend for campus On-Duty (OD) requests tied to placement offers.
// Implements:
//   - applyForOD            — eligibility gate, filename checks, document
//     content verification, transactional creation at DOCS_VERIFIED
//   - transitionOD          — role-gated status machine with timeline log
//   - student/mentor queries
//
// Every accepted transition notifies the owning student (Postgres row +
// Redis publish for the Gateway bell/SSE). A cron sweep alerts admins about
// students without an assigned mentor.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartod/od-service/internal/config"
	"smartod/od-service/internal/db"
	"smartod/od-service/internal/extract"
	"smartod/od-service/internal/httpapi"
	"smartod/od-service/internal/notify"
	"smartod/od-service/internal/od"
	"smartod/od-service/internal/scheduler"
	"smartod/od-service/internal/store"
	"smartod/od-service/internal/upload"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	_ = godotenv.Load() // optional .env for local development

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[od-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[od-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[od-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("[od-service] Schema: %v", err)
	}
	log.Println("[od-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[od-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[od-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[od-service] Redis connected ✓")

	// ── Services ─────────────────────────────────────────────────────────────
	files, err := upload.NewStorage(cfg.UploadDir)
	if err != nil {
		log.Fatalf("[od-service] Upload storage: %v", err)
	}

	st := store.New(pool)
	notifications := notify.NewService(pool, rdb)
	svc := od.NewService(st, st, extract.NewPDFExtractor(), notifications, files,
		od.VerifyOptions{RequireDatePeriodMatch: cfg.RequireDateMatch})

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(notifications, cfg.AlertIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[od-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := httpapi.NewHandler(svc, notifications, st)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("[od-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[od-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[od-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[od-service] Shutdown error: %v", err)
	}
	log.Println("[od-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "od-service",
		"version": version,
	})
}
