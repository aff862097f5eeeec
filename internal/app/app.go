package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/ai"
	"ledgerlens-go/internal/config"
	"ledgerlens-go/internal/database"
	"ledgerlens-go/internal/extract"
	"ledgerlens-go/internal/gmail"
	"ledgerlens-go/internal/handler"
	"ledgerlens-go/internal/ingest"
	"ledgerlens-go/internal/mailsync"
	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/repository"
	"ledgerlens-go/internal/scheduler"
	"ledgerlens-go/internal/server"
	"ledgerlens-go/internal/storage"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting LedgerLens Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	users := repository.NewUserRepository(dbConn)
	documents := repository.NewDocumentRepository(dbConn)
	transactions := repository.NewTransactionRepository(dbConn)

	ctx := context.Background()

	blobs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer blobs.Close()

	modelClient, err := ai.NewGeminiExtractor(ctx, cfg.Gemini)
	if err != nil {
		return fmt.Errorf("failed to create extraction client: %w", err)
	}

	pipeline := ingest.NewPipeline(
		blobs,
		documents,
		extract.New(),
		modelClient,
		ingest.NewMaterializer(transactions),
		m,
	)

	factory := gmail.NewClientFactory(cfg.Google)
	worker := mailsync.NewWorker(factory, users, pipeline, m)
	sequencer := mailsync.NewSequencer()
	gate := mailsync.NewGate(users, worker, sequencer, m, cfg.Sync.Workers, cfg.Sync.QueueSize)

	sched := scheduler.NewScheduler(&cfg.Scheduler, users, factory)

	h := handler.NewHandlers(dbConn, gate, pipeline, users, documents, transactions, blobs, sched)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	// Let in-flight syncs finish before closing shared clients.
	gate.Stop()

	logrus.Info("Server stopped gracefully")
	return nil
}
