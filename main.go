package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/config"
	"github.com/ticketscan/scan-backend/database"
	"github.com/ticketscan/scan-backend/handlers"
	"github.com/ticketscan/scan-backend/jobs"
	"github.com/ticketscan/scan-backend/services"
)

func main() {
	// Load config
	cfg := config.LoadConfig()
	unified := cfg.Unified()
	unified.Logging.ConfigureLogging()

	if cfg.DatabaseURL == "" {
		logrus.Fatal("DATABASE_URL is required")
	}

	// Connect to database
	if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations, then refuse to serve without the ledger's unique constraint
	if err := database.Migrate(cfg.SchemaPath); err != nil {
		logrus.Warnf("Migration warning: %v", err)
	}
	if err := database.ValidateSchema(context.Background()); err != nil {
		logrus.Fatalf("Schema check failed: %v", err)
	}

	// Initialize services
	normalizer, err := services.NewOCRNormalizerFromFile(unified.Extraction.CorrectionsPath)
	if err != nil {
		logrus.Fatalf("Failed to load OCR corrections: %v", err)
	}
	extractor := services.NewFieldExtractor()
	verifier := services.NewVerificationServiceWithConfig(database.DB, unified.Database)
	scanService := services.NewScanService(normalizer, extractor, verifier).
		WithSlowScanThreshold(unified.Service.SlowScanDuration)

	logrus.WithFields(logrus.Fields{
		"extractor":        extractor.String(),
		"ocr_corrections":  len(normalizer.Corrections()),
		"request_timeout":  unified.Service.RequestTimeout,
		"metrics_interval": unified.Service.MetricsInterval,
		"submit_interval":  unified.Service.SubmitInterval,
		"dev_jwt_secret":   cfg.UsesDevSecret(),
	}).Info("Scan backend services initialized")

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := unified.ToJSON(); err == nil {
			logrus.Debugf("Effective configuration: %s", data)
		}
	}

	// Start background jobs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsJob := jobs.NewMetricsReportJob(verifier, extractor, database.HealthCheck)
	metricsJob.Start(ctx, unified.Service.MetricsInterval)

	// Setup Fiber
	scanHandler := handlers.NewScanHandler(scanService, unified.Service.RequestTimeout)
	metricsHandler := handlers.NewMetricsHandler(database.DB, verifier, extractor)
	app := handlers.NewApp(unified.Service, cfg.JWTSecret, scanHandler, metricsHandler)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			logrus.Errorf("Server shutdown failed: %v", err)
		}
	}()

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}

	metricsJob.Run(context.Background())
	logrus.Info("Server stopped")
}
