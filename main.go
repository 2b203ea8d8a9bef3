package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/bootstrap"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/config"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/feedback"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/generator"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/gmailclient"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/handler"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/ingest"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/server"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/training"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	emailRepo := repository.NewEmailRepository(db, logger)
	corpusRepo := repository.NewCorpusRepository(db, logger)
	versionRepo := repository.NewModelVersionRepository(db, logger)

	// Domain services
	classifierSvc := classifier.NewService(logger)
	corpusMgr := corpus.NewManager(corpusRepo, logger)
	trainer := training.NewOrchestrator(corpusMgr, versionRepo, classifierSvc, training.Config{
		MinExamplesPerCategory: cfg.Classifier.MinExamplesPerCategory,
		Timeout:                time.Duration(cfg.Classifier.RetrainTimeout) * time.Second,
		SnapshotPath:           cfg.Classifier.ModelSnapshotPath,
	}, logger)
	feedbackCtrl := feedback.NewController(db, emailRepo, corpusMgr, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Seed the corpus from bundled training data
	loader := bootstrap.NewLoader(corpusMgr, logger)
	if cfg.Bootstrap.JSONPath != "" {
		if _, err := loader.LoadJSON(ctx, cfg.Bootstrap.JSONPath); err != nil {
			logger.Warn("Failed to load bootstrap corpus", zap.Error(err))
		}
	}
	if cfg.Bootstrap.CSVPath != "" {
		if _, err := loader.LoadCSV(ctx, cfg.Bootstrap.CSVPath); err != nil {
			logger.Warn("Failed to load bootstrap corpus", zap.Error(err))
		}
	}

	// Restore the last serving model, or train an initial one
	restoreModel(ctx, cfg, versionRepo, classifierSvc, trainer, logger)

	// Response generator
	responder, err := generator.New(generator.Config{
		Provider:   cfg.Generator.Provider,
		APIKey:     cfg.Generator.APIKey,
		ModelName:  cfg.Generator.ModelName,
		MaxRetries: cfg.Generator.MaxRetries,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize response generator", zap.Error(err))
	}

	// Gmail ingestion (optional)
	var pipeline *ingest.Pipeline
	if cfg.Gmail.Enabled {
		mailbox, err := gmailclient.NewClient(ctx, cfg.Gmail.CredentialsPath, cfg.Gmail.TokenPath, logger)
		if err != nil {
			logger.Warn("Failed to initialize Gmail client, continuing without it", zap.Error(err))
		} else {
			pipeline = ingest.NewPipeline(mailbox, responder, classifierSvc, emailRepo, ingest.Config{
				ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
				AutoResponseEnabled: cfg.Classifier.AutoResponseEnabled,
				MaxFetch:            cfg.Gmail.MaxFetch,
				Workers:             cfg.Gmail.Workers,
				PollInterval:        time.Duration(cfg.Gmail.PollInterval) * time.Second,
			}, logger)
			go pipeline.Run(ctx)
		}
	}

	// Initialize and run the server
	h := handler.NewHandler(classifierSvc, emailRepo, feedbackCtrl, trainer, pipeline, responder, handler.Config{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		AutoResponseEnabled: cfg.Classifier.AutoResponseEnabled,
	}, logger)
	srv := server.NewServer(h, logger)
	go func() {
		if err := srv.Run(cfg.Server.Port); err != nil {
			logger.Error("Server stopped", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Application stopped.")
}

// restoreModel brings the classifier back to its last known state: load
// the on-disk snapshot if it matches a recorded version, otherwise try a
// fresh training run from whatever corpus exists.
func restoreModel(
	ctx context.Context,
	cfg *config.Config,
	versions repository.ModelVersionRepository,
	classifierSvc *classifier.Service,
	trainer *training.Orchestrator,
	logger *zap.Logger,
) {
	if cfg.Classifier.ModelSnapshotPath != "" {
		versionID, model, err := classifier.LoadSnapshot(cfg.Classifier.ModelSnapshotPath)
		if err == nil {
			if _, verr := versions.Get(ctx, versionID); verr == nil {
				classifierSvc.SwapActive(model, versionID)
				logger.Info("Model restored from snapshot", zap.String("version_id", versionID))
				return
			}
			logger.Warn("Snapshot references unknown model version, retraining",
				zap.String("version_id", versionID))
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to load model snapshot", zap.Error(err))
		}
	}

	version, err := trainer.Retrain(ctx)
	if err != nil {
		if errors.Is(err, training.ErrInsufficientData) {
			logger.Warn("Not enough training data for an initial model, classification unavailable",
				zap.Error(err))
			return
		}
		logger.Error("Initial training failed", zap.Error(err))
		return
	}
	logger.Info("Initial model trained",
		zap.String("version_id", version.VersionID),
		zap.Int("samples", version.SampleCount),
		zap.Float64("accuracy_estimate", version.AccuracyEstimate))
}
