package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gastos/internal/api"
	"github.com/dvloznov/gastos/internal/api/handlers"
	"github.com/dvloznov/gastos/internal/config"
	"github.com/dvloznov/gastos/internal/dispatcher"
	"github.com/dvloznov/gastos/internal/extraction"
	"github.com/dvloznov/gastos/internal/gcsuploader"
	"github.com/dvloznov/gastos/internal/identity"
	"github.com/dvloznov/gastos/internal/infra"
	infraBQ "github.com/dvloznov/gastos/internal/infra/bigquery"
	"github.com/dvloznov/gastos/internal/jobs"
	"github.com/dvloznov/gastos/internal/jobs/inmemory"
	"github.com/dvloznov/gastos/internal/logger"
	"github.com/dvloznov/gastos/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewFromOptions(logger.Options{
		Level:  cfg.Logger.Level,
		Format: logger.Format(cfg.Logger.Format),
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize storage
	store, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer store.Close()

	linker := identity.NewLinker(store, log)

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create identity verifier")
	}

	engine, err := extraction.NewGeminiEngine(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction engine")
	}

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}

	// Initialize job infrastructure
	var expenseSink jobs.ExpenseSink
	if cfg.Archive.Dataset != "" {
		archive, err := infraBQ.NewExpenseArchive(ctx, cfg.Archive.ProjectID, cfg.Archive.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create expense archive")
		}
		defer archive.Close()
		if err := archive.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare expense archive table")
		}
		expenseSink = archive
	} else {
		log.Warn().Msg("No EXPENSES_DATASET configured - expense archival disabled")
	}

	var receiptSink jobs.ReceiptSink
	if cfg.Archive.ReceiptsBucket != "" {
		receipts, err := gcsuploader.NewReceiptStore(ctx, cfg.Archive.ReceiptsBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt store")
		}
		defer receipts.Close()
		receiptSink = receipts
	} else {
		log.Warn().Msg("No RECEIPTS_BUCKET configured - receipt archival disabled")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Archive.QueueSize, cfg.Archive.Workers, jobStore)
	archiver := jobs.NewArchiver(jobQueue, expenseSink, receiptSink, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.Archive.Workers).Msg("Starting archive workers")
		if err := jobQueue.Start(workerCtx, archiver.Handle); err != nil {
			log.Error().Err(err).Msg("Archive workers stopped with error")
		}
	}()

	events := dispatcher.New(dispatcher.Config{
		Extractor: engine,
		Store:     store,
		Linker:    linker,
		Replier:   bot,
		Files:     bot,
		Archiver:  archiver,
		BaseURL:   cfg.Server.BaseURL,
		Logger:    log,
	})

	handler := api.NewRouter(api.RouterConfig{
		Expenses: handlers.NewExpensesHandler(store, linker, archiver, log),
		Link:     handlers.NewLinkHandler(linker, log),
		Webhook:  handlers.NewWebhookHandler(events, cfg.Telegram.WebhookSecret, log),
		Jobs:     handlers.NewJobsHandler(jobStore, log),
		Messages: handlers.NewMessagesHandler(events, log),
		APIKey:   cfg.Server.APIKey,
		Verifier: verifier,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Bool("firebase_auth", cfg.Auth.UseFirebase()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for in-flight archive jobs before the sinks are closed.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (identity.Verifier, error) {
	if cfg.UseFirebase() {
		return identity.NewFirebaseVerifier(ctx, identity.FirebaseOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentials,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
	}
	return identity.NewJWTVerifier(cfg.JWTSecret), nil
}
