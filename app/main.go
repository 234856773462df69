package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regwatch/app/api"
	"regwatch/app/catalog"
	"regwatch/app/cfg"
	"regwatch/app/classify"
	"regwatch/app/database"
	"regwatch/app/feed"
	"regwatch/app/notify"
	"regwatch/app/pipeline"
	"regwatch/app/scheduler"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RegWatch", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	seenRepo := database.NewSeenRepo(db)
	recipientRepo := database.NewRecipientRepo(db)
	cycleRepo := database.NewCycleRepo(db)

	catalogCache, err := buildCatalog(appCfg)
	if err != nil {
		slog.Error("Failed to set up source catalog", "error", err)
		os.Exit(1)
	}

	bot, err := notify.NewBot(appCfg.TelegramToken, recipientRepo, appCfg.RequireApproval)
	if err != nil {
		slog.Error("Failed to start Telegram bot", "error", err)
		os.Exit(1)
	}

	botCtx, stopBot := context.WithCancel(context.Background())
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		bot.Run(botCtx)
	}()

	fetcher := feed.NewSourceFetcher(
		&http.Client{},
		feed.NewContentExtractor(),
		appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second,
		appCfg.ExtractContent,
	)

	classifier := classify.NewOpenAIClassifier(
		appCfg.OpenAIEndpoint, appCfg.OpenAIModel, appCfg.OpenAIKey, appCfg.TruncateLimit)

	runner := pipeline.NewRunner(pipeline.Deps{
		Catalog:           catalogCache,
		Fetcher:           fetcher,
		Tracker:           pipeline.NewTracker(seenRepo, time.Duration(appCfg.RetentionDays)*24*time.Hour),
		Classifier:        classifier,
		Recipients:        recipientRepo,
		Dispatcher:        pipeline.NewDispatcher(bot, appCfg.DeliveryRetries, time.Duration(appCfg.DeliveryBackoff)*time.Second),
		Cycles:            cycleRepo,
		BatchSize:         appCfg.BatchSize,
		ClassifierRetries: appCfg.ClassifierRetries,
		ClassifierBackoff: time.Duration(appCfg.ClassifierBackoff) * time.Second,
		FetchWorkers:      appCfg.FetchWorkers,
		FetchDelay:        time.Duration(appCfg.FetchDelay) * time.Second,
	})

	slog.Info("Starting cycle scheduler", "interval_seconds", appCfg.CycleInterval)
	cycleScheduler := scheduler.NewScheduler(runner, time.Duration(appCfg.CycleInterval)*time.Second)
	cycleScheduler.Start()

	apiHandler := api.NewHandler(catalogCache, seenRepo, recipientRepo, cycleRepo, runner, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	// Let an in-flight cycle reach its commit step before tearing down the
	// transports it depends on
	cycleScheduler.Stop()
	slog.Info("Cycle scheduler stopped")

	stopBot()
	<-botDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// buildCatalog selects the source catalog backend: the Google spreadsheet when
// configured, the local YAML file otherwise.
func buildCatalog(appCfg *cfg.Cfg) (*catalog.Cache, error) {
	if appCfg.SpreadsheetID != "" && appCfg.GoogleAPIKey != "" {
		client, err := catalog.NewSheetClient(context.Background(),
			appCfg.GoogleAPIKey, appCfg.SpreadsheetID, appCfg.SourcesRange, appCfg.KeywordsRange)
		if err != nil {
			return nil, err
		}
		slog.Info("Using spreadsheet source catalog", "spreadsheet_id", appCfg.SpreadsheetID)
		return catalog.NewCache(client), nil
	}

	slog.Info("Using file source catalog", "path", appCfg.SourcesFile)
	return catalog.NewCache(catalog.NewFileClient(appCfg.SourcesFile)), nil
}
