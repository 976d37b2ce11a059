// main package for the podcast-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/httpapi"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/book-expert/podcast-service/internal/speech"
	"github.com/book-expert/podcast-service/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFile = "podcast-service-bootstrap.log"
	serviceLogFile   = "podcast-service.log"
	shutdownTimeout  = 30 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	envErr := godotenv.Load()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		bootstrapLog.Warn("Failed to load .env file: %v", envErr)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	stack, err := podcast.Build(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to build pipeline: %v", err)

		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	if cfg.NATS.URL != "" {
		natsConnection, natsErr := startWorker(ctx, cfg, stack.Service, finalLog, errChan)
		if natsErr != nil {
			return natsErr
		}
		defer natsConnection.Close()
	}

	server := httpapi.New(stack.Service, httpapi.Options{
		BodyLimit: cfg.Server.BodyLimit(),
		StaticDir: cfg.Paths.StaticDir,
		Health: func(healthCtx context.Context) error {
			return speech.HealthCheck(healthCtx, stack.Synthesizer)
		},
	}, finalLog)

	go func() {
		errChan <- server.Listen(cfg.Server.ListenAddr)
	}()

	finalLog.System("Podcast service listening on %s (speech provider: %s, output: %s)",
		cfg.Server.ListenAddr, cfg.Speech.Provider, stack.Service.OutputFormat())

	select {
	case <-ctx.Done():
		finalLog.System("Shutdown signal received.")
	case err = <-errChan:
		if err != nil {
			finalLog.Error("Service component stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		finalLog.Error("HTTP shutdown failed: %v", shutdownErr)
	}

	return err
}

// startWorker connects to NATS, opens both buckets and runs the worker until ctx ends.
func startWorker(
	ctx context.Context,
	cfg *config.Config,
	service *podcast.Service,
	log *logger.Logger,
	errChan chan<- error,
) (*nats.Conn, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	documents, err := objectstore.New(jetstreamContext, cfg.NATS.DocumentObjectStore)
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	natsWorker := worker.NewNatsWorker(
		natsConnection, cfg.NATS.PodcastRequestedSubject, documents, audioStore, service, cfg.NATS.Timeout(), log,
	)

	go func() {
		runErr := natsWorker.Run(ctx)
		if runErr != nil {
			errChan <- runErr
		}
	}()

	log.System("Listening for podcast requests on subject: %s", cfg.NATS.PodcastRequestedSubject)

	return natsConnection, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
