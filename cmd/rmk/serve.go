package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/jaupesca/remarketing-gateway/internal/config"
	"github.com/jaupesca/remarketing-gateway/internal/events"
	"github.com/jaupesca/remarketing-gateway/internal/gateway"
	"github.com/jaupesca/remarketing-gateway/internal/remarketing"
	"github.com/jaupesca/remarketing-gateway/internal/storage"
	"github.com/jaupesca/remarketing-gateway/internal/store/postgres"
	rmksync "github.com/jaupesca/remarketing-gateway/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the gateway",
	GroupID: "system",
	// Override PersistentPreRunE so we don't build an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.NoopPublisher{}
			logger.Info("NATS events disabled (RMK_NATS_URL not set)")
		}
		stream := events.NewStream()
		publisher = events.Multi{publisher, stream}

		// Object storage backs uploads and the backup sync.
		var (
			s3Client *s3.Client
			uploader storage.Uploader
		)
		if cfg.StorageEnabled() {
			s3Client, err = storage.NewS3Client(cmd.Context(), storage.S3Options{
				Region:          cfg.S3Region,
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretAccessKey,
			})
			if err != nil {
				logger.Error("object storage disabled", "err", err)
			} else {
				uploader = storage.NewS3Uploader(s3Client, cfg.S3Bucket, cfg.S3PublicBaseURL)
				logger.Info("object storage enabled", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
			}
		} else {
			logger.Info("object storage disabled (RMK_S3_ENDPOINT and RMK_S3_ACCESS_KEY_ID not set)")
		}

		svc := remarketing.NewService(store, publisher, logger)
		registry := gateway.NewRegistry(cfg.AppName, logger)
		if err := registry.Register(remarketing.NewProject(remarketing.NewHTTPHandler(svc, remarketing.HTTPOptions{
			Uploader:       uploader,
			MaxUploadBytes: cfg.UploadMaxBytes,
			EventStream:    stream,
			Logger:         logger,
		}))); err != nil {
			publisher.Close()
			store.Close()
			return err
		}

		grpcServer, healthServer := gateway.NewGRPCServer(registry, logger)
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			go func() {
				logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           registry.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *rmksync.Scheduler
		if cfg.SyncInterval > 0 {
			if s3Client == nil {
				logger.Warn("sync disabled: object storage is not configured")
			} else {
				dest := rmksync.NewS3Destination(s3Client, cfg.S3Bucket, cfg.SyncS3Key)
				scheduler = rmksync.NewScheduler(store, []rmksync.Destination{dest}, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destination", dest.String())
			}
		}

		logger.Info("gateway started",
			"app", cfg.AppName,
			"env", cfg.Env,
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
