package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/backend"
	"github.com/alfredjeanlab/odm/internal/config"
	"github.com/alfredjeanlab/odm/internal/events"
	"github.com/alfredjeanlab/odm/internal/odm"
	"github.com/alfredjeanlab/odm/internal/schemafile"
	"github.com/alfredjeanlab/odm/internal/server"
	odmsync "github.com/alfredjeanlab/odm/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Serve documents over HTTP and the raw store over gRPC",
	GroupID:     "system",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if storeURL != "" {
			cfg.StoreURL = storeURL
		}
		if len(schemaGlobs) > 0 {
			cfg.Schemas = schemaGlobs
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := context.Background()

		reg, files, err := schemafile.Load(cfg.Schemas...)
		if err != nil {
			return err
		}
		logger.Info("schemas loaded", zap.Strings("files", files), zap.Int("schemas", len(reg.Schemas())))

		st, err := backend.Open(ctx, cfg.StoreURL, backend.Options{Logger: logger})
		if err != nil {
			return err
		}

		var next events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			next = pub
			logger.Info("events enabled", zap.String("nats_url", cfg.NATSURL))
		} else {
			next = &events.NoopPublisher{}
			logger.Info("NATS events disabled (ODM_NATS_URL not set)")
		}
		stream := server.NewStream(next, logger)

		session, err := odm.NewSession(st, reg,
			odm.WithPublisher(stream),
			odm.WithLogger(logger),
			odm.WithDepth(cfg.Depth),
		)
		if err != nil {
			stream.Close()
			st.Close()
			return err
		}

		grpcServer := server.NewGRPCServer(st, logger, cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			stream.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", zap.Error(err))
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.New(session, stream, logger).NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()

		scheduler := startScheduler(ctx, cfg, session, logger)

		logger.Info("odm server started",
			zap.String("grpc_addr", cfg.GRPCAddr),
			zap.String("http_addr", cfg.HTTPAddr),
			zap.Bool("auth", cfg.AuthToken != ""),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		logger.Info("HTTP server stopped")

		if err := stream.Close(); err != nil {
			logger.Error("error closing publisher", zap.Error(err))
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", zap.Error(err))
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// startScheduler starts periodic exports when an interval and at least one
// destination are configured.
func startScheduler(ctx context.Context, cfg *config.Config, session *odm.Session, logger *zap.Logger) *odmsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []odmsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := odmsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Prefix, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", zap.Error(err))
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", zap.Stringer("destination", s3Dest))
		}
	}
	if cfg.SyncDir != "" {
		dirDest := odmsync.NewDirDestination(cfg.SyncDir)
		dests = append(dests, dirDest)
		logger.Info("sync directory destination enabled", zap.Stringer("destination", dirDest))
	}
	if len(dests) == 0 {
		return nil
	}
	scheduler := odmsync.NewScheduler(session.Store(), dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", zap.Duration("interval", cfg.SyncInterval))
	return scheduler
}
