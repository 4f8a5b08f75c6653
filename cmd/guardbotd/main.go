package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/guard-registry/internal/app"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/export"
	"github.com/joseph-ayodele/guard-registry/internal/intake"
	"github.com/joseph-ayodele/guard-registry/internal/messaging"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
	"github.com/joseph-ayodele/guard-registry/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "guardbotd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := common.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("store.close.failed", "error", cerr)
		}
	}()

	sessions, closeSessions, err := app.NewSessions(ctx, cfg.Session, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = closeSessions() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	processor, err := app.NewProcessor(cfg, logger, m)
	if err != nil {
		return err
	}
	if !cfg.Messaging.Enabled() {
		logger.Warn("messaging.disabled", "reason", "twilio credentials not set; replies are logged only")
	}
	svc, err := intake.New(processor, sessions, store, messaging.New(cfg.Messaging, logger),
		intake.WithLogger(logger),
		intake.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	handler := server.NewHandler(svc, store, export.NewService(store, logger), cfg.Server.PipelineTimeout, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(handler, reg),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http.serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		grpcServer, hs := server.NewGRPCServer()
		g.Go(func() error {
			logger.Info("grpc.serving", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(grpcLis)
		})
		g.Go(func() error {
			server.WatchStore(gctx, hs, store, 15*time.Second, logger)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server.stopped", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}
