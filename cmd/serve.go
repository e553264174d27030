package cmd

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
	"github.com/spf13/viper"
	"github.com/spigell/interview-coach/internal/health"
	"github.com/spigell/interview-coach/internal/observe"
	"github.com/spigell/interview-coach/internal/secrets"
	"github.com/spigell/interview-coach/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interview API, the websocket interview and the admin routes",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("storage", "", "storage backend: postgres, file or blob")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("storage.backend", serveCmd.Flags().Lookup("storage"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	config := mustConfig(logger)

	logger.Info("starting the interview-coach service", zap.String("version", version))

	provider, err := observe.InitProvider(app, version)
	if err != nil {
		logger.Fatal("initialising metrics", zap.Error(err))
	}

	be, err := openBackend(ctx, config.Storage, config.Questions)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err), zap.String("backend", config.Storage.Backend))
	}
	defer be.close()

	evaluator, err := newEvaluator(ctx, config.Evaluator, logger)
	if err != nil {
		logger.Fatal("building the evaluator", zap.Error(err))
	}

	adminToken, err := secrets.Optional(secrets.Source{
		Name:  "admin token",
		Value: config.Server.AdminToken,
		File:  config.Server.AdminTokenFile,
	})
	if err != nil {
		logger.Fatal("loading the admin token", zap.Error(err))
	}
	if adminToken == "" {
		logger.Warn("admin token is not set, transcript routes are open",
			zap.String("hint", "set server.admin-token-file or INTERVIEW_ADMIN_TOKEN"),
		)
	}

	srv, err := server.New(server.Config{
		AdminToken:     adminToken,
		Timeouts:       interviewTimeouts(config.Interview),
		RevealInterval: config.Interview.RevealInterval,
		AllowedOrigins: config.Server.AllowedOrigins,
		MaxBodyBytes:   config.Server.MaxBodyBytes,
	}, server.Deps{
		Questions:      be.questions,
		Evaluator:      evaluator,
		Store:          be.store,
		Checkers:       append([]health.Checker(nil), be.checkers...),
		Metrics:        provider.Metrics,
		MetricsHandler: provider.Handler,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("building the server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Shutdown does not touch hijacked websocket connections; they end
		// with the signal context instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("storage", be.name))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		return errors.Join(err, provider.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with an error", zap.Error(err))
		return
	}
	logger.Info("service stopped")
}
