// Package main provides the storefront server binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/payment"
	"storefront/internal/product"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/token"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "storefront e-commerce backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to config YAML (optional)")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	mongo, err := store.ConnectMongo(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongo.Close(context.Background()); err != nil {
			logger.Error("mongo disconnect failed", "error", err)
		}
	}()
	logger.Info("connected to mongodb", "database", cfg.Mongo.Database)

	redisClient, err := session.Connect(connectCtx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}()
	logger.Info("connected to redis")

	signer := token.NewSigner(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	sessions := session.NewRedisStore(redisClient)
	gw := gateway.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Timeout)

	authH := auth.NewHandler(signer, sessions, mongo.Users(), logger, cfg.Production())
	coordinator := payment.NewCoordinator(gw, mongo.Orders(), cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, logger)
	paymentH := payment.NewHandler(coordinator)
	productH := product.NewHandler(product.NewService(mongo.Products(), redisClient, logger))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(authH, paymentH, productH, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
