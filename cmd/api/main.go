package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shoporders/internal/config"
	"shoporders/internal/db"
	"shoporders/internal/gateway"
	"shoporders/internal/httpserver"
	"shoporders/internal/idempotency"
	cartrepo "shoporders/internal/repository/cart"
	orderrepo "shoporders/internal/repository/order"
	productrepo "shoporders/internal/repository/product"
	tokenrepo "shoporders/internal/repository/token"
	cartsvc "shoporders/internal/service/cart"
	ordersvc "shoporders/internal/service/order"
	paymentsvc "shoporders/internal/service/payment"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg.LogLevel).With().Str("component", "api").Logger()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to db")
	}
	defer dbpool.Close()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayServerKey, cfg.GatewayTimeout, logger)

	var replays *idempotency.RedisGuard
	if cfg.RedisAddr != "" {
		replays = idempotency.NewRedisGuard(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	orderService := ordersvc.New(orderRepo, cartRepo, productRepo, logger)
	cartService := cartsvc.New(cartRepo, productRepo)
	paymentService := newPaymentService(orderRepo, gw, replays, cfg, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		OrderSvc:   orderService,
		PaymentSvc: paymentService,
		CartSvc:    cartService,
		Auth:       tokenRepo,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}

func newPaymentService(orders orderrepo.Repository, gw *gateway.Client, replays *idempotency.RedisGuard, cfg config.Config, logger zerolog.Logger) *paymentsvc.Service {
	if replays == nil {
		// Typed nil would dodge the service's nil check.
		return paymentsvc.New(orders, gw, nil, cfg.GatewayServerKey, cfg.PaymentFinishURL, logger)
	}
	return paymentsvc.New(orders, gw, replays, cfg.GatewayServerKey, cfg.PaymentFinishURL, logger)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
