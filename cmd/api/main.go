package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/app"
	"github.com/octobees/turmeric-buyers/internal/auth"
	"github.com/octobees/turmeric-buyers/internal/config"
	"github.com/octobees/turmeric-buyers/internal/handler"
	middlewarepkg "github.com/octobees/turmeric-buyers/internal/middleware"
	"github.com/octobees/turmeric-buyers/internal/router"
	"github.com/octobees/turmeric-buyers/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeStore, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		zap.L().Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	pipeline, err := app.Pipeline(cfg)
	if err != nil {
		zap.L().Fatal("failed to build pipeline", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: cfg.Collect.Timeout}
	collectors, err := app.Collectors(cfg.Collect, httpClient)
	if err != nil {
		zap.L().Fatal("failed to build collectors", zap.Error(err))
	}

	collectLimit, err := cfg.CollectRateLimit()
	if err != nil {
		zap.L().Fatal("invalid collect rate limit", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	operators := make([]auth.Operator, 0, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		operators = append(operators, auth.Operator{Email: op.Email, PasswordHash: op.PasswordHash, Role: op.Role})
	}
	authenticator := auth.NewAuthenticator(operators, jwtManager)

	buyersService := service.NewBuyersService(repo, pipeline, app.MultiCollector(cfg.Collect, collectors), cfg.Collect.Terms)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, collectLimit, jwtManager, router.Handlers{
		Auth:   handler.NewAuthHandler(authenticator, jwtManager),
		Buyers: handler.NewBuyersHandler(buyersService),
	})

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("api listening", zap.String("addr", cfg.Addr()), zap.String("store", cfg.Store.Driver))
		serverErr <- e.Start(cfg.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zap.L().Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("graceful shutdown failed", zap.Error(err))
	}
}
