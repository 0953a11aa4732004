package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/skvorcov/auth_service/internal/config"
	"github.com/skvorcov/auth_service/internal/events"
	"github.com/skvorcov/auth_service/internal/httpserver"
	"github.com/skvorcov/auth_service/internal/logging"
	"github.com/skvorcov/auth_service/internal/middleware"
	"github.com/skvorcov/auth_service/internal/repo"
	"github.com/skvorcov/auth_service/internal/service"
	"github.com/skvorcov/auth_service/internal/session"
	"github.com/skvorcov/auth_service/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	e := echo.New()
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var revoked token.RevocationRegistry
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		revoked = token.NewRedisRegistry(client)
	} else {
		revoked = token.NewMemoryRegistry()
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	gormRepo := repo.New(db)
	signer := &token.Signer{Secret: cfg.SigningSecret}

	authSvc := &service.AuthService{
		Repo: gormRepo,
		Sessions: &session.Manager{
			Store:      gormRepo,
			RefreshTTL: cfg.RefreshTokenTTL,
		},
		Signer:    signer,
		Revoked:   revoked,
		Events:    producer,
		AccessTTL: cfg.AccessTokenTTL,
	}

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc},
		Auth:        middleware.NewBearerAuth(signer, revoked),
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
