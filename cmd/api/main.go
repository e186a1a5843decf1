package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"memory-agent/internal/config"
	"memory-agent/internal/db"
	apihttp "memory-agent/internal/http"
	"memory-agent/internal/repository"
	"memory-agent/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	tokenSvc, err := service.NewTokenService(
		cfg.JWTSecret,
		cfg.JWTAlgorithm,
		time.Duration(cfg.TokenTTLMinutes)*time.Minute,
	)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	authSvc := service.NewAuthService(logger, userRepo, tokenSvc)
	chatSvc := service.NewChatService(chatRepo)
	messageSvc := service.NewMessageService(messageRepo, chatSvc)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc, messageSvc)
	router := apihttp.NewRouter(logger, cfg.CORSAllowOrigin, tokenSvc, authHandler, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
