package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/shop-admin-client/pkg/client"
	"github.com/Sternrassler/shop-admin-client/pkg/config"
	"github.com/Sternrassler/shop-admin-client/pkg/logging"
	"github.com/Sternrassler/shop-admin-client/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		logging.Setup(logging.DefaultConfig())
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("admin-console")
	if cfg.File != "" {
		logger.Info().Str("file", cfg.File).Msg("Loaded config file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	sess, err := session.New(cfg.API.BaseURL, cfg.API.AdminID, cfg.API.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid session")
	}

	clientCfg := client.DefaultConfig(sess, redisClient)
	clientCfg.UserAgent = cfg.API.UserAgent
	clientCfg.Timeout = cfg.API.Timeout
	clientCfg.RateLimit = cfg.API.RateLimit
	clientCfg.Burst = cfg.API.Burst
	clientCfg.Retry.MaxAttempts = cfg.API.MaxAttempts

	api, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create store client")
	}

	c := newConsole(api, sess.AdminID(), redisClient, cfg.Feed)
	defer c.Close()

	// Page 1 of every screen; failures are retried on the first proximity signal.
	c.Start(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: c.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Shutdown incomplete")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("session", sess.String()).
		Bool("redis", redisClient != nil).
		Msg("Starting admin console")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Admin console stopped")
}
