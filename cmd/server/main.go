package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/HaoyangGuo/oolong/internal/api"
	"github.com/HaoyangGuo/oolong/internal/auth"
	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/config"
	"github.com/HaoyangGuo/oolong/internal/events"
	"github.com/HaoyangGuo/oolong/internal/gateway"
	"github.com/HaoyangGuo/oolong/internal/logger"
	"github.com/HaoyangGuo/oolong/internal/objstore"
	"github.com/HaoyangGuo/oolong/internal/store"
	"github.com/HaoyangGuo/oolong/internal/video"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		zlog.Fatalw("open store", "err", err)
	}

	var verifier auth.Verifier
	switch {
	case cfg.Auth.JWKSURL != "":
		verifier, err = auth.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL)
	case cfg.Auth.PublicKeyPath != "":
		verifier, err = auth.NewStaticVerifier(cfg.Auth.PublicKeyPath)
	default:
		zlog.Fatalw("auth config: jwks_url or public_key_path required")
	}
	if err != nil {
		zlog.Fatalw("auth verifier", "err", err)
	}

	objects, err := objstore.New(ctx, cfg.AWS.Region, cfg.AWS.Bucket)
	if err != nil {
		zlog.Fatalw("object storage", "err", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	hub := gateway.NewHub(zlog)
	go hub.Run(ctx)
	gw := gateway.New(hub, verifier, st.Profiles, gateway.NewPresence(rdb, "oolong"), zlog)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
	defer func() { _ = publisher.Close() }()

	authorizer := chat.NewAuthorizer(st)
	chatSvc := chat.NewService(st, authorizer, objects, zlog)

	app := api.NewServer(api.Deps{
		Config:   cfg,
		Store:    st,
		Chat:     chatSvc,
		Auth:     authorizer,
		Gateway:  gw,
		Events:   publisher,
		Objects:  objects,
		Video:    video.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret),
		Verifier: verifier,
		Redis:    rdb,
		Log:      zlog,
	})

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zlog.Infow("starting server", "addr", addr)
		errs <- app.Listen(addr)
	}()

	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case <-ctx.Done():
		zlog.Infow("signal received, shutting down")
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zlog.Warnw("shutdown", "err", err)
	}
}
