package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"mandi/internal/app"
	"mandi/internal/config"
	"mandi/internal/server"
	"mandi/internal/util"
	"mandi/pkg/ai"
	"mandi/pkg/events"
	"mandi/pkg/storage"
	"mandi/pkg/store"
	"mandi/pkg/voice"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		util.Fatal("failed to parse session ttl", "err", err)
	}

	snapshot, err := newSnapshot(cfg)
	if err != nil {
		util.Fatal("failed to init snapshot store", "err", err)
	}

	// Without an API key the engine runs in simulation mode: no
	// translation, no extraction, canned market insight.
	var translator ai.Translator
	var extractor ai.Extractor
	var insighter ai.Insighter
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GenerationModel)
		if err != nil {
			util.Fatal("failed to init gemini client", "err", err)
		}
		translator = gemini
		extractor = gemini
		insighter = gemini
	} else {
		slog.Warn("no gemini api key configured, running without translation")
	}

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.EventExchange)
		if err != nil {
			util.Fatal("failed to init event publisher", "err", err)
		}
		defer publisher.Close()
	}

	var photos storage.PhotoStore
	if cfg.MinioEndpoint != "" {
		photos, err = storage.NewMinioPhotoStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init photo store", "err", err)
		}
	}

	engine, err := app.New(app.Config{
		Snapshot:   snapshot,
		Translator: translator,
		Extractor:  extractor,
		Insighter:  insighter,
		Publisher:  publisher,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	signer, err := server.NewSessionSigner(cfg.SessionSecret, sessionTTL)
	if err != nil {
		util.Fatal("failed to init session signer", "err", err)
	}

	httpServer := server.New(server.Config{
		App:      engine,
		Voice:    voice.NewSampler(nil),
		Photos:   photos,
		Sessions: signer,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("mandi server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newSnapshot(cfg config.FileConfig) (store.Snapshot, error) {
	switch {
	case cfg.DatabaseURL != "":
		return store.NewGormSnapshot(cfg.DatabaseURL)
	case cfg.RedisAddr != "":
		return store.NewRedisSnapshot(cfg.RedisAddr, cfg.RedisPassword)
	default:
		return store.NewFileSnapshot(cfg.DataDir)
	}
}
