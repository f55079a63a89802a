package main

import (
	"Palette/ai"
	"Palette/bot"
	"Palette/core"
	"Palette/lib/sl"
	"Palette/settings"
	"Palette/storage"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	// .env is optional, real env vars win
	_ = godotenv.Load()

	conf := core.MustLoad(*configPath)
	log := setupLogger(conf.Env)
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("image_model", conf.ImageModel),
		slog.String("text_model", conf.TextModel),
	).Info("starting palette bot")

	// Initialize storage based on config
	var store storage.SessionStorage
	if conf.Mongo.Enabled {
		mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%s",
			conf.Mongo.User, conf.Mongo.Password,
			conf.Mongo.Host, conf.Mongo.Port)
		var err error
		store, err = storage.NewMongoStorage(mongoURI, conf.Mongo.Database, conf.MaxTurns, log)
		if err != nil {
			log.With(
				slog.String("db", conf.Mongo.Database),
				slog.String("user", conf.Mongo.User),
				slog.String("host", conf.Mongo.Host),
			).Error("falling back to memory", sl.Err(err))
			store = storage.NewMemoryStorage(conf.MaxTurns)
		} else {
			log.Info("using MongoDB storage")
		}
	} else {
		store = storage.NewMemoryStorage(conf.MaxTurns)
		log.Info("using in-memory storage")
	}

	tgBot, err := bot.NewTgBot(conf, log)
	if err != nil {
		log.Error("creating telegram", sl.Err(err))
		return
	}

	engine := ai.NewEngine(conf, log, store, tgBot)
	tgBot.SetHandler(engine)

	if conf.Settings.Enabled {
		tgBot.SetSettings(settings.NewClient(conf.Settings.Url, conf.Settings.Token, log))
		log.Info("remote settings enabled")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in goroutine
	go func() {
		if err := tgBot.Start(); err != nil {
			log.Error("bot stopped with error", sl.Err(err))
		}
	}()

	log.Info("bot started")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	// Graceful shutdown
	tgBot.Stop()

	// Close storage connection
	if err := engine.Close(); err != nil {
		log.Error("error closing engine", sl.Err(err))
	}

	log.Info("shutdown complete")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal, envDev:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
