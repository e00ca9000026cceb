package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database"
	"github.com/ticketeer-bot/ticketeer/ticketbot/logger"
	"github.com/ticketeer-bot/ticketeer/ticketbot/migration"
)

var (
	configPath = flag.String("config", "config.toml", "path to config file")
	mongoURI   = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	mongoDB    = flag.String("mongo-db", "ticketbot", "MongoDB database name")
	batchSize  = flag.Int("batch-size", 500, "insert batch size")
)

func main() {
	flag.Parse()
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	if err := run(); err != nil {
		slog.Error("Migration failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, err := ticketbot.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	migrator := migration.NewMigrator(db.BunDB(), client, *mongoDB)
	migrator.SetBatchSize(*batchSize)
	return migrator.MigrateAll(ctx)
}
