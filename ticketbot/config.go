package ticketbot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database"
	"github.com/ticketeer-bot/ticketeer/ticketbot/transcripts"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig          `toml:"log"`
	Bot     BotConfig          `toml:"bot"`
	DB      database.DBConfig  `toml:"db"`
	Storage transcripts.Config `toml:"storage"`
	AI      AIConfig           `toml:"ai"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	AddSource bool       `toml:"add_source"`
}

type AIConfig struct {
	APIKey string `toml:"api_key"`
}
