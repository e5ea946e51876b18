package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/napryag/tg_desk_bot/pkg/utils/errs"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the bot looks for its config when started from the repo root.
var DefaultPath = filepath.Join("cmd/bot/etc", "app.yml")

type Config struct {
	APIBaseURL        string        `yaml:"api_base_url" validate:"required,url"`
	APITimeout        time.Duration `yaml:"api_timeout" validate:"required,gt=0"`
	HTTPPort          int           `yaml:"http_port" validate:"required,min=1,max=65535"`
	WorkerCount       int           `yaml:"worker_count" validate:"required,min=1"`
	Timezone          string        `yaml:"timezone"`
	LogLevel          string        `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	AdminIDs          []int64       `yaml:"admin_ids"`
	FallbackUserID    int64         `yaml:"fallback_user_id"`
	SendRetries       int           `yaml:"send_retries" validate:"min=0,max=10"`
	SendRatePerSecond float64       `yaml:"send_rate_per_second" validate:"gte=0"`

	BotToken string `yaml:"-" validate:"required"`
}

// Location resolves Timezone; empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errs.New("unknown timezone").Arg("timezone", c.Timezone).Wrap(err)
	}
	return loc, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New("failed to read config file").Arg("path", path).Wrap(err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.New("failed to unmarshal YAML").Wrap(err)
	}

	// .env необязателен, если токен уже в окружении
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New("failed to load .env").Wrap(err)
	}
	cfg.BotToken = os.Getenv("TG_TOKEN")

	// Validate
	if err = validator.New().Struct(cfg); err != nil {
		return nil, errs.New("config validation failed").Wrap(err)
	}

	if _, err = cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
