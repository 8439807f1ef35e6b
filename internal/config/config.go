package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port      string   `yaml:"port"`
	Host      string   `yaml:"host"`
	RateLimit int      `yaml:"rate_limit"` // запросов в минуту с адреса, 0 - без ограничения
	Origins   []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // "file", "memory" или "postgres"
	TaskFile    string `yaml:"task_file"`
	KeyFile     string `yaml:"key_file"`
	DatabaseURL string `yaml:"database_url"`
}

type SchedulerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	PostponeMinutes int           `yaml:"postpone_minutes"`
	EventBuffer     int           `yaml:"event_buffer"`
	FeedSize        int           `yaml:"feed_size"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      "8080",
			RateLimit: 300,
			Origins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Storage: StorageConfig{
			Backend:  BackendFile,
			TaskFile: "tasks.txt",
			KeyFile:  "key.key",
		},
		Scheduler: SchedulerConfig{
			Interval:        10 * time.Second,
			PostponeMinutes: 60,
			EventBuffer:     64,
			FeedSize:        256,
		},
		Logging: LoggingConfig{
			Development: true,
		},
	}
}

// Load читает YAML поверх значений по умолчанию.
// Отсутствующий файл означает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.TaskFile == "" {
			return errors.New("storage.task_file не задан")
		}
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url обязателен для backend postgres")
		}
	default:
		return fmt.Errorf("неизвестный storage.backend %q", c.Storage.Backend)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit не может быть отрицательным, получено %d", c.Server.RateLimit)
	}
	if c.Storage.KeyFile == "" {
		return errors.New("storage.key_file не задан")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval должен быть положительным, получено %s", c.Scheduler.Interval)
	}
	if c.Scheduler.PostponeMinutes <= 0 {
		return fmt.Errorf("scheduler.postpone_minutes должен быть положительным, получено %d", c.Scheduler.PostponeMinutes)
	}
	if c.Scheduler.EventBuffer < 0 {
		return errors.New("scheduler.event_buffer не может быть отрицательным")
	}
	if c.Scheduler.FeedSize <= 0 {
		return errors.New("scheduler.feed_size должен быть положительным")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
