package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Visibility    VisibilityConfig    `yaml:"visibility"`
	SeedDefaults  bool                `yaml:"seed_defaults"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigin      string        `yaml:"cors_origin"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"` // memory, sqlite or mongo
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	SystemName string `yaml:"system_name"`
}

type NotificationsConfig struct {
	Driver            string        `yaml:"driver"` // memory or cassandra
	CassandraHosts    []string      `yaml:"cassandra_hosts"`
	CassandraKeyspace string        `yaml:"cassandra_keyspace"`
	WebhookURL        string        `yaml:"webhook_url"`
	WebhookTimeout    time.Duration `yaml:"webhook_timeout"`
}

type VisibilityConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigin:      "*",
		},
		Storage: StorageConfig{
			Driver:        "memory",
			SQLitePath:    "data/collabspace.db",
			MongoDatabase: "collabspace",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		Logging: LoggingConfig{
			Level:      "info",
			SystemName: "collabspace",
		},
		Notifications: NotificationsConfig{
			Driver:            "memory",
			CassandraHosts:    []string{"127.0.0.1"},
			CassandraKeyspace: "collabspace",
			WebhookTimeout:    5 * time.Second,
		},
		Visibility: VisibilityConfig{
			RefreshInterval: 30 * time.Second,
		},
		SeedDefaults: true,
	}
}

// Load builds the configuration from defaults, an optional YAML file, a
// .env file in the working directory and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	c.Server.Port = getEnv(c.Server.Port, "COLLABSPACE_PORT", "SERVER_PORT")
	c.Server.CORSOrigin = getEnv(c.Server.CORSOrigin, "COLLABSPACE_CORS_ORIGIN")
	if c.Server.ReadTimeout, err = getDurationEnv(c.Server.ReadTimeout, "COLLABSPACE_READ_TIMEOUT"); err != nil {
		return err
	}
	if c.Server.WriteTimeout, err = getDurationEnv(c.Server.WriteTimeout, "COLLABSPACE_WRITE_TIMEOUT"); err != nil {
		return err
	}

	c.Storage.Driver = getEnv(c.Storage.Driver, "COLLABSPACE_STORAGE_DRIVER")
	c.Storage.SQLitePath = getEnv(c.Storage.SQLitePath, "COLLABSPACE_SQLITE_PATH")
	c.Storage.MongoURI = getEnv(c.Storage.MongoURI, "COLLABSPACE_MONGO_URI", "MONGO_URI")
	c.Storage.MongoDatabase = getEnv(c.Storage.MongoDatabase, "COLLABSPACE_MONGO_DB", "MONGO_DB_NAME")

	c.Auth.JWTSecret = getEnv(c.Auth.JWTSecret, "COLLABSPACE_JWT_SECRET", "JWT_SECRET")
	if c.Auth.TokenTTL, err = getDurationEnv(c.Auth.TokenTTL, "COLLABSPACE_TOKEN_TTL"); err != nil {
		return err
	}
	if c.Auth.BcryptCost, err = getIntEnv(c.Auth.BcryptCost, "COLLABSPACE_BCRYPT_COST"); err != nil {
		return err
	}

	c.Logging.Level = getEnv(c.Logging.Level, "COLLABSPACE_LOG_LEVEL")
	c.Logging.File = getEnv(c.Logging.File, "COLLABSPACE_LOG_FILE")

	c.Notifications.Driver = getEnv(c.Notifications.Driver, "COLLABSPACE_NOTIFICATIONS_DRIVER")
	if hosts := getEnv("", "COLLABSPACE_CASSANDRA_HOSTS", "CASS_DB"); hosts != "" {
		c.Notifications.CassandraHosts = strings.Split(hosts, ",")
	}
	c.Notifications.CassandraKeyspace = getEnv(c.Notifications.CassandraKeyspace, "COLLABSPACE_CASSANDRA_KEYSPACE")
	c.Notifications.WebhookURL = getEnv(c.Notifications.WebhookURL, "COLLABSPACE_WEBHOOK_URL")
	if c.Notifications.WebhookTimeout, err = getDurationEnv(c.Notifications.WebhookTimeout, "COLLABSPACE_WEBHOOK_TIMEOUT"); err != nil {
		return err
	}

	if c.Visibility.RefreshInterval, err = getDurationEnv(c.Visibility.RefreshInterval, "COLLABSPACE_REFRESH_INTERVAL"); err != nil {
		return err
	}
	if c.SeedDefaults, err = getBoolEnv(c.SeedDefaults, "COLLABSPACE_SEED_DEFAULTS"); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Notifications.Driver {
	case "memory", "cassandra":
	default:
		return fmt.Errorf("unknown notifications driver %q", c.Notifications.Driver)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost %d out of range", c.Auth.BcryptCost)
	}
	if c.Visibility.RefreshInterval <= 0 {
		return errors.New("visibility.refresh_interval must be positive")
	}
	return nil
}

// getEnv returns the first non-empty variable among keys, or def.
func getEnv(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getIntEnv(def int, key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(def time.Duration, key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBoolEnv(def bool, key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
