package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	defaultDatabasePath = "atelier.db"
	defaultCurrency     = "USD"
	defaultKafkaTopic   = "order-events"
	defaultWeightLimit  = 15000

	defaultCreateOrderLimit  = 30
	defaultCreateOrderWindow = time.Minute
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Store    StoreConfig    `yaml:"store"`
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// CreateOrderLimit caps order creations per client per CreateOrderWindow.
	// Zero disables throttling.
	CreateOrderLimit  int           `yaml:"create_order_limit"`
	CreateOrderWindow time.Duration `yaml:"create_order_window"`
}

// DatabaseConfig locates the SQLite registry file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the distributed order lock when Addr is set; empty
// means the in-process lock is used.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables broker-backed notifications when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// StripeConfig collects payment gateway credentials.
type StripeConfig struct {
	APIKey    string `yaml:"api_key"`
	AccountID string `yaml:"account_id"`
}

// StoreConfig holds storefront behaviour toggles.
type StoreConfig struct {
	// Currency is the store's operating currency; orders are created in it.
	Currency string `yaml:"currency"`
	// TrackInventoryLevels disables all stock accounting when false.
	TrackInventoryLevels bool `yaml:"track_inventory_levels"`
	// AlwaysIncludeConfirmStep forces the confirm state into every checkout.
	AlwaysIncludeConfirmStep bool `yaml:"always_include_confirm_step"`
	// PackageWeightLimitGrams caps a package before the weight splitter
	// breaks it apart. Zero uses the built-in default.
	PackageWeightLimitGrams int `yaml:"package_weight_limit_grams"`
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	yamlFile     string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithYAMLFile layers a YAML config file under environment overrides.
func WithYAMLFile(path string) Option {
	return func(o *loaderOptions) {
		o.yamlFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration. Precedence, lowest first:
// built-in defaults, YAML file, .env file, system environment, explicit map.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:              defaultPort,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			CreateOrderLimit:  defaultCreateOrderLimit,
			CreateOrderWindow: defaultCreateOrderWindow,
		},
		Database: DatabaseConfig{
			Path: defaultDatabasePath,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
		Store: StoreConfig{
			Currency:                 defaultCurrency,
			TrackInventoryLevels:     true,
			AlwaysIncludeConfirmStep: false,
			PackageWeightLimitGrams:  defaultWeightLimit,
		},
	}

	if err := loadYAML(options.yamlFile, &cfg); err != nil {
		return Config{}, err
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg.Server.Port = stringWithDefault(lookup, "API_SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.CreateOrderLimit = intWithDefault(lookup, "API_SERVER_CREATE_ORDER_LIMIT", cfg.Server.CreateOrderLimit)
	cfg.Server.CreateOrderWindow = durationWithDefault(lookup, "API_SERVER_CREATE_ORDER_WINDOW", cfg.Server.CreateOrderWindow)

	cfg.Database.Path = stringWithDefault(lookup, "API_DATABASE_PATH", cfg.Database.Path)

	cfg.Redis.Addr = stringWithDefault(lookup, "API_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = stringWithDefault(lookup, "API_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = intWithDefault(lookup, "API_REDIS_DB", cfg.Redis.DB)

	if brokers := csvWithDefault(lookup, "API_KAFKA_BROKERS"); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.Topic = stringWithDefault(lookup, "API_KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Stripe.APIKey = stringWithDefault(lookup, "API_STRIPE_API_KEY", cfg.Stripe.APIKey)
	cfg.Stripe.AccountID = stringWithDefault(lookup, "API_STRIPE_ACCOUNT_ID", cfg.Stripe.AccountID)

	cfg.Store.Currency = strings.ToUpper(stringWithDefault(lookup, "API_STORE_CURRENCY", cfg.Store.Currency))
	cfg.Store.TrackInventoryLevels = boolWithDefault(lookup, "API_STORE_TRACK_INVENTORY", cfg.Store.TrackInventoryLevels)
	cfg.Store.AlwaysIncludeConfirmStep = boolWithDefault(lookup, "API_STORE_ALWAYS_CONFIRM", cfg.Store.AlwaysIncludeConfirmStep)
	cfg.Store.PackageWeightLimitGrams = intWithDefault(lookup, "API_STORE_PACKAGE_WEIGHT_LIMIT", cfg.Store.PackageWeightLimitGrams)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		missing = append(missing, "Database.Path")
	}
	if len(cfg.Store.Currency) != 3 {
		missing = append(missing, "Store.Currency")
	}
	if cfg.Store.PackageWeightLimitGrams < 0 {
		missing = append(missing, "Store.PackageWeightLimitGrams")
	}
	if cfg.Server.CreateOrderLimit < 0 {
		missing = append(missing, "Server.CreateOrderLimit")
	}
	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		missing = append(missing, "Kafka.Topic")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
