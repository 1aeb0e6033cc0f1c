package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("unexpected write timeout: %s", cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != 120*time.Second {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.CreateOrderLimit != 30 || cfg.Server.CreateOrderWindow != time.Minute {
		t.Errorf("unexpected default create throttle: %d per %s", cfg.Server.CreateOrderLimit, cfg.Server.CreateOrderWindow)
	}
	if cfg.Database.Path != "atelier.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got addr %s", cfg.Redis.Addr)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no kafka brokers by default, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "order-events" {
		t.Errorf("unexpected default kafka topic: %s", cfg.Kafka.Topic)
	}
	if cfg.Store.Currency != "USD" {
		t.Errorf("unexpected default currency: %s", cfg.Store.Currency)
	}
	if !cfg.Store.TrackInventoryLevels {
		t.Error("expected inventory tracking enabled by default")
	}
	if cfg.Store.AlwaysIncludeConfirmStep {
		t.Error("expected confirm step disabled by default")
	}
	if cfg.Store.PackageWeightLimitGrams != 15000 {
		t.Errorf("unexpected default weight limit: %d", cfg.Store.PackageWeightLimitGrams)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_READ_TIMEOUT":        "20s",
		"API_SERVER_WRITE_TIMEOUT":       "25s",
		"API_SERVER_IDLE_TIMEOUT":        "2m",
		"API_DATABASE_PATH":              "/var/data/store.db",
		"API_REDIS_ADDR":                 "localhost:6379",
		"API_REDIS_PASSWORD":             "hunter2",
		"API_REDIS_DB":                   "3",
		"API_KAFKA_BROKERS":              "broker-1:9092, broker-2:9092",
		"API_KAFKA_TOPIC":                "fulfillment-events",
		"API_STRIPE_API_KEY":             "sk_test_abc",
		"API_STRIPE_ACCOUNT_ID":          "acct_123",
		"API_STORE_CURRENCY":             "eur",
		"API_STORE_TRACK_INVENTORY":      "false",
		"API_STORE_ALWAYS_CONFIRM":       "true",
		"API_STORE_PACKAGE_WEIGHT_LIMIT": "22000",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Database.Path != "/var/data/store.db" {
		t.Errorf("unexpected database path: %s", cfg.Database.Path)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Password != "hunter2" || cfg.Redis.DB != 3 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-1:9092" || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("unexpected kafka brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "fulfillment-events" {
		t.Errorf("unexpected kafka topic: %s", cfg.Kafka.Topic)
	}
	if cfg.Stripe.APIKey != "sk_test_abc" || cfg.Stripe.AccountID != "acct_123" {
		t.Errorf("unexpected stripe config: %+v", cfg.Stripe)
	}
	if cfg.Store.Currency != "EUR" {
		t.Errorf("expected currency upper-cased to EUR, got %s", cfg.Store.Currency)
	}
	if cfg.Store.TrackInventoryLevels {
		t.Error("expected inventory tracking disabled")
	}
	if !cfg.Store.AlwaysIncludeConfirmStep {
		t.Error("expected confirm step enabled")
	}
	if cfg.Store.PackageWeightLimitGrams != 22000 {
		t.Errorf("unexpected weight limit: %d", cfg.Store.PackageWeightLimitGrams)
	}
}

func TestLoadYAMLFileLayersUnderEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	content := `server:
  port: "7000"
  read_timeout: 5s
database:
  path: yaml.db
store:
  currency: GBP
  package_weight_limit_grams: 9000
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write yaml file: %v", err)
	}

	env := map[string]string{
		"API_SERVER_PORT": "7100",
	}

	cfg, err := Load(WithYAMLFile(yamlPath), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7100" {
		t.Errorf("expected env to override yaml port, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected yaml read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Path != "yaml.db" {
		t.Errorf("expected yaml database path, got %s", cfg.Database.Path)
	}
	if cfg.Store.Currency != "GBP" {
		t.Errorf("expected yaml currency, got %s", cfg.Store.Currency)
	}
	if cfg.Store.PackageWeightLimitGrams != 9000 {
		t.Errorf("expected yaml weight limit, got %d", cfg.Store.PackageWeightLimitGrams)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("expected default write timeout preserved, got %s", cfg.Server.WriteTimeout)
	}
}

func TestLoadMissingYAMLFileIsIgnored(t *testing.T) {
	cfg, err := Load(
		WithYAMLFile(filepath.Join(t.TempDir(), "absent.yaml")),
		WithEnvMap(map[string]string{}),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected defaults when yaml file absent, got port %s", cfg.Server.Port)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_STORE_CURRENCY=\"jpy\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Store.Currency != "JPY" {
		t.Errorf("expected dotenv currency JPY, got %s", cfg.Store.Currency)
	}
}

func TestLoadEnvMapWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	if err := os.WriteFile(envPath, []byte("API_SERVER_PORT=7070\n"), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(
		WithEnvFile(envPath),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "7171"}),
		WithoutSystemEnv(),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7171" {
		t.Errorf("expected env map to win over dotenv, got %s", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{
			name:  "bad currency",
			env:   map[string]string{"API_STORE_CURRENCY": "DOLLARS"},
			field: "Store.Currency",
		},
		{
			name:  "negative weight limit",
			env:   map[string]string{"API_STORE_PACKAGE_WEIGHT_LIMIT": "-5"},
			field: "Store.PackageWeightLimitGrams",
		},
		{
			name: "brokers without topic",
			env: map[string]string{
				"API_KAFKA_BROKERS": "broker-1:9092",
				"API_KAFKA_TOPIC":   " ",
			},
			field: "Kafka.Topic",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			fields := verr.Fields()
			if len(fields) != 1 || fields[0] != tc.field {
				t.Fatalf("expected field %s flagged, got %v", tc.field, fields)
			}
		})
	}
}

func TestLoadIgnoresUnparseableOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_READ_TIMEOUT":  "soon",
		"API_REDIS_DB":             "many",
		"API_STORE_ALWAYS_CONFIRM": "maybe",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("expected default read timeout kept, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("expected default redis db kept, got %d", cfg.Redis.DB)
	}
	if cfg.Store.AlwaysIncludeConfirmStep {
		t.Error("expected default confirm step kept")
	}
}
