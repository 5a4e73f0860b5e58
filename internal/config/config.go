// Package config handles loading and validation of service configuration.
// Supports both development (env vars or CONFIG_FILE) and production
// (secrets from Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/mod/semver"

	"pricewaiter-bridge/internal/orderwrite"
)

// Config holds all service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	IPN         IPNConfig         `yaml:"ipn" json:"ipn"`
	Host        HostConfig        `yaml:"host" json:"host"`
	WooCommerce WooCommerceConfig `yaml:"woocommerce" json:"woocommerce"`
	OrderWrite  OrderWriteConfig  `yaml:"orderwrite" json:"orderwrite"`
	Kafka       KafkaConfig       `yaml:"kafka" json:"kafka"`
	Analytics   AnalyticsConfig   `yaml:"analytics" json:"analytics"`
	GCP         GCPConfig         `yaml:"gcp" json:"gcp"`
}

type ServerConfig struct {
	Port        string `yaml:"port" json:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" json:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" env-default:"info"`
	StoreName   string `yaml:"store_name" json:"store_name" env:"STORE_NAME"`
	AdminToken  string `yaml:"admin_token" json:"admin_token" env:"ADMIN_TOKEN"`
}

// DatabaseConfig selects Postgres when DSN is set. Without a DSN the
// bridge runs on the in-memory store.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn" json:"dsn" env:"DATABASE_DSN"`
	MigrationsPath string `yaml:"migrations_path" json:"migrations_path" env:"DATABASE_MIGRATIONS_PATH" env-default:"migrations"`
	AutoMigrate    bool   `yaml:"automigrate" json:"automigrate" env:"DATABASE_AUTOMIGRATE"`
}

type IPNConfig struct {
	VerifyEndpoint  string        `yaml:"verify_endpoint" json:"verify_endpoint" env:"IPN_VERIFY_ENDPOINT" env-default:"https://api.pricewaiter.com/order/verify"`
	VerifyTimeout   time.Duration `yaml:"verify_timeout" json:"verify_timeout" env:"IPN_VERIFY_TIMEOUT" env-default:"60s"`
	MaxHostVersion  string        `yaml:"max_host_version" json:"max_host_version" env:"IPN_MAX_HOST_VERSION" env-default:"v3.0.0"`
	ChromeTransport bool          `yaml:"chrome_transport" json:"chrome_transport" env:"IPN_CHROME_TRANSPORT"`
}

// HostConfig pins the host store version. When Version is empty and a
// WooCommerce store is configured, the version is probed and cached.
type HostConfig struct {
	Version    string        `yaml:"version" json:"version" env:"HOST_VERSION"`
	VersionTTL time.Duration `yaml:"version_ttl" json:"version_ttl" env:"HOST_VERSION_TTL" env-default:"5m"`
}

type WooCommerceConfig struct {
	StoreURL       string `yaml:"store_url" json:"store_url" env:"WC_STORE_URL"`
	ConsumerKey    string `yaml:"consumer_key" json:"consumer_key" env:"WC_CONSUMER_KEY"`
	ConsumerSecret string `yaml:"consumer_secret" json:"consumer_secret" env:"WC_CONSUMER_SECRET"`
}

// OrderWriteConfig configures the REST order path. TaxRates has no single
// env var form; set ORDERWRITE_TAX_RATES to a JSON array instead.
//
// Boolean options default to false: cleanenv applies env-default to zero
// values, so a true default could not be turned off from a file.
type OrderWriteConfig struct {
	Enabled   bool                 `yaml:"enabled" json:"enabled" env:"ORDERWRITE_ENABLED"`
	TaxRateID int64                `yaml:"tax_rate_id" json:"tax_rate_id" env:"ORDERWRITE_TAX_RATE_ID"`
	TaxRates  orderwrite.RateTable `yaml:"tax_rates" json:"tax_rates"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers" json:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	OrderTopic string   `yaml:"order_topic" json:"order_topic" env:"KAFKA_ORDER_TOPIC" env-default:"pricewaiter.orders"`
	EmailTopic string   `yaml:"email_topic" json:"email_topic" env:"KAFKA_EMAIL_TOPIC" env-default:"pricewaiter.emails"`
}

type AnalyticsConfig struct {
	ManageURL string `yaml:"manage_url" json:"manage_url" env:"ANALYTICS_MANAGE_URL" env-default:"https://manage.pricewaiter.com"`
}

// GCPConfig locates the production secret.
type GCPConfig struct {
	Project    string `yaml:"project" json:"project" env:"GCP_PROJECT"`
	SecretName string `yaml:"secret_name" json:"secret_name" env:"SECRET_NAME" env-default:"pricewaiter-bridge"`
}

// IsProduction reports whether secrets come from Secret Manager.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// secrets is the JSON document stored in Secret Manager. Empty fields keep
// the value from file or env.
type secrets struct {
	AdminToken                string `json:"admin_token"`
	DatabaseDSN               string `json:"database_dsn"`
	WooCommerceConsumerSecret string `json:"woocommerce_consumer_secret"`
}

// SecretFetcher returns the payload of the latest version of a secret.
type SecretFetcher func(ctx context.Context, name string) ([]byte, error)

// Load reads configuration from CONFIG_FILE (YAML or JSON, env overrides
// apply) or from the environment alone. In production the secrets are then
// fetched from Secret Manager. The result is validated.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, accessSecretVersion)
}

func load(ctx context.Context, fetch SecretFetcher) (*Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if raw := os.Getenv("ORDERWRITE_TAX_RATES"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.OrderWrite.TaxRates); err != nil {
			return nil, fmt.Errorf("parsing ORDERWRITE_TAX_RATES JSON: %w", err)
		}
	}

	if cfg.IsProduction() {
		if cfg.GCP.Project == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadSecrets(ctx, fetch); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadSecrets overlays the Secret Manager document.
// Secret name format: projects/{project}/secrets/{name}/versions/latest
func (c *Config) loadSecrets(ctx context.Context, fetch SecretFetcher) error {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCP.Project, c.GCP.SecretName)
	data, err := fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", name, err)
	}

	var s secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if s.AdminToken != "" {
		c.Server.AdminToken = s.AdminToken
	}
	if s.DatabaseDSN != "" {
		c.Database.DSN = s.DatabaseDSN
	}
	if s.WooCommerceConsumerSecret != "" {
		c.WooCommerce.ConsumerSecret = s.WooCommerceConsumerSecret
	}
	return nil
}

func accessSecretVersion(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, err
	}
	return result.Payload.Data, nil
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// validate checks that all required configuration fields are present and
// well formed.
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("environment must be development or production, got %q", c.Server.Environment)
	}
	if !logLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("invalid log_level %q", c.Server.LogLevel)
	}
	if c.IsProduction() && c.Server.AdminToken == "" {
		return fmt.Errorf("admin_token is required in production")
	}

	if err := validateHTTPURL("ipn.verify_endpoint", c.IPN.VerifyEndpoint); err != nil {
		return err
	}
	if c.IPN.VerifyTimeout <= 0 {
		return fmt.Errorf("ipn.verify_timeout must be positive")
	}
	if !semver.IsValid(withV(c.IPN.MaxHostVersion)) {
		return fmt.Errorf("ipn.max_host_version %q is not a semantic version", c.IPN.MaxHostVersion)
	}
	if c.Host.Version != "" && !semver.IsValid(withV(c.Host.Version)) {
		return fmt.Errorf("host.version %q is not a semantic version", c.Host.Version)
	}

	if c.WooCommerce.StoreURL != "" {
		if err := validateHTTPURL("woocommerce.store_url", c.WooCommerce.StoreURL); err != nil {
			return err
		}
		if c.WooCommerce.ConsumerKey == "" {
			return fmt.Errorf("woocommerce.consumer_key is required with store_url")
		}
		if c.WooCommerce.ConsumerSecret == "" {
			return fmt.Errorf("woocommerce.consumer_secret is required with store_url")
		}
	}

	if c.OrderWrite.Enabled && c.OrderWrite.TaxRateID <= 0 {
		return fmt.Errorf("orderwrite.tax_rate_id must be a positive rate id when orderwrite is enabled")
	}

	if len(c.Kafka.Brokers) > 0 && (c.Kafka.OrderTopic == "" || c.Kafka.EmailTopic == "") {
		return fmt.Errorf("kafka topics are required when brokers are set")
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want an http(s) URL", field, raw)
	}
	return nil
}

func withV(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
