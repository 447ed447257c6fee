package platform

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the flat top-level configuration struct, carrying the fields
// this repo's components (stock, charge, replication bus) need.
type Config struct {
	ServerPort    string `yaml:"server_port"`
	Environment   string `yaml:"environment"`
	DatabaseURL   string `yaml:"database_url"`
	RedisURL      string `yaml:"redis_url"`
	LogLevel      string `yaml:"log_level"`
	AMQPURL       string `yaml:"amqp_url"`
	StripeAPIKey  string `yaml:"stripe_api_key"`
	JWTSigningKey string `yaml:"jwt_signing_key"`

	CreateChargeIntervalSeconds int64  `yaml:"create_charge_interval_seconds"`
	ReclamationCronSchedule     string `yaml:"reclamation_cron_schedule"`
	RefundSyncCronSchedule      string `yaml:"refund_sync_cron_schedule"`
	OrderLockTTLSeconds         int64  `yaml:"order_lock_ttl_seconds"`

	// OrderServiceURL/PortalServiceURL point payment-service's cross-service
	// adapters (RestyOrderGateway, RestyMerchantGateway, ...) at their
	// upstream services; unused by order-service and portal-service
	// themselves.
	OrderServiceURL  string `yaml:"order_service_url"`
	PortalServiceURL string `yaml:"portal_service_url"`
}

// LoadConfig reads a YAML config file and overlays environment variable
// overrides, centralized here into one loader rather than scattered
// os.Getenv calls.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerPort: "8080", Environment: "production", LogLevel: "info",
		CreateChargeIntervalSeconds: 60, ReclamationCronSchedule: "*/5 * * * *",
		RefundSyncCronSchedule: "*/5 * * * *",
		OrderLockTTLSeconds:    30,
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServerPort, "SERVER_PORT")
	overrideString(&cfg.Environment, "ENVIRONMENT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisURL, "REDIS_URL")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.AMQPURL, "AMQP_URL")
	overrideString(&cfg.StripeAPIKey, "STRIPE_API_KEY")
	overrideString(&cfg.JWTSigningKey, "JWT_SIGNING_KEY")
	overrideString(&cfg.OrderServiceURL, "ORDER_SERVICE_URL")
	overrideString(&cfg.PortalServiceURL, "PORTAL_SERVICE_URL")
	overrideString(&cfg.RefundSyncCronSchedule, "REFUND_SYNC_CRON_SCHEDULE")
}

func overrideString(dst *string, envKey string) {
	if v, ok := os.LookupEnv(envKey); ok && v != "" {
		*dst = v
	}
}
