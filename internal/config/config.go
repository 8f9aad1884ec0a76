package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Detection DetectionConfig `mapstructure:"detection"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Evidence  EvidenceConfig  `mapstructure:"evidence"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	// Entries are exact origins, "*" or a "*.example.com" suffix pattern.
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type" validate:"oneof=postgres memory"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url" validate:"required_if=Enabled true"`
	StatsTTL time.Duration `mapstructure:"stats_ttl" validate:"gte=0"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Name    string `mapstructure:"name"`
}

type DetectionConfig struct {
	// RulesFile replaces the builtin rule table when set.
	RulesFile string `mapstructure:"rules_file"`
}

type IngestionConfig struct {
	InsertDelay time.Duration `mapstructure:"insert_delay" validate:"gte=0"`
	DedupWindow time.Duration `mapstructure:"dedup_window" validate:"gt=0"`
}

type RiskConfig struct {
	Lookback         time.Duration `mapstructure:"lookback" validate:"gt=0"`
	RecentAlertLimit int           `mapstructure:"recent_alert_limit" validate:"min=1"`
}

type ArchiveConfig struct {
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
}

type OpenSearchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url" validate:"required_if=Enabled true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Insecure bool   `mapstructure:"insecure"`
	Index    string `mapstructure:"index" validate:"required_if=Enabled true"`
}

type EvidenceConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Prefix       string `mapstructure:"prefix"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	// Static credentials; the default AWS credential chain is used when empty.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "socdetect")
	v.SetDefault("database.postgres.user", "socdetect")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "require")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.stats_ttl", "5m")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "socdetect")
	v.SetDefault("detection.rules_file", "")
	v.SetDefault("ingestion.insert_delay", "100ms")
	v.SetDefault("ingestion.dedup_window", "24h")
	v.SetDefault("risk.lookback", "1h")
	v.SetDefault("risk.recent_alert_limit", 50)
	v.SetDefault("archive.opensearch.enabled", false)
	v.SetDefault("archive.opensearch.url", "https://localhost:9200")
	v.SetDefault("archive.opensearch.username", "admin")
	v.SetDefault("archive.opensearch.password", "")
	v.SetDefault("archive.opensearch.insecure", false)
	v.SetDefault("archive.opensearch.index", "socdetect-matches")
	v.SetDefault("evidence.s3.enabled", false)
	v.SetDefault("evidence.s3.region", "us-east-1")
	v.SetDefault("evidence.s3.bucket", "")
	v.SetDefault("evidence.s3.prefix", "raw-logs/")
	v.SetDefault("evidence.s3.endpoint", "")
	v.SetDefault("evidence.s3.use_path_style", false)
	v.SetDefault("evidence.s3.access_key_id", "")
	v.SetDefault("evidence.s3.secret_access_key", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/socdetect")
	}

	// Environment variables override (SOCDETECT_SERVER_PORT, etc.)
	v.SetEnvPrefix("SOCDETECT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PostgresConnString builds a libpq style URL for pgx and golang-migrate.
func (c *Config) PostgresConnString() string {
	p := c.Database.Postgres
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}
