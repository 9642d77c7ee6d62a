package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Postgres    PostgresConfig    `yaml:"postgres" mapstructure:"postgres"`
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore" mapstructure:"objectstore"`
	Warehouse   WarehouseConfig   `yaml:"warehouse" mapstructure:"warehouse"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Temporal    TemporalConfig    `yaml:"temporal" mapstructure:"temporal"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// PostgresConfig holds warehouse credentials. Each user owns a database named
// after the username.
type PostgresConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
}

// SourceConfig locates the transaction partition to read.
type SourceConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Key    string `yaml:"key" mapstructure:"key"`
}

// OutputConfig namespaces the object-store artifacts.
type OutputConfig struct {
	AccountName string `yaml:"account_name" mapstructure:"account_name"`
}

// ObjectStoreConfig selects and configures the object-store backend.
type ObjectStoreConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // s3 | gcs
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// WarehouseConfig configures the customer table write.
type WarehouseConfig struct {
	Table       string `yaml:"table" mapstructure:"table"`
	ReplaceMode string `yaml:"replace_mode" mapstructure:"replace_mode"` // staged | drop
}

// RetryConfig bounds retries of the object-store read.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// TemporalConfig locates the workflow scheduler.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the trigger API served alongside the worker.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	TriggerRate    float64  `yaml:"trigger_rate" mapstructure:"trigger_rate"` // run triggers per second
	TriggerBurst   int      `yaml:"trigger_burst" mapstructure:"trigger_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// requiredEnv maps config keys to the environment variables read verbatim.
var requiredEnv = []struct {
	key string
	env string
}{
	{"postgres.username", "postgres_username"},
	{"postgres.password", "postgres_password"},
	{"postgres.host", "postgres_host"},
	{"postgres.port", "postgres_port"},
	{"source.bucket", "bucket_name"},
	{"source.key", "source_path"},
	{"output.account_name", "account_name"},
}

// Load reads configuration from an optional .env file, an optional config.yaml
// and the environment. It does not check required settings; see Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for _, r := range requiredEnv {
		if err := v.BindEnv(r.key, r.env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", r.env)
		}
	}

	v.SetEnvPrefix("CUSTOMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("objectstore.provider", "s3")
	v.SetDefault("objectstore.region", "us-east-1")
	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.path_style", false)
	v.SetDefault("warehouse.table", "customer")
	v.SetDefault("warehouse.replace_mode", "staged")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "customer-pipeline")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trigger_rate", 1.0)
	v.SetDefault("server.trigger_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every missing required setting by its environment variable
// name, plus any invalid enumerated value.
func (c *Config) Validate() error {
	values := map[string]string{
		"postgres_username": c.Postgres.Username,
		"postgres_password": c.Postgres.Password,
		"postgres_host":     c.Postgres.Host,
		"postgres_port":     c.Postgres.Port,
		"bucket_name":       c.Source.Bucket,
		"source_path":       c.Source.Key,
		"account_name":      c.Output.AccountName,
	}

	var missing []string
	for _, r := range requiredEnv {
		if strings.TrimSpace(values[r.env]) == "" {
			missing = append(missing, r.env)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required setting(s): %s", strings.Join(missing, ", "))
	}

	switch c.ObjectStore.Provider {
	case "s3", "gcs":
	default:
		return eris.Errorf("config: unknown objectstore.provider %q (valid: s3, gcs)", c.ObjectStore.Provider)
	}
	switch c.Warehouse.ReplaceMode {
	case "staged", "drop":
	default:
		return eris.Errorf("config: unknown warehouse.replace_mode %q (valid: staged, drop)", c.Warehouse.ReplaceMode)
	}
	return nil
}

// URL assembles postgresql://<user>:<pass>@<host>:<port>/<user>.
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Database(),
	}
	return u.String()
}

// RedactedURL is URL with the password masked, for logs.
func (p PostgresConfig) RedactedURL() string {
	u, err := url.Parse(p.URL())
	if err != nil {
		return ""
	}
	return u.Redacted()
}

// Database returns the database name, which equals the username.
func (p PostgresConfig) Database() string {
	return p.Username
}

// Redacted returns a copy safe to print: the warehouse password is masked.
func (c Config) Redacted() Config {
	if c.Postgres.Password != "" {
		c.Postgres.Password = "xxxxx"
	}
	return c
}

// OutputKey returns <account>/customer/<file>.
func (o OutputConfig) OutputKey(file string) string {
	return o.AccountName + "/customer/" + file
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
