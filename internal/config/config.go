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

	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// DefaultConfigFile is read when LX_CONFIG_FILE is unset.
const DefaultConfigFile = "config.yaml"

// Config aggregates runtime configuration for the assignment tool.
type Config struct {
	App        AppConfig               `yaml:"app"`
	Logger     LoggerConfig            `yaml:"logger"`
	ServiceNow ServiceNowConfig        `yaml:"servicenow"`
	Directory  DirectoryConfig         `yaml:"directory"`
	Assignment AssignmentConfig        `yaml:"assignment"`
	Redis      RedisConfig             `yaml:"redis"`
	Postgres   PostgresConfig          `yaml:"postgres"`
	Kafka      KafkaConfig             `yaml:"kafka"`
	Status     StatusConfig            `yaml:"status"`
	Teams      map[string]TeamOverride `yaml:"teams"`
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string `yaml:"name"`
	Env     string `yaml:"env"`
	Version string `yaml:"version"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// ServiceNowConfig holds ticketing API access values.
type ServiceNowConfig struct {
	BaseURL               string `yaml:"base_url"`
	Table                 string `yaml:"table"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// DirectoryConfig holds the LMS/user directory endpoint.
type DirectoryConfig struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// AssignmentConfig holds loop defaults.
type AssignmentConfig struct {
	DefaultAssignee     string `yaml:"default_assignee"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	FetchLimit          int    `yaml:"fetch_limit"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig holds the audit DB connection values. An empty DSN disables auditing.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// KafkaConfig holds the assignment event stream. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// StatusConfig controls the optional status API.
type StatusConfig struct {
	Addr            string `yaml:"addr"`
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// TeamOverride carries the operational, per-deployment part of a team:
// who works the queue and where its round-robin service lives.
type TeamOverride struct {
	Assignees       []string `yaml:"assignees"`
	DefaultAssignee string   `yaml:"default_assignee"`
	RoundRobinURL   string   `yaml:"round_robin_url"`
}

// Default returns the configuration used before any file or env is applied.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "lx-autoassign",
			Env:     "development",
			Version: "dev",
		},
		Logger: LoggerConfig{Level: "info"},
		ServiceNow: ServiceNowConfig{
			Table:                 "x_redha_red_hat_tr_x_red_hat_training",
			RequestTimeoutSeconds: 30,
		},
		Directory: DirectoryConfig{
			TimeoutSeconds:  5,
			CacheTTLMinutes: 24 * 60,
		},
		Assignment: AssignmentConfig{
			PollIntervalSeconds: 60,
			FetchLimit:          50,
		},
		Redis: RedisConfig{KeyPrefix: "lx:rotation:"},
		Postgres: PostgresConfig{
			MaxConns:       4,
			MinConns:       1,
			RunMigrations:  true,
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Kafka:  KafkaConfig{Topic: "lx-ticket-assignments"},
		Status: StatusConfig{TokenTTLMinutes: 60},
		Teams:  map[string]TeamOverride{},
	}
}

// Load reads .env, then the YAML file, then environment overrides.
func Load() (*Config, error) {
	return LoadFile(getEnv("LX_CONFIG_FILE", DefaultConfigFile))
}

// LoadFile is Load with an explicit YAML path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperrors.NewConfigurationError(fmt.Sprintf("parse %s: %v", path, err), nil)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("read %s: %v", path, err), nil)
		}
	}
	if cfg.Teams == nil {
		cfg.Teams = map[string]TeamOverride{}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)

	cfg.ServiceNow.BaseURL = getEnv("SNOW_BASE_URL", cfg.ServiceNow.BaseURL)
	cfg.ServiceNow.Table = getEnv("SNOW_TABLE", cfg.ServiceNow.Table)
	cfg.ServiceNow.Username = getEnv("SNOW_API_USER", cfg.ServiceNow.Username)
	cfg.ServiceNow.Password = getEnv("SNOW_API_PASSWORD", cfg.ServiceNow.Password)
	cfg.ServiceNow.RequestTimeoutSeconds = getEnvAsInt("SNOW_REQUEST_TIMEOUT_SECONDS", cfg.ServiceNow.RequestTimeoutSeconds)

	cfg.Directory.BaseURL = getEnv("DIRECTORY_BASE_URL", cfg.Directory.BaseURL)
	cfg.Directory.Token = getEnv("DIRECTORY_TOKEN", cfg.Directory.Token)
	cfg.Directory.TimeoutSeconds = getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", cfg.Directory.TimeoutSeconds)
	cfg.Directory.CacheTTLMinutes = getEnvAsInt("DIRECTORY_CACHE_TTL_MINUTES", cfg.Directory.CacheTTLMinutes)

	cfg.Assignment.DefaultAssignee = getEnv("DEFAULT_ASSIGNEE", cfg.Assignment.DefaultAssignee)
	cfg.Assignment.PollIntervalSeconds = getEnvAsInt("POLL_INTERVAL_SECONDS", cfg.Assignment.PollIntervalSeconds)
	cfg.Assignment.FetchLimit = getEnvAsInt("FETCH_LIMIT", cfg.Assignment.FetchLimit)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)

	cfg.Postgres.DSN = getEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))

	if brokers := getEnvAsList("KAFKA_BROKERS"); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Status.Addr = getEnv("STATUS_ADDR", cfg.Status.Addr)
	cfg.Status.JWTSecret = getEnv("STATUS_JWT_SECRET", cfg.Status.JWTSecret)
	cfg.Status.TokenTTLMinutes = getEnvAsInt("STATUS_TOKEN_TTL_MINUTES", cfg.Status.TokenTTLMinutes)
}

// Team returns the operational override for a team key, with
// TEAM_<KEY>_ASSIGNEES, TEAM_<KEY>_DEFAULT_ASSIGNEE and
// TEAM_<KEY>_ROUND_ROBIN_URL taking precedence over the YAML file.
func (c *Config) Team(key string) TeamOverride {
	override := c.Teams[key]
	prefix := "TEAM_" + envKey(key) + "_"
	if list := getEnvAsList(prefix + "ASSIGNEES"); len(list) > 0 {
		override.Assignees = list
	}
	override.DefaultAssignee = getEnv(prefix+"DEFAULT_ASSIGNEE", override.DefaultAssignee)
	override.RoundRobinURL = getEnv(prefix+"ROUND_ROBIN_URL", override.RoundRobinURL)
	return override
}

// ValidateTicketing reports missing ServiceNow settings as a configuration error.
func (c *Config) ValidateTicketing() error {
	var missing []string
	if c.ServiceNow.BaseURL == "" {
		missing = append(missing, "SNOW_BASE_URL")
	}
	if c.ServiceNow.Username == "" {
		missing = append(missing, "SNOW_API_USER")
	}
	if c.ServiceNow.Password == "" {
		missing = append(missing, "SNOW_API_PASSWORD")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationError("missing ticketing credentials",
			map[string]any{"missing": missing})
	}
	return nil
}

// RequestTimeout returns the per-request ticketing timeout.
func (s ServiceNowConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the directory lookup timeout.
func (d DirectoryConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long resolved display names stay cached.
func (d DirectoryConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMinutes) * time.Minute
}

// PollInterval returns the continuous-mode sleep between cycles.
func (a AssignmentConfig) PollInterval() time.Duration {
	if a.PollIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.PollIntervalSeconds) * time.Second
}

// TokenTTL returns the status API token lifetime.
func (s StatusConfig) TokenTTL() time.Duration {
	if s.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.TokenTTLMinutes) * time.Minute
}

func envKey(team string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(team))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
