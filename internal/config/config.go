package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig
	Bridge   BridgeConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Voter    VoterConfig
	Log      LogConfig
}

type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SubmitTimeout time.Duration
	RateLimit     float64
	RateBurst     int
}

type BridgeConfig struct {
	Addr           string
	AllowedOrigins []string
}

type StoreConfig struct {
	Driver  string
	Profile string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

// DSN follows the connection string format used by the migrations command.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

// VoterConfig selects the one-time link flow when both fields are set.
type VoterConfig struct {
	Email     string
	LinkToken string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Load reads an optional .env file, then BALLOT_* environment variables and
// an optional ballot.yaml found in the search paths. POSTGRES_* variables are
// honoured without the prefix.
func Load(paths ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("ballot")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("BALLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range map[string]string{
		"postgres.host":     "POSTGRES_HOST",
		"postgres.port":     "POSTGRES_PORT",
		"postgres.user":     "POSTGRES_USER",
		"postgres.password": "POSTGRES_PASSWORD",
		"postgres.db":       "POSTGRES_DB",
	} {
		if err := v.BindEnv(key, "BALLOT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:       v.GetString("api.base_url"),
			Timeout:       v.GetDuration("api.timeout"),
			SubmitTimeout: v.GetDuration("api.submit_timeout"),
			RateLimit:     v.GetFloat64("api.rate_limit"),
			RateBurst:     v.GetInt("api.rate_burst"),
		},
		Bridge: BridgeConfig{
			Addr:           v.GetString("bridge.addr"),
			AllowedOrigins: splitList(v.GetString("bridge.allowed_origins")),
		},
		Store: StoreConfig{
			Driver:  v.GetString("store.driver"),
			Profile: v.GetString("store.profile"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			DB:       v.GetString("postgres.db"),
		},
		Voter: VoterConfig{
			Email:     v.GetString("voter.email"),
			LinkToken: v.GetString("voter.link_token"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.submit_timeout", 20*time.Second)
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("bridge.addr", "127.0.0.1:8090")
	v.SetDefault("bridge.allowed_origins", "")
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.profile", "default")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("voter.email", "")
	v.SetDefault("voter.link_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api base url required (BALLOT_API_BASE_URL)")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.Host == "" || c.Postgres.DB == "" {
			return errors.New("postgres store requires POSTGRES_HOST and POSTGRES_DB")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if (c.Voter.Email == "") != (c.Voter.LinkToken == "") {
		return errors.New("voter email and link token must be set together")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
