package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int    `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	DBDriver   string `yaml:"db_driver"` // memory | postgres | sqlite
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	SQLitePath string `yaml:"sqlite_path"`

	AIProvider     string        `yaml:"ai_provider"` // openai | gemini
	OpenAIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL  string        `yaml:"openai_base_url"`
	OpenAIModel    string        `yaml:"openai_model"`
	GeminiKey      string        `yaml:"gemini_api_key"`
	GeminiModel    string        `yaml:"gemini_model"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	JWTSecret   string   `yaml:"jwt_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:           8080,
		Env:            "development",
		LogLevel:       "info",
		DBDriver:       "memory",
		DBPort:         5432,
		SQLitePath:     "planner.db",
		AIProvider:     "openai",
		OpenAIBaseURL:  "https://api.openai.com/v1",
		OpenAIModel:    "gpt-4o-mini",
		GeminiModel:    "gemini-2.0-flash",
		BackendTimeout: 30 * time.Second,
		CORSOrigins:    []string{"*"},
	}
}

// Load resolves configuration from defaults, an optional YAML file named by
// PLANNER_CONFIG and the environment, in that order of precedence (env wins).
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setInt(&c.Port, "PORT")
	setString(&c.Env, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBHost, "DB_HOST")
	setInt(&c.DBPort, "DB_PORT")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.SQLitePath, "SQLITE_PATH")

	setString(&c.AIProvider, "AI_PROVIDER")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAIModel, "OPENAI_MODEL")
	setString(&c.GeminiKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	if v := os.Getenv("BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.BackendTimeout = d
		}
	}

	setString(&c.JWTSecret, "JWT_SECRET")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			c.CORSOrigins = origins
		}
	}
}

// Validate checks the values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.AIProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown AI_PROVIDER %q", c.AIProvider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	return nil
}

// IsProduction reports whether diagnostic details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Parses ints; a bad value keeps the previous one.
func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}
