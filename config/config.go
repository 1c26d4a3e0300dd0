package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the prediction pipeline
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type      string        `mapstructure:"type"` // openai, gemini
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// LLMRoutingConfig names the "provider:model" each role runs on
type LLMRoutingConfig struct {
	Requirement string `mapstructure:"requirement"`
	Planning    string `mapstructure:"planning"`
	Prediction  string `mapstructure:"prediction"`
	Military    string `mapstructure:"military"`
	Economic    string `mapstructure:"economic"`
	Sentiment   string `mapstructure:"sentiment"`
	Reflection  string `mapstructure:"reflection"`
	Citations   string `mapstructure:"citations"`
}

// AgentsConfig contains agent runtime settings
type AgentsConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

// SearchConfig selects and tunes the web search backend
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // tavily, serper, brave
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RatePerSec   float64       `mapstructure:"rate_per_sec"`
}

// APIKey returns the key for the selected provider.
func (s SearchConfig) APIKey() string {
	switch strings.ToLower(s.Provider) {
	case "serper":
		return s.SerperAPIKey
	case "brave":
		return s.BraveAPIKey
	default:
		return s.TavilyAPIKey
	}
}

// FetchConfig controls page fetching for citation checks
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // http, chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	Policy   FetchPolicy   `mapstructure:"policy"`
}

// SessionConfig selects the conversation session store
type SessionConfig struct {
	Store string        `mapstructure:"store"` // inmemory, redis
	TTL   time.Duration `mapstructure:"ttl"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a lib/pq connection string, preferring URL when set.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// ReportsConfig controls where reports are written
type ReportsConfig struct {
	Dir     string `mapstructure:"dir"`
	Archive bool   `mapstructure:"archive"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Tracing      bool   `mapstructure:"tracing"`
	Stdout       bool   `mapstructure:"stdout"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

const envPrefix = "CONFLICTCAST"

// LoadConfig loads config from file, environment and defaults. A missing
// config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "warn")
	v.SetDefault("llm.providers.openai.type", "openai")
	v.SetDefault("llm.providers.openai.timeout", 60*time.Second)
	v.SetDefault("llm.providers.gemini.type", "gemini")
	v.SetDefault("llm.providers.gemini.timeout", 60*time.Second)
	v.SetDefault("agents.max_turns", 12)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", 20*time.Second)
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("fetch.type", "http")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_chars", 20000)
	v.SetDefault("session.store", "inmemory")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("server.address", ":10001")
}

// bindProviderEnv maps the conventional provider variables onto config keys
// so a bare OPENAI_API_KEY works without the CONFLICTCAST_ prefix.
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.providers.openai.api_key", envPrefix+"_LLM_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.providers.gemini.api_key", envPrefix+"_LLM_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("search.tavily_api_key", envPrefix+"_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY")
	_ = v.BindEnv("search.serper_api_key", envPrefix+"_SEARCH_SERPER_API_KEY", "SERPER_API_KEY")
	_ = v.BindEnv("search.brave_api_key", envPrefix+"_SEARCH_BRAVE_API_KEY", "BRAVE_API_KEY")
	_ = v.BindEnv("storage.postgres.url", envPrefix+"_STORAGE_POSTGRES_URL", "DATABASE_URL")
}
