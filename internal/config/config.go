package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "SEVASETU"
	defaultHTTPAddress     = "0.0.0.0:8000"
	defaultDatabaseDSN     = "sevasetu.db"
	defaultLogLevel        = "info"
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultTranscribeURL   = "https://api.groq.com/openai/v1"
	defaultTranscribeModel = "whisper-large-v3"
	defaultClientURL       = "http://localhost:5173"
	defaultServerURL       = "http://localhost:8000"
	defaultDocServiceURL   = "http://localhost:8001"
	defaultRateLimitPerSec = 10
)

// AppConfig captures runtime configuration for the portal API server.
type AppConfig struct {
	HTTPAddress string
	DatabaseDSN string
	LogLevel    string

	IdentityBaseURL   string
	IdentityAnonKey   string
	IdentityJWTSecret string

	GeminiAPIKey string
	GeminiModel  string

	TranscribeBaseURL string
	TranscribeAPIKey  string
	TranscribeModel   string

	DocServiceURL string

	RedisAddress    string
	RedisPassword   string
	RateLimitPerSec int

	ClientURL string
	ServerURL string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("genai.model", defaultGeminiModel)
	configViper.SetDefault("transcribe.base_url", defaultTranscribeURL)
	configViper.SetDefault("transcribe.model", defaultTranscribeModel)
	configViper.SetDefault("docservice.base_url", defaultDocServiceURL)
	configViper.SetDefault("client.url", defaultClientURL)
	configViper.SetDefault("server.url", defaultServerURL)
	configViper.SetDefault("ratelimit.per_second", defaultRateLimitPerSec)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		IdentityBaseURL:   configViper.GetString("identity.base_url"),
		IdentityAnonKey:   configViper.GetString("identity.anon_key"),
		IdentityJWTSecret: configViper.GetString("identity.jwt_secret"),
		GeminiAPIKey:      configViper.GetString("genai.api_key"),
		GeminiModel:       configViper.GetString("genai.model"),
		TranscribeBaseURL: configViper.GetString("transcribe.base_url"),
		TranscribeAPIKey:  configViper.GetString("transcribe.api_key"),
		TranscribeModel:   configViper.GetString("transcribe.model"),
		DocServiceURL:     configViper.GetString("docservice.base_url"),
		RedisAddress:      configViper.GetString("redis.address"),
		RedisPassword:     configViper.GetString("redis.password"),
		RateLimitPerSec:   configViper.GetInt("ratelimit.per_second"),
		ClientURL:         configViper.GetString("client.url"),
		ServerURL:         configViper.GetString("server.url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.IdentityBaseURL) == "" {
		return fmt.Errorf("identity.base_url is required")
	}
	if strings.TrimSpace(c.IdentityAnonKey) == "" {
		return fmt.Errorf("identity.anon_key is required")
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("genai.api_key is required")
	}
	if c.RateLimitPerSec <= 0 {
		return fmt.Errorf("ratelimit.per_second must be positive")
	}
	return nil
}
