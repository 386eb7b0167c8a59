package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Store    StoreConfig    `yaml:"store"`
	Avatar   AvatarConfig   `yaml:"avatar"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig drives session and sign-in behavior.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"tokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
	ResetTokenTTL   time.Duration `yaml:"resetTokenTtl"`
	Google          GoogleConfig  `yaml:"google"`
}

// GoogleConfig holds OAuth settings for Google sign-in.
type GoogleConfig struct {
	ClientID             string `yaml:"clientId"`
	ClientSecret         string `yaml:"clientSecret"`
	RedirectURL          string `yaml:"redirectUrl"`
	TokenEncryptionKey   string `yaml:"tokenEncryptionKey"`
	PostLoginRedirectURL string `yaml:"postLoginRedirectUrl"`
}

// LLMConfig contains generation service settings.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// AnalysisConfig controls the symptom analysis pipeline.
type AnalysisConfig struct {
	MaxPredictions int           `yaml:"maxPredictions"`
	RecoverySteps  int           `yaml:"recoverySteps"`
	ProgressTick   time.Duration `yaml:"progressTick"`
	ProgressStep   int           `yaml:"progressStep"`
}

// StoreConfig contains backing store connection settings.
type StoreConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for the device-type store.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AvatarConfig controls profile photo storage.
type AvatarConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	PublicURL string `yaml:"publicUrl"`
	MaxBytes  int64  `yaml:"maxBytes"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.RefreshTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_RESET_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.ResetTokenTTL = parsed
		}
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.Google.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_REDIRECT_URL"); v != "" {
		cfg.Auth.Google.RedirectURL = v
	}
	if v := os.Getenv("GOOGLE_TOKEN_ENCRYPTION_KEY"); v != "" {
		cfg.Auth.Google.TokenEncryptionKey = v
	}
	if v := os.Getenv("GOOGLE_POST_LOGIN_REDIRECT_URL"); v != "" {
		cfg.Auth.Google.PostLoginRedirectURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("ANALYSIS_MAX_PREDICTIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.MaxPredictions = parsed
		}
	}
	if v := os.Getenv("ANALYSIS_RECOVERY_STEPS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.RecoverySteps = parsed
		}
	}
	if v := os.Getenv("ANALYSIS_PROGRESS_TICK"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.ProgressTick = parsed
		}
	}
	if v := os.Getenv("ANALYSIS_PROGRESS_STEP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.ProgressStep = parsed
		}
	}
	if v := os.Getenv("STORE_POSTGRES_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("STORE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("STORE_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("STORE_VALKEY_ENABLED"); v != "" {
		cfg.Store.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("STORE_VALKEY_ADDR"); v != "" {
		cfg.Store.Valkey.Addr = v
	}
	if v := os.Getenv("AVATAR_ENDPOINT"); v != "" {
		cfg.Avatar.Endpoint = v
	}
	if v := os.Getenv("AVATAR_ACCESS_KEY"); v != "" {
		cfg.Avatar.AccessKey = v
	}
	if v := os.Getenv("AVATAR_SECRET_KEY"); v != "" {
		cfg.Avatar.SecretKey = v
	}
	if v := os.Getenv("AVATAR_BUCKET"); v != "" {
		cfg.Avatar.Bucket = v
	}
	if v := os.Getenv("AVATAR_REGION"); v != "" {
		cfg.Avatar.Region = v
	}
	if v := os.Getenv("AVATAR_PUBLIC_URL"); v != "" {
		cfg.Avatar.PublicURL = v
	}
	if v := os.Getenv("AVATAR_MAX_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Avatar.MaxBytes = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					// Submitting an analysis must stay single-shot per request.
					"/api/v1/analyses",
				},
			},
		},
		Auth: AuthConfig{
			Secret:          "dev-only-secret",
			TokenTTL:        time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			ResetTokenTTL:   30 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-2.5-flash-preview-05-20",
			Temperature: 0.2,
		},
		Analysis: AnalysisConfig{
			MaxPredictions: 3,
			RecoverySteps:  4,
			ProgressTick:   500 * time.Millisecond,
			ProgressStep:   10,
		},
		Store: StoreConfig{
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 4,
				MinConns: 0,
			},
			Valkey: ValkeyConfig{
				Enabled: false,
				Addr:    "",
			},
		},
		Avatar: AvatarConfig{
			Bucket:   "medimind-avatars",
			MaxBytes: 2 << 20,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth.refreshTokenTtl must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return errors.New("auth.resetTokenTtl must be positive")
	}
	if c.LLM.BaseURL == "" {
		return errors.New("llm.baseUrl cannot be empty")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Analysis.MaxPredictions <= 0 {
		return errors.New("analysis.maxPredictions must be positive")
	}
	if c.Analysis.RecoverySteps <= 0 {
		return errors.New("analysis.recoverySteps must be positive")
	}
	if c.Analysis.ProgressTick <= 0 {
		return errors.New("analysis.progressTick must be positive")
	}
	if c.Analysis.ProgressStep <= 0 {
		return errors.New("analysis.progressStep must be positive")
	}
	if c.Store.Valkey.Enabled && strings.TrimSpace(c.Store.Valkey.Addr) == "" {
		return errors.New("store.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Avatar.MaxBytes <= 0 {
		return errors.New("avatar.maxBytes must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
