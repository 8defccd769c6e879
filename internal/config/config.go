// Package config provides configuration loading and validation for the keyword miner.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Rate       RateConfig       `yaml:"rate" mapstructure:"rate"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Credits    CreditsConfig    `yaml:"credits" mapstructure:"credits"`
	JWT        JWTSettings      `yaml:"jwt" mapstructure:"jwt"`
	APIKey     APIKeySettings   `yaml:"apikey" mapstructure:"apikey"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins" mapstructure:"cors_origins"`

	RateLimit RateLimitSettings `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitSettings configures per-client HTTP throttling.
type RateLimitSettings struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	DefaultPerMinute  int           `yaml:"default_per_minute" mapstructure:"default_per_minute"`
	KeywordsPerMinute int           `yaml:"keywords_per_minute" mapstructure:"keywords_per_minute"`
	KeywordsBurst     int           `yaml:"keywords_burst" mapstructure:"keywords_burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	Whitelist         []string      `yaml:"whitelist" mapstructure:"whitelist"`
	Blacklist         []string      `yaml:"blacklist" mapstructure:"blacklist"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the optional keyword data cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig selects the generative provider and its models.
type LLMConfig struct {
	Provider        string            `yaml:"provider" mapstructure:"provider"`
	GeminiAPIKey    string            `yaml:"gemini_api_key" mapstructure:"gemini_api_key"`
	AnthropicAPIKey string            `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	Models          map[string]string `yaml:"models" mapstructure:"models"`
	MaxRetries      int               `yaml:"max_retries" mapstructure:"max_retries"`
}

// EnrichmentConfig holds keyword data API settings.
type EnrichmentConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SearchConfig holds Programmable Search Engine credentials.
type SearchConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	CX     string `yaml:"cx" mapstructure:"cx"`
}

// RateConfig sizes the token buckets in front of each external service.
type RateConfig struct {
	LLMPerSecond        float64 `yaml:"llm_rps" mapstructure:"llm_rps"`
	LLMBurst            int     `yaml:"llm_burst" mapstructure:"llm_burst"`
	SearchPerSecond     float64 `yaml:"search_rps" mapstructure:"search_rps"`
	SearchBurst         int     `yaml:"search_burst" mapstructure:"search_burst"`
	EnrichmentPerSecond float64 `yaml:"enrichment_rps" mapstructure:"enrichment_rps"`
}

// PipelineConfig tunes pipeline behavior.
type PipelineConfig struct {
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SynthesisReserve    time.Duration `yaml:"synthesis_reserve" mapstructure:"synthesis_reserve"`
	DifficultyThreshold int           `yaml:"difficulty_threshold" mapstructure:"difficulty_threshold"`
	SerpTopN            int           `yaml:"serp_top_n" mapstructure:"serp_top_n"`
	MaxCompetitionScans int           `yaml:"max_competition_scans" mapstructure:"max_competition_scans"`
}

// CreditsConfig controls billing behavior.
type CreditsConfig struct {
	// AllowSkipCheck honors the skipCreditsCheck request flag. Off in production.
	AllowSkipCheck bool `yaml:"allow_skip_check" mapstructure:"allow_skip_check"`
}

// JWTSettings is the raw JWT section; see NewJWTConfig.
type JWTSettings struct {
	Secret          string `yaml:"secret" mapstructure:"secret"`
	ExpirationHours int    `yaml:"expiration_hours" mapstructure:"expiration_hours"`
}

// APIKeySettings is the raw API key section; see NewAPIKeyConfig.
type APIKeySettings struct {
	BcryptCost int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	Pepper     string `yaml:"pepper" mapstructure:"pepper"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and KWMINER_* environment variables.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory to search for config.yaml.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("KWMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.default_per_minute", 600)
	v.SetDefault("server.rate_limit.keywords_per_minute", 20)
	v.SetDefault("server.rate_limit.keywords_burst", 5)
	v.SetDefault("server.rate_limit.cleanup_interval", 5*time.Minute)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("enrichment.base_url", "https://api.seranking.com")
	v.SetDefault("enrichment.api_key", "")
	v.SetDefault("enrichment.timeout", 30*time.Second)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.cx", "")
	// 5 calls per 200ms window and one search per 300ms.
	v.SetDefault("rate.llm_rps", 25.0)
	v.SetDefault("rate.llm_burst", 5)
	v.SetDefault("rate.search_rps", 3.3)
	v.SetDefault("rate.search_burst", 1)
	v.SetDefault("rate.enrichment_rps", 5.0)
	v.SetDefault("pipeline.timeout", 150*time.Second)
	v.SetDefault("pipeline.synthesis_reserve", 25*time.Second)
	v.SetDefault("pipeline.difficulty_threshold", 40)
	v.SetDefault("pipeline.serp_top_n", 5)
	v.SetDefault("pipeline.max_competition_scans", 5)
	v.SetDefault("credits.allow_skip_check", false)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("apikey.bcrypt_cost", 12)
	v.SetDefault("apikey.pepper", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings required to serve requests.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return eris.New("config error: 'database.url' is required")
	}
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return eris.New("config error: 'llm.gemini_api_key' is required for provider gemini")
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return eris.New("config error: 'llm.anthropic_api_key' is required for provider anthropic")
		}
	default:
		return eris.Errorf("config error: unknown llm provider %q", c.LLM.Provider)
	}
	if c.Pipeline.DifficultyThreshold < 0 || c.Pipeline.DifficultyThreshold > 100 {
		return eris.New("config error: 'pipeline.difficulty_threshold' must be within 0-100")
	}
	if c.Pipeline.SynthesisReserve >= c.Pipeline.Timeout {
		return eris.New("config error: 'pipeline.synthesis_reserve' must be shorter than 'pipeline.timeout'")
	}
	return nil
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
