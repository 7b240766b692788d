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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Graph      GraphConfig      `yaml:"graph" mapstructure:"graph"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational contact store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GraphConfig holds the graph database connection settings.
type GraphConfig struct {
	URI         string `yaml:"uri" mapstructure:"uri"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	Database    string `yaml:"database" mapstructure:"database"`
	MaxPoolSize int    `yaml:"max_pool_size" mapstructure:"max_pool_size"`
}

// JinaConfig holds Jina AI reader and search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds the embeddings endpoint settings.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// EnrichConfig tunes the enrichment orchestrator.
type EnrichConfig struct {
	ProviderTimeoutSecs int   `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
	SynthTimeoutSecs    int   `yaml:"synth_timeout_secs" mapstructure:"synth_timeout_secs"`
	EmbedTimeoutSecs    int   `yaml:"embed_timeout_secs" mapstructure:"embed_timeout_secs"`
	RetryAttempts       int   `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerFailures     int   `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs    int   `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	SocialMaxBytes      int64 `yaml:"social_max_bytes" mapstructure:"social_max_bytes"`
}

// ProviderTimeout returns the per-adapter call timeout.
func (c EnrichConfig) ProviderTimeout() time.Duration {
	return secondsOr(c.ProviderTimeoutSecs, 30)
}

// SynthTimeout returns the synthesis call timeout.
func (c EnrichConfig) SynthTimeout() time.Duration {
	return secondsOr(c.SynthTimeoutSecs, 60)
}

// EmbedTimeout returns the embedding call timeout.
func (c EnrichConfig) EmbedTimeout() time.Duration {
	return secondsOr(c.EmbedTimeoutSecs, 20)
}

// SearchConfig tunes hybrid retrieval and graph queries.
type SearchConfig struct {
	ModeTimeoutSecs     int `yaml:"mode_timeout_secs" mapstructure:"mode_timeout_secs"`
	DefaultTopK         int `yaml:"default_top_k" mapstructure:"default_top_k"`
	MaxTopK             int `yaml:"max_top_k" mapstructure:"max_top_k"`
	CandidateMultiplier int `yaml:"candidate_multiplier" mapstructure:"candidate_multiplier"`
	NeighborhoodLimit   int `yaml:"neighborhood_limit" mapstructure:"neighborhood_limit"`
}

// ModeTimeout returns the per retrieval-mode timeout.
func (c SearchConfig) ModeTimeout() time.Duration {
	return secondsOr(c.ModeTimeoutSecs, 5)
}

// ServerConfig configures the trigger/query HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func secondsOr(secs, fallback int) time.Duration {
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("graph.max_pool_size", 50)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 5)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("enrich.provider_timeout_secs", 30)
	v.SetDefault("enrich.synth_timeout_secs", 60)
	v.SetDefault("enrich.embed_timeout_secs", 20)
	v.SetDefault("enrich.retry_attempts", 2)
	v.SetDefault("enrich.breaker_failures", 5)
	v.SetDefault("enrich.breaker_reset_secs", 60)
	v.SetDefault("enrich.social_max_bytes", 512*1024)
	v.SetDefault("search.mode_timeout_secs", 5)
	v.SetDefault("search.default_top_k", 10)
	v.SetDefault("search.max_top_k", 100)
	v.SetDefault("search.candidate_multiplier", 2)
	v.SetDefault("search.neighborhood_limit", 200)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks the settings a command needs before it starts. Provider
// credentials are not required: missing keys degrade the
// corresponding capability instead of failing the process.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "enrich", "search", "migrate", "import":
		if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Graph.URI == "" {
			errs = append(errs, "graph.uri is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Store.DatabaseURL == "" && c.Store.Driver != "sqlite" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if c.Search.MaxTopK < 0 || c.Search.DefaultTopK < 0 {
		errs = append(errs, "search top_k values must be >= 0")
	}
	if c.Search.MaxTopK > 0 && c.Search.DefaultTopK > c.Search.MaxTopK {
		errs = append(errs, "search.default_top_k must be <= search.max_top_k")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
