// Package config loads estate-assistant settings from defaults, an optional
// config.yaml, a local .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Chat    ChatConfig    `mapstructure:"chat"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Store   StoreConfig   `mapstructure:"store"`
	AWS     AWSConfig     `mapstructure:"aws"`
	API     APIConfig     `mapstructure:"api"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ChatConfig struct {
	MaxMessageLength  int           `mapstructure:"max_message_length"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	Moderation        bool          `mapstructure:"moderation"`
}

type LLMConfig struct {
	Provider        string  `mapstructure:"provider"`
	OpenAIModel     string  `mapstructure:"openai_model"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url"`
	AnthropicModel  string  `mapstructure:"anthropic_model"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
}

// String masks the API keys.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, OpenAIModel:%s, OpenAIAPIKey:%s, AnthropicModel:%s, AnthropicAPIKey:%s}",
		c.Provider, c.OpenAIModel, maskAPIKey(c.OpenAIAPIKey), c.AnthropicModel, maskAPIKey(c.AnthropicAPIKey))
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	StateTable  string `mapstructure:"state_table"`
}

type AWSConfig struct {
	ParamPrefix string        `mapstructure:"param_prefix"`
	ParamTTL    time.Duration `mapstructure:"param_ttl"`
}

type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration. A missing config.yaml or .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESTATE_ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("llm.openai_api_key", "ESTATE_ASSISTANT_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.anthropic_api_key", "ESTATE_ASSISTANT_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("store.database_url", "ESTATE_ASSISTANT_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("store.state_table", "ESTATE_ASSISTANT_STORE_STATE_TABLE", "STATE_TABLE")
	_ = v.BindEnv("aws.param_prefix", "ESTATE_ASSISTANT_AWS_PARAM_PREFIX", "PARAM_PREFIX")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat.max_message_length", 1000)
	v.SetDefault("chat.generation_timeout", 20*time.Second)
	v.SetDefault("chat.moderation", true)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.5)

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.sqlite_path", "data/estate.db")

	v.SetDefault("aws.param_ttl", 5*time.Minute)

	v.SetDefault("api.listen_addr", ":8080")

	v.SetDefault("catalog.limit", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.Chat.MaxMessageLength <= 0 {
		return errors.New("chat.max_message_length must be greater than 0")
	}
	if c.Chat.GenerationTimeout <= 0 {
		return errors.New("chat.generation_timeout must be greater than 0")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" && c.AWS.ParamPrefix == "" {
			return errors.New("llm.openai_api_key or aws.param_prefix is required for the openai provider")
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return errors.New("llm.anthropic_api_key is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.Store.StateTable == "" {
			return errors.New("store.state_table is required for the dynamodb backend")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres backend")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	if c.Catalog.Limit <= 0 {
		return errors.New("catalog.limit must be greater than 0")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}
