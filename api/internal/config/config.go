package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProviderOpenAI = "gpt"
	ProviderGemini = "gemini"

	LedgerCSV      = "csv"
	LedgerPostgres = "postgres"
)

// DefaultEnvFile is read first; the process environment is used when it is absent.
const DefaultEnvFile = "./config/.env"

type Config struct {
	Port  string `env:"PORT" env-default:"8000"`
	Debug bool   `env:"DEBUG" env-default:"false"`

	LLMProvider    string `env:"LLM_PROVIDER" env-default:"gpt"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel    string `env:"OPENAI_MODEL" env-default:"gpt-4-turbo"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	ImageMaxTokens int    `env:"IMAGE_MAX_TOKENS" env-default:"1000"`

	PromptDir string `env:"PROMPT_DIR" env-default:"prompts"`

	LedgerBackend string `env:"LEDGER_BACKEND" env-default:"csv"`
	LedgerPath    string `env:"LEDGER_PATH" env-default:"submission_log.csv"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`

	AdminPassword   string        `env:"ADMIN_PASSWORD"`
	AdminSessionTTL time.Duration `env:"ADMIN_SESSION_TTL" env-default:"8h"`
	AdminArmTTL     time.Duration `env:"ADMIN_ARM_TTL" env-default:"2m"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" env-default:"10485760"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

func Load() (*Config, error) {
	return LoadFile(DefaultEnvFile)
}

func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.LLMProvider == "openai" {
		c.LLMProvider = ProviderOpenAI
	}
	c.LedgerBackend = strings.ToLower(strings.TrimSpace(c.LedgerBackend))
	c.OpenAIBaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAIBaseURL), "/")
}

// Validate checks settings every binary relies on. Secrets needed only by
// some binaries (LLM keys, ADMIN_PASSWORD, TELEGRAM_BOT_TOKEN) are checked by them.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want gpt|gemini)", c.LLMProvider)
	}
	switch c.LedgerBackend {
	case LedgerCSV:
		if strings.TrimSpace(c.LedgerPath) == "" {
			return errors.New("LEDGER_PATH is empty")
		}
	case LedgerPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("missing required env DATABASE_URL for LEDGER_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q (want csv|postgres)", c.LedgerBackend)
	}
	if c.ImageMaxTokens <= 0 {
		return fmt.Errorf("IMAGE_MAX_TOKENS must be > 0, got %d", c.ImageMaxTokens)
	}
	return nil
}

// RequireLLMKey fails when the selected provider has no API key.
func (c *Config) RequireLLMKey() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("missing required env OPENAI_API_KEY for provider %q", c.LLMProvider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("missing required env GEMINI_API_KEY for provider %q", c.LLMProvider)
		}
	}
	return nil
}

// RequireAdminSecret fails when no admin password is configured. There is no
// built-in default.
func (c *Config) RequireAdminSecret() error {
	if strings.TrimSpace(c.AdminPassword) == "" {
		return errors.New("missing required env ADMIN_PASSWORD")
	}
	return nil
}
