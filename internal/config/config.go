// Package config resolves condenser settings from a YAML file and
// environment variables. Precedence: environment over file over
// defaults. Credentials stay optional here; each run validates that
// the credential its platform needs is present before fetching.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	DBPath     string
	ListenAddr string

	SlackBotToken string

	M365TenantID     string
	M365ClientID     string
	M365ClientSecret string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string

	PromotionThreshold float64
	SegmentTokens      int
	TokenizerVocab     string
}

type fileConfig struct {
	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`
	Slack      struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"slack"`
	M365 struct {
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"m365"`
	LLM struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"llm"`
	Pipeline struct {
		PromotionThreshold float64 `yaml:"promotion_threshold"`
		SegmentTokens      int     `yaml:"segment_tokens"`
		TokenizerVocab     string  `yaml:"tokenizer_vocab"`
	} `yaml:"pipeline"`
}

// DefaultConfigPath is where the config file lives unless overridden.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".condenser", "config.yaml")
}

// Resolve loads the file at path (DefaultConfigPath when empty; a
// missing file is fine) and applies environment overrides.
func Resolve(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}

	cfg := &Config{
		ListenAddr:         ":8080",
		Model:              "gpt-4o-mini",
		OpenAIBaseURL:      "https://api.openai.com/v1/chat/completions",
		PromotionThreshold: 0.65,
		SegmentTokens:      2000,
	}

	fc, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if fc != nil {
		apply(&cfg.DBPath, fc.DBPath)
		apply(&cfg.ListenAddr, fc.ListenAddr)
		apply(&cfg.SlackBotToken, fc.Slack.BotToken)
		apply(&cfg.M365TenantID, fc.M365.TenantID)
		apply(&cfg.M365ClientID, fc.M365.ClientID)
		apply(&cfg.M365ClientSecret, fc.M365.ClientSecret)
		apply(&cfg.OpenAIAPIKey, fc.LLM.APIKey)
		apply(&cfg.OpenAIBaseURL, fc.LLM.BaseURL)
		apply(&cfg.Model, fc.LLM.Model)
		apply(&cfg.TokenizerVocab, fc.Pipeline.TokenizerVocab)
		if fc.Pipeline.PromotionThreshold > 0 {
			cfg.PromotionThreshold = fc.Pipeline.PromotionThreshold
		}
		if fc.Pipeline.SegmentTokens > 0 {
			cfg.SegmentTokens = fc.Pipeline.SegmentTokens
		}
	}

	applyEnv(&cfg.DBPath, "CONDENSER_DB")
	applyEnv(&cfg.ListenAddr, "CONDENSER_LISTEN")
	applyEnv(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	applyEnv(&cfg.M365TenantID, "M365_TENANT_ID")
	applyEnv(&cfg.M365ClientID, "M365_CLIENT_ID")
	applyEnv(&cfg.M365ClientSecret, "M365_CLIENT_SECRET")
	applyEnv(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	applyEnv(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	applyEnv(&cfg.Model, "OPENAI_MODEL")
	applyEnv(&cfg.TokenizerVocab, "CONDENSER_TOKENIZER_VOCAB")

	if v := strings.TrimSpace(os.Getenv("PROMOTION_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("PROMOTION_THRESHOLD: %w", err)
		}
		cfg.PromotionThreshold = f
	}
	if v := strings.TrimSpace(os.Getenv("CONDENSER_SEGMENT_TOKENS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CONDENSER_SEGMENT_TOKENS: %w", err)
		}
		cfg.SegmentTokens = n
	}

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &fc, nil
}

func apply(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func applyEnv(dst *string, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = v
	}
}
