package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/subosito/gotenv"

	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/imagegen"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/llm"
	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
)

type Config struct {
	Debug     bool   `env:"DEBUG"`
	HTTPAddr  string `env:"HTTP_ADDR"`
	LogFile   string `env:"LOG_FILE"`   // JSON log copy, rotated
	TraceFile string `env:"TRACE_FILE"` // span export, rotated; empty disables tracing

	Gemini      GeminiConfig
	HuggingFace HuggingFaceConfig

	JWTSecret          string        `env:"JWT_SECRET"`           // empty: random per process
	SessionTTL         time.Duration `env:"SESSION_TTL"`          // idle sessions are ended after this
	MaxConcurrentTurns int           `env:"MAX_CONCURRENT_TURNS"` // across all sessions

	OutputDir string `env:"OUTPUT_DIR"` // terminal front-end saves images here
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	Model   string `env:"GEMINI_MODEL"`
	BaseURL string `env:"GEMINI_BASE_URL"`
}

type HuggingFaceConfig struct {
	APIToken       string        `env:"HF_API_TOKEN"`
	BaseURL        string        `env:"HF_INFERENCE_BASE_URL"`
	ImageModel     string        `env:"IMAGE_MODEL"` // display name or model id
	Attempts       int           `env:"IMAGE_ATTEMPTS"`
	RequestTimeout time.Duration `env:"IMAGE_REQUEST_TIMEOUT"`
}

// Defaults are overridden by .env, then the environment, then flags.
func Defaults() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Gemini: GeminiConfig{
			Model: llm.DefaultModel,
		},
		HuggingFace: HuggingFaceConfig{
			BaseURL:        imagegen.DefaultBaseURL,
			ImageModel:     domain.DefaultImageModel().ID,
			Attempts:       imagegen.DefaultAttempts,
			RequestTimeout: 120 * time.Second,
		},
		SessionTTL:         2 * time.Hour,
		MaxConcurrentTurns: 10,
		OutputDir:          "generated",
	}
}

// Load reads .env (if present) and the environment on top of Defaults.
func Load(files ...string) (*Config, error) {
	_ = gotenv.Load(files...)

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// BindFlags lets command-line flags override the loaded values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable development logging")
	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "also write JSON logs to this rotated file")
	fs.StringVar(&c.TraceFile, "trace-file", c.TraceFile, "write trace spans to this rotated file")
	fs.StringVar(&c.Gemini.Model, "gemini-model", c.Gemini.Model, "Gemini chat model")
	fs.StringVar(&c.HuggingFace.ImageModel, "image-model", c.HuggingFace.ImageModel, "default image model (name or id)")
	fs.IntVar(&c.HuggingFace.Attempts, "image-attempts", c.HuggingFace.Attempts, "attempts per image request")
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "directory for generated images")
}

// Validate checks values that cannot be fixed by defaults. Missing API keys
// are not an error: the affected route warns per turn instead.
func (c *Config) Validate() error {
	if _, ok := domain.LookupImageModel(c.HuggingFace.ImageModel); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownModel, c.HuggingFace.ImageModel)
	}
	if c.HuggingFace.Attempts < 1 {
		return fmt.Errorf("IMAGE_ATTEMPTS must be at least 1, got %d", c.HuggingFace.Attempts)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	return nil
}

// ImageModelID resolves the configured image model to its id.
func (c *Config) ImageModelID() string {
	if m, ok := domain.LookupImageModel(c.HuggingFace.ImageModel); ok {
		return m.ID
	}
	return domain.DefaultImageModel().ID
}
