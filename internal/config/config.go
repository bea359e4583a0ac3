package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/ocr"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/writer"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config path is given.
const DefaultFile = "telescan.yaml"

const (
	ModeHistory = "history"
	ModeLive    = "live"

	SourceBot    = "bot"
	SourceExport = "export"

	VariantsAll      = "all"
	VariantsSharpest = "sharpest"
)

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type VisionConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type Config struct {
	Mode     string   `yaml:"mode"`
	Chat     string   `yaml:"chat"`
	Keywords []string `yaml:"keywords"`

	Languages           string  `yaml:"languages"`
	BlurThreshold       float64 `yaml:"blur_threshold"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Strategy            string  `yaml:"strategy"`
	VariantStrategy     string  `yaml:"variant_strategy"`

	Filters       string `yaml:"filters"`
	Binarize      bool   `yaml:"binarize"`
	Denoise       bool   `yaml:"denoise"`
	OpeningKernel int    `yaml:"opening_kernel"`

	Format       string `yaml:"format"`
	OutputDir    string `yaml:"output_dir"`
	WorkDir      string `yaml:"work_dir"`
	HistoryLimit int    `yaml:"history_limit"`
	Workers      int    `yaml:"workers"`

	OCRTimeout      time.Duration `yaml:"ocr_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	Engine   string         `yaml:"engine"`
	Source   string         `yaml:"source"`
	Telegram TelegramConfig `yaml:"telegram"`
	Export   ExportConfig   `yaml:"export"`
	Vision   VisionConfig   `yaml:"vision"`
	OpenAI   OpenAIConfig   `yaml:"openai"`

	MetricsAddr string           `yaml:"metrics_addr"`
	Log         logger.LogConfig `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Mode:                ModeHistory,
		Languages:           ocr.DefaultLanguages,
		BlurThreshold:       image.DefaultBlurThreshold,
		SimilarityThreshold: 0.8,
		Strategy:            string(match.StrategyThreshold),
		VariantStrategy:     VariantsAll,
		Filters:             image.DefaultFilters().String(),
		Binarize:            true,
		OpeningKernel:       1,
		Format:              string(writer.FormatJSON),
		OutputDir:           filepath.Join("data", "logs"),
		WorkDir:             filepath.Join("data", "images"),
		HistoryLimit:        100,
		Workers:             1,
		OCRTimeout:          ocr.DefaultTimeout,
		DownloadTimeout:     60 * time.Second,
		Engine:              "tesseract",
		Source:              SourceBot,
		Log:                 logger.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is only an error when explicit is
// set.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, &ConfigError{Field: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, &ConfigError{Field: path, Err: err}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Mode = getEnv("TELESCAN_MODE", c.Mode)
	c.Chat = getEnv("TELESCAN_CHAT", c.Chat)
	if kw := getEnv("TELESCAN_KEYWORDS", ""); kw != "" {
		c.Keywords = match.SplitKeywords(kw)
	}
	c.Languages = getEnv("TELESCAN_LANGUAGES", c.Languages)
	c.Format = getEnv("TELESCAN_FORMAT", c.Format)
	c.OutputDir = getEnv("TELESCAN_OUTPUT_DIR", c.OutputDir)
	c.WorkDir = getEnv("TELESCAN_WORK_DIR", c.WorkDir)
	c.Strategy = getEnv("TELESCAN_STRATEGY", c.Strategy)
	c.VariantStrategy = getEnv("TELESCAN_VARIANT_STRATEGY", c.VariantStrategy)
	c.Filters = getEnv("TELESCAN_FILTERS", c.Filters)
	c.Engine = getEnv("TELESCAN_ENGINE", c.Engine)
	c.Source = getEnv("TELESCAN_SOURCE", c.Source)
	c.MetricsAddr = getEnv("TELESCAN_METRICS_ADDR", c.MetricsAddr)

	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Export.Path = getEnv("TELEGRAM_EXPORT_PATH", c.Export.Path)
	c.Vision.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Vision.CredentialsFile)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.TimeFormat = getEnv("LOG_TIME_FORMAT", c.Log.TimeFormat)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	var err error
	if c.BlurThreshold, err = getEnvFloat("TELESCAN_BLUR_THRESHOLD", c.BlurThreshold); err != nil {
		return err
	}
	if c.SimilarityThreshold, err = getEnvFloat("TELESCAN_SIMILARITY_THRESHOLD", c.SimilarityThreshold); err != nil {
		return err
	}
	if c.HistoryLimit, err = getEnvInt("TELESCAN_HISTORY_LIMIT", c.HistoryLimit); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("TELESCAN_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.OCRTimeout, err = getEnvDuration("TELESCAN_OCR_TIMEOUT", c.OCRTimeout); err != nil {
		return err
	}
	if c.DownloadTimeout, err = getEnvDuration("TELESCAN_DOWNLOAD_TIMEOUT", c.DownloadTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks credentials, enumerations and ranges. Keywords may be
// empty, which exports every photo with legible text.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeHistory, ModeLive:
	default:
		return invalid("mode", "must be %q or %q, got %q", ModeHistory, ModeLive, c.Mode)
	}

	switch c.Source {
	case SourceBot:
		if c.Telegram.BotToken == "" {
			return invalid("telegram.bot_token", "TELEGRAM_BOT_TOKEN is required for the bot source")
		}
		if c.Mode == ModeHistory {
			return invalid("mode", "the bot source only supports live mode; use the export source for history")
		}
	case SourceExport:
		if c.Export.Path == "" {
			return invalid("export.path", "TELEGRAM_EXPORT_PATH is required for the export source")
		}
		if c.Mode == ModeLive {
			return invalid("mode", "the export source only supports history mode")
		}
	default:
		return invalid("source", "must be %q or %q, got %q", SourceBot, SourceExport, c.Source)
	}

	if c.BlurThreshold < 0 {
		return invalid("blur_threshold", "must not be negative, got %v", c.BlurThreshold)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return invalid("similarity_threshold", "must be within [0,1], got %v", c.SimilarityThreshold)
	}
	if c.HistoryLimit <= 0 {
		return invalid("history_limit", "must be positive, got %d", c.HistoryLimit)
	}
	if c.Workers <= 0 {
		return invalid("workers", "must be positive, got %d", c.Workers)
	}
	if c.OCRTimeout <= 0 || c.DownloadTimeout <= 0 {
		return invalid("timeouts", "must be positive")
	}
	if c.OpeningKernel < 0 {
		return invalid("opening_kernel", "must not be negative, got %d", c.OpeningKernel)
	}
	if len(ocr.ParseLanguages(c.Languages)) == 0 {
		return invalid("languages", "at least one language is required")
	}
	if _, err := match.ParseStrategy(c.Strategy); err != nil {
		return &ConfigError{Field: "strategy", Err: err}
	}
	switch c.VariantStrategy {
	case VariantsAll, VariantsSharpest:
	default:
		return invalid("variant_strategy", "must be %q or %q, got %q", VariantsAll, VariantsSharpest, c.VariantStrategy)
	}
	if _, err := image.ParseFilters(c.Filters); err != nil {
		return &ConfigError{Field: "filters", Err: err}
	}
	if _, err := writer.ParseFormat(c.Format); err != nil {
		return &ConfigError{Field: "format", Err: err}
	}
	switch c.Engine {
	case "tesseract", "vision", "openai":
	default:
		return invalid("engine", "must be tesseract, vision or openai, got %q", c.Engine)
	}
	return nil
}

// GetLoggerConfig returns the logger configuration
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return c.Log
}

func (c *Config) EngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{
		Type:                  c.Engine,
		VisionCredentialsFile: c.Vision.CredentialsFile,
		OpenAIBaseURL:         c.OpenAI.BaseURL,
		OpenAIAPIKey:          c.OpenAI.APIKey,
		OpenAIModel:           c.OpenAI.Model,
	}
}

// ImageOptions must be called on a validated config.
func (c *Config) ImageOptions() image.Options {
	filters, _ := image.ParseFilters(c.Filters)
	opts := image.DefaultOptions()
	opts.WorkDir = c.WorkDir
	opts.Filters = filters
	opts.Binarize = c.Binarize
	opts.Denoise = c.Denoise
	opts.OpeningKernel = c.OpeningKernel
	opts.BlurThreshold = c.BlurThreshold
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Err: err}
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Err: err}
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Err: fmt.Errorf("parsing duration: %w", err)}
	}
	return d, nil
}
