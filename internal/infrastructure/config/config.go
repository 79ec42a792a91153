package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPath = "config/research.yaml"
	envPrefix   = "RESEARCH"
)

type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	SlowMotion time.Duration `mapstructure:"slow_motion"`
	NoSandbox  bool          `mapstructure:"no_sandbox"`
	StartURL   string        `mapstructure:"start_url"`
	SearchURL  string        `mapstructure:"search_url"`
}

type LLMConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	ProModel          string  `mapstructure:"pro_model"`
	EmbeddingModel    string  `mapstructure:"embedding_model"`
	Temperature       float32 `mapstructure:"temperature"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

type IndexConfig struct {
	Path         string `mapstructure:"path"`
	Collection   string `mapstructure:"collection"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

type ReviewConfig struct {
	K             int           `mapstructure:"k"`
	SynthesisK    int           `mapstructure:"synthesis_k"`
	MaxIterations int           `mapstructure:"max_iterations"`
	MaxDuration   time.Duration `mapstructure:"max_duration"`
	MaxActions    int           `mapstructure:"max_actions"`
}

type CaptureConfig struct {
	MinTextLength int           `mapstructure:"min_text_length"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type RunConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxSteps       int           `mapstructure:"max_steps"`
	ModelScheduler bool          `mapstructure:"model_scheduler"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

type DebugConfig struct {
	ScreenshotDir string `mapstructure:"screenshot_dir"`
}

type Config struct {
	Browser BrowserConfig `mapstructure:"browser"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Index   IndexConfig   `mapstructure:"index"`
	Review  ReviewConfig  `mapstructure:"review"`
	Capture CaptureConfig `mapstructure:"capture"`
	Run     RunConfig     `mapstructure:"run"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.slow_motion", 200*time.Millisecond)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.start_url", "https://www.google.com")
	v.SetDefault("browser.search_url", "https://www.google.com")

	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.pro_model", "")
	v.SetDefault("llm.embedding_model", "openai/text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.requests_per_minute", 60)

	v.SetDefault("index.path", "rag_store_webpage/index.db")
	v.SetDefault("index.collection", "webpage_rag")
	v.SetDefault("index.chunk_size", 1200)
	v.SetDefault("index.chunk_overlap", 50)

	v.SetDefault("review.k", 40)
	v.SetDefault("review.synthesis_k", 60)
	v.SetDefault("review.max_iterations", 25)
	v.SetDefault("review.max_duration", 20*time.Minute)
	v.SetDefault("review.max_actions", 150)

	v.SetDefault("capture.min_text_length", 50)
	v.SetDefault("capture.http_timeout", 20*time.Second)
	v.SetDefault("capture.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	v.SetDefault("run.timeout", 60*time.Minute)
	v.SetDefault("run.max_steps", 2000)
	v.SetDefault("run.model_scheduler", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.dir", "log")
	v.SetDefault("log.level", "info")
	v.SetDefault("debug.screenshot_dir", "")
}

// Load merges defaults, the YAML file at path (optional when path is the
// default location) and RESEARCH_* environment variables.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Index.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk_size must be positive"))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Review.K <= 0 || c.Review.SynthesisK <= 0 {
		errs = append(errs, fmt.Errorf("review.k and review.synthesis_k must be positive"))
	}
	if c.Review.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("review.max_iterations must be positive"))
	}
	if c.LLM.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_attempts must be positive"))
	}
	if c.Browser.SearchURL == "" {
		errs = append(errs, fmt.Errorf("browser.search_url is required"))
	}
	return errors.Join(errs...)
}
