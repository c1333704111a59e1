package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for rephrase
type Config struct {
	// Chain traversal
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// HTML selectors for the content extractor
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Output layout
	Output OutputConfig `yaml:"output" json:"output"`

	// Text transform backend
	Transform TransformConfig `yaml:"transform" json:"transform"`

	// Processed artifact naming
	Process ProcessConfig `yaml:"process" json:"process"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlConfig holds link-chain walker configuration
type CrawlConfig struct {
	StartURL    string        `yaml:"start_url" json:"start_url"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	// Headers are extra request headers sent with every fetch.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ExtractConfig holds the CSS selectors used to pull content and the next link
type ExtractConfig struct {
	ContentSelector string `yaml:"content_selector" json:"content_selector"`
	NextSelector    string `yaml:"next_selector" json:"next_selector"`
	TextSeparator   string `yaml:"text_separator" json:"text_separator"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	RawDir        string `yaml:"raw_dir" json:"raw_dir"`
	ProcessedDir  string `yaml:"processed_dir" json:"processed_dir"`
	SaveMetadata  bool   `yaml:"save_metadata" json:"save_metadata"`
}

// TransformConfig holds text transform backend configuration
type TransformConfig struct {
	Backend     string        `yaml:"backend" json:"backend"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	Model       string        `yaml:"model" json:"model"`
	System      string        `yaml:"system" json:"system"`
	Prompt      string        `yaml:"prompt" json:"prompt"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Account     string        `yaml:"account" json:"account"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// ProcessConfig holds naming configuration for processed artifacts
type ProcessConfig struct {
	Label     string `yaml:"label" json:"label"`
	Extension string `yaml:"extension" json:"extension"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultPrompt is the instruction template prepended to every item.
const DefaultPrompt = `Rewrite the following chapter in clear, fluent English.
Keep every event, name and line of dialogue. Do not summarise or add commentary.
Start with the chapter title on its own line.`

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Delay:       5 * time.Second,
			MaxRequests: 100,
			Timeout:     15 * time.Second,
			UserAgent:   "MyChapterArchiver/1.0 (+contact@example.com)",
		},
		Extract: ExtractConfig{
			ContentSelector: "div#chapter-content",
			NextSelector:    "a#next_chap",
			TextSeparator:   "\n\t",
		},
		Output: OutputConfig{
			BaseDirectory: "./chapter_archive",
			RawDir:        "raw",
			ProcessedDir:  "processed",
			SaveMetadata:  false,
		},
		Transform: TransformConfig{
			Backend:     "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.1",
			Prompt:      DefaultPrompt,
			MaxTokens:   8192,
			Temperature: 0.2,
			Timeout:     10 * time.Minute,
		},
		Process: ProcessConfig{
			Label:     "Chapter",
			Extension: "md",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// RawPath returns the walker job directory
func (c *Config) RawPath() string {
	return filepath.Join(c.Output.BaseDirectory, c.Output.RawDir)
}

// ProcessedPath returns the processor job directory
func (c *Config) ProcessedPath() string {
	return filepath.Join(c.Output.BaseDirectory, c.Output.ProcessedDir)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("REPHRASE_START_URL"); v != "" {
		c.Crawl.StartURL = v
	}
	if v := os.Getenv("REPHRASE_BASE_URL"); v != "" {
		c.Crawl.BaseURL = v
	}
	if v := os.Getenv("REPHRASE_DELAY"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REPHRASE_DELAY: %w", err))
		} else {
			c.Crawl.Delay = d
		}
	}
	if v := os.Getenv("REPHRASE_MAX_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REPHRASE_MAX_REQUESTS: %w", err))
		} else {
			c.Crawl.MaxRequests = n
		}
	}
	if v := os.Getenv("REPHRASE_USER_AGENT"); v != "" {
		c.Crawl.UserAgent = v
	}

	if v := os.Getenv("REPHRASE_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("REPHRASE_SAVE_METADATA"); v != "" {
		c.Output.SaveMetadata = strings.ToLower(v) == "true"
	}

	if v := os.Getenv("REPHRASE_BACKEND"); v != "" {
		c.Transform.Backend = v
	}
	if v := os.Getenv("REPHRASE_ENDPOINT"); v != "" {
		c.Transform.Endpoint = v
	}
	if v := os.Getenv("REPHRASE_MODEL"); v != "" {
		c.Transform.Model = v
	}
	if v := os.Getenv("REPHRASE_API_KEY"); v != "" {
		c.Transform.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Transform.APIKey == "" {
		c.Transform.APIKey = v
	}

	if v := os.Getenv("REPHRASE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REPHRASE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".rephrase.yaml",
		".rephrase.yml",
		filepath.Join(home, ".config", "rephrase", "config.yaml"),
		filepath.Join(home, ".config", "rephrase", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.Delay < 0 {
		errs = append(errs, errors.New("delay must be non-negative"))
	}
	if c.Crawl.MaxRequests <= 0 {
		errs = append(errs, errors.New("max requests must be a positive integer"))
	}
	if c.Crawl.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Crawl.StartURL != "" {
		if err := validateAbsoluteURL(c.Crawl.StartURL); err != nil {
			errs = append(errs, fmt.Errorf("start url: %w", err))
		}
	}
	if c.Crawl.BaseURL != "" {
		if err := validateAbsoluteURL(c.Crawl.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("base url: %w", err))
		}
	}
	for name, value := range c.Crawl.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			errs = append(errs, fmt.Errorf("invalid header name %q", name))
		} else if !httpguts.ValidHeaderFieldValue(value) {
			errs = append(errs, fmt.Errorf("invalid value for header %s", name))
		}
	}

	if c.Extract.ContentSelector == "" {
		errs = append(errs, errors.New("content selector is required"))
	}
	if c.Extract.NextSelector == "" {
		errs = append(errs, errors.New("next-link selector is required"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.RawDir == "" || c.Output.ProcessedDir == "" {
		errs = append(errs, errors.New("raw and processed directory names are required"))
	}
	if c.Output.RawDir != "" && c.Output.RawDir == c.Output.ProcessedDir {
		errs = append(errs, errors.New("raw and processed directories must differ"))
	}

	validBackends := map[string]bool{"ollama": true, "anthropic": true}
	if !validBackends[strings.ToLower(c.Transform.Backend)] {
		errs = append(errs, fmt.Errorf("invalid transform backend: %q", c.Transform.Backend))
	}
	if c.Transform.Model == "" {
		errs = append(errs, errors.New("transform model is required"))
	}
	if c.Transform.Prompt == "" {
		errs = append(errs, errors.New("transform prompt is required"))
	}
	if c.Transform.Timeout <= 0 {
		errs = append(errs, errors.New("transform timeout must be positive"))
	}

	if c.Process.Label == "" {
		errs = append(errs, errors.New("output label is required"))
	}
	if c.Process.Extension == "" || strings.Contains(c.Process.Extension, "/") {
		errs = append(errs, errors.New("output extension is invalid"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys follow the CLI flag names.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["start-url"].(string); ok && v != "" {
		c.Crawl.StartURL = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Crawl.BaseURL = v
	}
	if v, ok := flags["delay"].(float64); ok {
		c.Crawl.Delay = time.Duration(v * float64(time.Second))
	}
	if v, ok := flags["max-requests"].(int); ok {
		c.Crawl.MaxRequests = v
	}
	if v, ok := flags["timeout"].(float64); ok {
		c.Crawl.Timeout = time.Duration(v * float64(time.Second))
	}
	if v, ok := flags["header"].(map[string]string); ok && len(v) > 0 {
		if c.Crawl.Headers == nil {
			c.Crawl.Headers = make(map[string]string, len(v))
		}
		for name, value := range v {
			c.Crawl.Headers[name] = value
		}
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["save-metadata"].(bool); ok {
		c.Output.SaveMetadata = v
	}
	if v, ok := flags["backend"].(string); ok && v != "" {
		c.Transform.Backend = v
	}
	if v, ok := flags["endpoint"].(string); ok && v != "" {
		c.Transform.Endpoint = v
	}
	if v, ok := flags["model"].(string); ok && v != "" {
		c.Transform.Model = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Transform.Account = v
	}
	if v, ok := flags["label"].(string); ok && v != "" {
		c.Process.Label = v
	}
	if v, ok := flags["ext"].(string); ok && v != "" {
		c.Process.Extension = strings.TrimPrefix(v, ".")
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".rephrase.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// parseSeconds accepts either a Go duration ("1500ms") or plain seconds ("2.5").
func parseSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
