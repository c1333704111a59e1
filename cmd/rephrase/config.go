package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"rephrase/pkg/auth"
	"rephrase/pkg/config"
	"rephrase/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage rephrase configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REPHRASE_*)
  - .env files (./.env, ~/.rephrase.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.rephrase.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Output and log path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# rephrase configuration file
#
# Every option can also be set with an environment variable prefixed with
# REPHRASE_, for example REPHRASE_START_URL or REPHRASE_MODEL.

# Link-chain crawl
crawl:
  # First page of the chain. Only used when the output directory has no
  # crawl checkpoint yet.
  start_url: ""

  # Base for relative next links. Empty resolves them against the page
  # they appear on.
  base_url: ""

  # Politeness delay between requests
  delay: 5s

  # Maximum fetches per run
  max_requests: 100

  # Per-request timeout
  timeout: 15s

  user_agent: "MyChapterArchiver/1.0 (+contact@example.com)"

  # Extra headers sent with every request; --header "Name: value" overrides
  # an entry with the same name
  # headers:
  #   Cookie: "age_verified=1"

# Where chapter text lives on each page
extract:
  content_selector: "div#chapter-content"
  next_selector: "a#next_chap"
  # Joins the text nodes of the content element
  text_separator: "\n\t"

# Output layout: <base_directory>/<raw_dir> and <base_directory>/<processed_dir>
output:
  base_directory: "./chapter_archive"
  raw_dir: "raw"
  processed_dir: "processed"

  # Write a JSON sidecar per stored page
  save_metadata: false

# Language model backend
transform:
  # ollama or anthropic
  backend: "ollama"

  # Ollama server address
  endpoint: "http://localhost:11434"

  model: "llama3.1"

  # Optional system prompt
  system: ""

  # Instruction placed before each chapter's text
  prompt: |
    Rewrite the following chapter in clear, fluent English.
    Keep every event, name and line of dialogue. Do not summarise or add commentary.
    Start with the chapter title on its own line.

  # Stored key name for hosted backends (see 'rephrase auth login')
  account: ""

  max_tokens: 8192
  temperature: 0.2
  timeout: 10m

# Output file naming: chapter-12-the-gate -> "Chapter 12 - The Gate.md"
process:
  label: "Chapter"
  extension: "md"

logging:
  # debug, info, warn, error, disabled
  level: "info"

  # Optional log file; logs go to stderr when empty
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".rephrase.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("refusing to overwrite %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set crawl.start_url and the selectors for your site")
	fmt.Println("2. Run 'rephrase config validate' to check the configuration")
	fmt.Println("3. Start with 'rephrase crawl' and then 'rephrase process'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	displayCfg := *cfg
	if displayCfg.Transform.APIKey != "" {
		displayCfg.Transform.APIKey = auth.MaskString(displayCfg.Transform.APIKey)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (REPHRASE_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		home, _ := os.UserHomeDir()
		for _, candidate := range []string{
			".rephrase.yaml",
			".rephrase.yml",
			filepath.Join(home, ".config", "rephrase", "config.yaml"),
			filepath.Join(home, ".config", "rephrase", "config.yml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no configuration file found; specify one with --config")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var warnings, problems []string
	if cfg.Crawl.StartURL == "" {
		warnings = append(warnings, "crawl.start_url is not set; pass it to 'rephrase crawl'")
	}
	if cfg.Crawl.Delay == 0 {
		warnings = append(warnings, "crawl.delay is 0; requests will not be paced")
	}
	if cfg.Transform.Backend == "anthropic" && cfg.Transform.APIKey == "" {
		if manager, err := auth.NewManager(); err != nil {
			warnings = append(warnings, "credential store unavailable: "+err.Error())
		} else if _, err := manager.APIKey(cfg.Transform.Account); err != nil {
			warnings = append(warnings, "no API key stored for the anthropic backend; run 'rephrase auth login'")
		}
	}

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d error(s)", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Delay: %s\n", cfg.Crawl.Delay)
	fmt.Printf("  Max requests per run: %d\n", cfg.Crawl.MaxRequests)
	fmt.Printf("  Backend: %s (%s)\n", cfg.Transform.Backend, cfg.Transform.Model)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
