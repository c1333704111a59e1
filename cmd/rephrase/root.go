package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"rephrase/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	notify     bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rephrase",
	Short: "Archive a chain of chapter pages and rewrite them through a language model",
	Long: `rephrase follows "next chapter" links from a start page, stores the text of
every page it visits, and later rewrites each stored chapter through a local
or hosted language model.

Both stages keep a checkpoint in their output directory, so an interrupted
crawl or processing run continues where it stopped:
  - crawl    walk the link chain and store raw chapter text
  - process  rewrite stored chapters into named Markdown files
  - run      optionally crawl, then process

Politeness delay and a per-run request budget keep the crawler gentle.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
	// Errors are printed by Execute with their kind and identifier.
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			ui.SetPlain(true)
		}

		switch cmd.Name() {
		case "version", "help", "completion", "show":
			return
		}
		if !quiet {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.rephrase.yaml or ~/.config/rephrase/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a desktop notification when a run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the banner and progress lines")

	rootCmd.SetVersionTemplate(`rephrase {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
