package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"rephrase/pkg/auth"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
	"rephrase/pkg/processor"
	"rephrase/pkg/transform"
	"rephrase/pkg/ui"
)

var (
	processOutput string
	processOpts   processFlags

	runOutput    string
	runWithCrawl bool
	runCrawlOpts crawlFlags
	runProcOpts  processFlags
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Rewrite stored chapters through the configured language model",
	Long: `Rewrite every stored chapter under <output>/raw through the transform backend
and write the result to <output>/processed.

Chapters are handled one at a time in natural order (chapter-2 before
chapter-10). Each finished chapter is recorded, so re-running skips it. If
the backend fails, the run stops and the failed chapter is retried next time.

Output names follow the label: "chapter-426-blacksmith" becomes
"Chapter 426 - Blacksmith.md".`,
	Example: `  # Rewrite with a local Ollama model
  rephrase process --model llama3.1

  # Use Anthropic with the stored API key
  rephrase process --backend anthropic --model claude-sonnet-4-5

  # Show the file names that would be written
  rephrase process --dry-run`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [start-url]",
	Short: "Optionally crawl, then process",
	Long: `Run the whole pipeline. With --crawl the link chain is walked first (same
flags as 'rephrase crawl'); processing then picks up every stored chapter.

A crawl that stops on its request budget or a loop still proceeds to
processing. A crawl that fails does not.`,
	Example: `  # Crawl 20 more pages, then rewrite everything new
  rephrase run https://example.com/novel/chapter-1.html --crawl --max-requests 20

  # Only process what is already stored
  rephrase run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runCmd)

	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output directory (default: ./chapter_archive)")
	processOpts.register(processCmd)

	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output directory (default: ./chapter_archive)")
	runCmd.Flags().BoolVar(&runWithCrawl, "crawl", false, "crawl before processing")
	runCrawlOpts.register(runCmd)
	runProcOpts.register(runCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	flags := baseFlags(processOutput)
	processOpts.merge(flags)

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	t, err := backendFor(cfg, log, processOpts.dryRun)
	if err != nil {
		return err
	}

	log.InfoWithFields("rephrase process starting", map[string]interface{}{
		"backend": cfg.Transform.Backend,
		"model":   cfg.Transform.Model,
		"output":  cfg.ProcessedPath(),
	})
	printProcessHeader(cfg, processOpts.dryRun)

	res, err := process(ctx, cfg, log, t, processOpts.dryRun, progressOutput())
	if err != nil {
		ui.NewNotifier(notify).SendError("Processing stopped", err.Error())
		return err
	}
	reportProcess(ui.NewNotifier(notify), res, processOpts.dryRun)
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if runWithCrawl {
		if err := runCrawlOpts.validate(cmd); err != nil {
			return err
		}
	}

	flags := baseFlags(runOutput)
	runCrawlOpts.merge(cmd, flags)
	runProcOpts.merge(flags)
	if len(args) > 0 {
		flags["start-url"] = args[0]
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// Resolve the backend before crawling so a missing key fails fast.
	t, err := backendFor(cfg, log, runProcOpts.dryRun)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	notifier := ui.NewNotifier(notify)
	if runWithCrawl {
		if err := requireStartURL(cfg); err != nil {
			return err
		}
		ui.PrintHighlight("[CRAWLING]")
		res, err := crawl(ctx, cfg, log, progressOutput())
		if err != nil {
			notifier.SendError("Crawl stopped", err.Error())
			return err
		}
		reportCrawl(ui.NewNotifier(false), res)
	}

	printProcessHeader(cfg, runProcOpts.dryRun)
	res, err := process(ctx, cfg, log, t, runProcOpts.dryRun, progressOutput())
	if err != nil {
		notifier.SendError("Processing stopped", err.Error())
		return err
	}
	reportProcess(notifier, res, runProcOpts.dryRun)
	return nil
}

// backendFor returns nil for a dry run, which never calls the backend.
func backendFor(cfg *config.Config, log logger.Logger, dryRun bool) (transform.Transformer, error) {
	if dryRun {
		return nil, nil
	}
	return newTransformer(cfg, log, auth.NewManager)
}

func printProcessHeader(cfg *config.Config, dryRun bool) {
	ui.PrintInfo("Backend", cfg.Transform.Backend+" / "+cfg.Transform.Model)
	ui.PrintInfo("Output", cfg.ProcessedPath())
	if dryRun {
		ui.PrintHighlight("[DRY RUN]")
		return
	}
	ui.PrintHighlight("[PROCESSING]")
}

func reportProcess(n *ui.Notifier, res *processor.Result, dryRun bool) {
	if dryRun {
		t := ui.NewTable(os.Stdout, "")
		t.AppendHeader(table.Row{"#", "Would write"})
		for i, name := range res.Outputs {
			t.AppendRow(table.Row{i + 1, name})
		}
		t.AppendFooter(table.Row{"Skipped", res.Skipped})
		t.Render()
		return
	}
	ui.PrintInfo("Skipped", fmt.Sprintf("%d already processed", res.Skipped))
	n.SendSuccess("Processing complete", fmt.Sprintf("%d chapter(s) written", res.Processed))
}

func requireStartURL(cfg *config.Config) error {
	if cfg.Crawl.StartURL != "" {
		return nil
	}
	return rerrors.New(rerrors.KindConfig, "start_crawl", "",
		fmt.Errorf("a start URL is required (argument, crawl.start_url or REPHRASE_START_URL)"))
}
