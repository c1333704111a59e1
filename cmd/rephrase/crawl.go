package main

import (
	"github.com/spf13/cobra"
	"rephrase/pkg/ui"
)

var (
	crawlOutput string
	crawlOpts   crawlFlags
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <start-url>",
	Short: "Walk the next-chapter chain and store each page's text",
	Long: `Walk a chain of pages by following the "next" link on each one, storing the
extracted text of every page under <output>/raw.

The walk stops when a page has no next link, when the next link points to a
page already stored, or when --max-requests fetches have been made. A failed
fetch stops the walk too; the failing page is retried by the next run.

Progress is saved after every page. Running the same command again continues
from where the previous run stopped; the start URL is only used for a fresh
output directory.`,
	Example: `  # Crawl up to 100 pages with the default 5 second delay
  rephrase crawl https://example.com/novel/chapter-1.html

  # Store into a specific directory, 50 pages per run, 2 second delay
  rephrase crawl https://example.com/novel/chapter-1.html -o ./novel --max-requests 50 --delay 2

  # Resolve relative next links against a fixed site root
  rephrase crawl https://example.com/novel/chapter-1.html --base-url https://example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "output directory (default: ./chapter_archive)")
	crawlOpts.register(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if err := crawlOpts.validate(cmd); err != nil {
		return err
	}

	flags := baseFlags(crawlOutput)
	crawlOpts.merge(cmd, flags)
	if len(args) > 0 {
		flags["start-url"] = args[0]
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := requireStartURL(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	log.InfoWithFields("rephrase crawl starting", map[string]interface{}{
		"start_url": cfg.Crawl.StartURL,
		"output":    cfg.RawPath(),
	})
	ui.PrintInfo("Output", cfg.RawPath())
	ui.PrintHighlight("[CRAWLING]")

	res, err := crawl(ctx, cfg, log, progressOutput())
	if err != nil {
		if res != nil && res.Cursor != "" {
			ui.PrintInfo("Resume from", res.Cursor)
		}
		ui.NewNotifier(notify).SendError("Crawl stopped", err.Error())
		return err
	}

	reportCrawl(ui.NewNotifier(notify), res)
	return nil
}
