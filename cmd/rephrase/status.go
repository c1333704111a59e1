package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"rephrase/pkg/checkpoint"
	"rephrase/pkg/config"
	"rephrase/pkg/logger"
	"rephrase/pkg/metadata"
	"rephrase/pkg/naming"
	"rephrase/pkg/storage"
	"rephrase/pkg/ui"
)

var (
	statusOutput string

	resetOutput  string
	resetCrawl   bool
	resetProcess bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crawl and processing progress for an output directory",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget crawl or processing progress",
	Long: `Delete the crawl checkpoint, the processing checkpoint, or both. Stored
chapters and written files are left in place; a copy of each checkpoint is
kept as state.json.backup next to it. Resetting the crawl also removes page
metadata whose chapter text no longer exists.

After resetting the crawl, the next crawl starts again from the start URL.
After resetting processing, every stored chapter is rewritten again.`,
	Example: `  rephrase reset --crawl
  rephrase reset --process -o ./novel`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)

	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "", "output directory (default: ./chapter_archive)")

	resetCmd.Flags().StringVarP(&resetOutput, "output", "o", "", "output directory (default: ./chapter_archive)")
	resetCmd.Flags().BoolVar(&resetCrawl, "crawl", false, "reset the crawl checkpoint")
	resetCmd.Flags().BoolVar(&resetProcess, "process", false, "reset the processing checkpoint")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(baseFlags(statusOutput))
	if err != nil {
		return err
	}

	walkStore, err := checkpoint.NewStore[checkpoint.WalkState](cfg.RawPath(), log)
	if err != nil {
		return err
	}
	walk, err := walkStore.Load()
	if err != nil {
		return err
	}
	items, err := storage.NewManager(cfg.RawPath())
	if err != nil {
		return err
	}

	crawlTable := ui.NewTable(os.Stdout, "Crawl")
	crawlTable.AppendRows([]table.Row{
		{"Directory", cfg.RawPath()},
		{"Stored chapters", items.GetItemCount()},
		{"Visited URLs", walk.Visited.Len()},
		{"Requests (all runs)", walk.RequestsTotal},
	})
	switch {
	case walk.Cursor != nil:
		crawlTable.AppendRow(table.Row{"Next URL", *walk.Cursor})
	case walkStore.Exists():
		crawlTable.AppendRow(table.Row{"Next URL", "none (walk finished)"})
	default:
		crawlTable.AppendRow(table.Row{"Next URL", "not started"})
	}
	if walk.Last != "" {
		crawlTable.AppendRow(table.Row{"Last page", walk.Last})
		crawlTable.AppendRows(lastPageRows(cfg.RawPath(), walk.Last))
	}
	appendUpdated(crawlTable, walk.UpdatedAt)
	crawlTable.Render()

	procStore, err := checkpoint.NewStore[checkpoint.ProcessState](cfg.ProcessedPath(), log)
	if err != nil {
		return err
	}
	proc, err := procStore.Load()
	if err != nil {
		return err
	}

	pending := 0
	for _, id := range items.ListItems() {
		if !proc.Processed.Has(id) {
			pending++
		}
	}

	fmt.Println()
	procTable := ui.NewTable(os.Stdout, "Processing")
	procTable.AppendRows([]table.Row{
		{"Directory", cfg.ProcessedPath()},
		{"Processed", proc.Processed.Len()},
		{"Pending", pending},
	})
	appendUpdated(procTable, proc.UpdatedAt)
	procTable.Render()
	return nil
}

// lastPageRows describes the last stored page from its metadata, when the
// crawl wrote any.
func lastPageRows(rawDir, last string) []table.Row {
	key := naming.Slug(last)
	if !metadata.MetadataExists(rawDir, key) {
		return nil
	}
	meta, err := metadata.Load(rawDir, key)
	if err != nil {
		return []table.Row{{"Last page metadata", err.Error()}}
	}
	rows := []table.Row{
		{"Last page size", fmt.Sprintf("%d bytes", meta.Bytes)},
		{"Last page fetched", meta.FetchedAt.Local().Format("2006-01-02 15:04:05")},
	}
	if meta.ContentMissing {
		rows = append(rows, table.Row{"Last page content", "missing"})
	}
	return rows
}

func appendUpdated(t table.Writer, at time.Time) {
	if at.IsZero() {
		return
	}
	t.AppendRow(table.Row{"Updated", at.Local().Format("2006-01-02 15:04:05")})
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetCrawl && !resetProcess {
		return errors.New("choose what to reset with --crawl, --process or both")
	}

	cfg, log, err := loadConfig(baseFlags(resetOutput))
	if err != nil {
		return err
	}
	return resetJob(cfg, log, resetCrawl, resetProcess)
}

func resetJob(cfg *config.Config, log logger.Logger, crawl, process bool) error {
	if crawl {
		store, err := checkpoint.NewStore[checkpoint.WalkState](cfg.RawPath(), log)
		if err != nil {
			return err
		}
		if err := resetStore("Crawl", store); err != nil {
			return err
		}
		removed, err := metadata.CleanOrphanedMetadata(cfg.RawPath(), storage.ItemExt)
		if err != nil {
			return err
		}
		if removed > 0 {
			ui.PrintInfo("  Orphaned metadata removed", fmt.Sprintf("%d", removed))
		}
	}
	if process {
		store, err := checkpoint.NewStore[checkpoint.ProcessState](cfg.ProcessedPath(), log)
		if err != nil {
			return err
		}
		if err := resetStore("Processing", store); err != nil {
			return err
		}
	}
	return nil
}

// resettable is the part of a checkpoint store reset needs.
type resettable interface {
	Exists() bool
	Backup() (string, error)
	Delete() error
	Path() string
}

func resetStore(label string, store resettable) error {
	if !store.Exists() {
		ui.PrintInfo(label, "no checkpoint at "+store.Path())
		return nil
	}

	backup, err := store.Backup()
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return err
	}

	ui.PrintSuccess(label + " checkpoint reset")
	ui.PrintInfo("  Backup", backup)
	return nil
}
