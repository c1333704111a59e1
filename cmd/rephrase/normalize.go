package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"rephrase/pkg/normalize"
	"rephrase/pkg/ui"
)

var (
	normalizeDir     string
	normalizePattern string
)

// normalizeCmd represents the normalize command
var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Re-encode processed files as clean UTF-8",
	Long: `Detect the character encoding of each matching file, decode it, collapse
runs of blank lines and write it back as UTF-8 without a byte order mark.

Files that cannot be decoded are reported and left untouched.`,
	Example: `  # Normalise processed chapters in the default output directory
  rephrase normalize

  # Normalise other files
  rephrase normalize --dir ./novel/processed --pattern "*.md"`,
	Args: cobra.NoArgs,
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)

	normalizeCmd.Flags().StringVar(&normalizeDir, "dir", "", "directory to normalise (default: the processed output directory)")
	normalizeCmd.Flags().StringVar(&normalizePattern, "pattern", normalize.DefaultPattern, "file name glob")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(baseFlags(""))
	if err != nil {
		return err
	}

	dir := normalizeDir
	if dir == "" {
		dir = cfg.ProcessedPath()
	}
	ui.PrintInfo("Directory", dir)

	results, err := normalize.Dir(dir, normalizePattern, log)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		ui.PrintWarning("No files matched", normalizePattern)
		return nil
	}

	failed := 0
	t := ui.NewTable(os.Stdout, "")
	t.AppendHeader(table.Row{"File", "Encoding", "Result"})
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			t.AppendRow(table.Row{res.Name, res.From, ui.Red(res.Err.Error())})
		case res.Changed:
			t.AppendRow(table.Row{res.Name, res.From, ui.Green("rewritten")})
		default:
			t.AppendRow(table.Row{res.Name, res.From, ui.Dim("unchanged")})
		}
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be normalised", failed, len(results))
	}
	ui.PrintSuccess(fmt.Sprintf("%d file(s) normalised", len(results)))
	return nil
}
