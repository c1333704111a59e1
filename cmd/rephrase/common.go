package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"rephrase/pkg/auth"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
	"rephrase/pkg/processor"
	"rephrase/pkg/storage"
	"rephrase/pkg/transform"
	"rephrase/pkg/ui"
	"rephrase/pkg/walker"
)

// crawlFlags are shared by crawl and run.
type crawlFlags struct {
	delay        float64
	maxRequests  int
	baseURL      string
	timeout      float64
	saveMetadata bool
	headers      []string
}

func (f *crawlFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.delay, "delay", 5, "politeness delay between requests, in seconds")
	cmd.Flags().IntVar(&f.maxRequests, "max-requests", 100, "maximum fetches in this run")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "base URL for relative next links (default: the page they appear on)")
	cmd.Flags().Float64Var(&f.timeout, "timeout", 15, "per-request timeout, in seconds")
	cmd.Flags().BoolVar(&f.saveMetadata, "save-metadata", false, "write a JSON sidecar for every stored page")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, `extra request header as "Name: value" (repeatable)`)
}

// parseHeaders splits "Name: value" pairs. A later pair overrides an earlier
// one with the same name.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf(`--header must look like "Name: value", got %q`, pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// validate rejects bad numeric flags before any work starts.
func (f *crawlFlags) validate(cmd *cobra.Command) error {
	var errs []error
	if cmd.Flags().Changed("delay") && f.delay < 0 {
		errs = append(errs, fmt.Errorf("--delay must be non-negative, got %v", f.delay))
	}
	if cmd.Flags().Changed("max-requests") && f.maxRequests <= 0 {
		errs = append(errs, fmt.Errorf("--max-requests must be a positive integer, got %d", f.maxRequests))
	}
	if cmd.Flags().Changed("timeout") && f.timeout <= 0 {
		errs = append(errs, fmt.Errorf("--timeout must be positive, got %v", f.timeout))
	}
	if _, err := parseHeaders(f.headers); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return rerrors.New(rerrors.KindConfig, "parse_flags", "", stderrors.Join(errs...))
	}
	return nil
}

// merge copies explicitly set flags into the config flag map.
func (f *crawlFlags) merge(cmd *cobra.Command, flags map[string]interface{}) {
	if cmd.Flags().Changed("delay") {
		flags["delay"] = f.delay
	}
	if cmd.Flags().Changed("max-requests") {
		flags["max-requests"] = f.maxRequests
	}
	if cmd.Flags().Changed("base-url") {
		flags["base-url"] = f.baseURL
	}
	if cmd.Flags().Changed("timeout") {
		flags["timeout"] = f.timeout
	}
	if cmd.Flags().Changed("save-metadata") {
		flags["save-metadata"] = f.saveMetadata
	}
	if headers, err := parseHeaders(f.headers); err == nil && len(headers) > 0 {
		flags["header"] = headers
	}
}

// processFlags are shared by process and run.
type processFlags struct {
	backend string
	model   string
	account string
	label   string
	ext     string
	dryRun  bool
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "transform backend (ollama, anthropic)")
	cmd.Flags().StringVar(&f.model, "model", "", "model name passed to the backend")
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "stored credential to use for hosted backends")
	cmd.Flags().StringVar(&f.label, "label", "", `output label, e.g. "Chapter"`)
	cmd.Flags().StringVar(&f.ext, "ext", "", "output file extension")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "list the files that would be written without calling the backend")
}

func (f *processFlags) merge(flags map[string]interface{}) {
	flags["backend"] = f.backend
	flags["model"] = f.model
	flags["account"] = f.account
	flags["label"] = f.label
	flags["ext"] = f.ext
}

// baseFlags starts the config flag map with the global and output flags.
func baseFlags(output string) map[string]interface{} {
	flags := map[string]interface{}{
		"output":    output,
		"log-level": logLevel,
	}
	return flags
}

// loadConfig loads configuration and builds the logger for a command.
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, rerrors.New(rerrors.KindConfig, "load_config", configFile, err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, rerrors.New(rerrors.KindConfig, "init_logger", cfg.Logging.File, err)
	}
	return cfg, log.WithFields(map[string]interface{}{
		"version": version,
		"run_id":  uuid.NewString(),
	}), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newTransformer builds the configured transform backend.
func newTransformer(cfg *config.Config, log logger.Logger, credentials func() (*auth.Manager, error)) (transform.Transformer, error) {
	switch strings.ToLower(cfg.Transform.Backend) {
	case "ollama":
		return transform.NewOllamaClient(cfg.Transform.Endpoint, cfg.Transform.Timeout, log), nil
	case "anthropic":
		key, err := resolveAPIKey(cfg, credentials)
		if err != nil {
			return nil, err
		}
		return transform.NewAnthropicClient(key, log), nil
	default:
		return nil, rerrors.New(rerrors.KindConfig, "select_backend", cfg.Transform.Backend,
			fmt.Errorf("unknown transform backend"))
	}
}

// resolveAPIKey prefers the configured key, then the credential store.
func resolveAPIKey(cfg *config.Config, credentials func() (*auth.Manager, error)) (string, error) {
	if cfg.Transform.APIKey != "" {
		return cfg.Transform.APIKey, nil
	}

	manager, err := credentials()
	if err != nil {
		return "", rerrors.New(rerrors.KindConfig, "open_credentials", "", err)
	}
	key, err := manager.APIKey(cfg.Transform.Account)
	if err != nil {
		return "", rerrors.New(rerrors.KindConfig, "resolve_api_key", cfg.Transform.Account,
			fmt.Errorf("%w (run 'rephrase auth login' or set REPHRASE_API_KEY)", err))
	}
	return key, nil
}

// crawl runs the walker with a progress line per stored page.
func crawl(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer) (*walker.Result, error) {
	w, err := walker.NewFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	tracker := ui.NewStatusTracker("FETCHED", cfg.Crawl.MaxRequests)
	tracker.SetOutput(out)
	w.SetOnItem(func(ev walker.Event) {
		detail := ev.Key
		if ev.Missing {
			detail += " (no content)"
		}
		tracker.Increment(ev.URL, detail)
	})

	return w.Run(ctx)
}

// process runs the processor over the raw directory.
func process(ctx context.Context, cfg *config.Config, log logger.Logger, t transform.Transformer, dryRun bool, out io.Writer) (*processor.Result, error) {
	items, err := storage.NewManager(cfg.RawPath())
	if err != nil {
		return nil, rerrors.New(rerrors.KindStorage, "open_items", cfg.RawPath(), err)
	}
	artifacts, err := storage.NewManager(cfg.ProcessedPath())
	if err != nil {
		return nil, rerrors.New(rerrors.KindStorage, "open_artifacts", cfg.ProcessedPath(), err)
	}

	opts := processor.OptionsFromConfig(cfg)
	opts.DryRun = dryRun
	p, err := processor.New(items, artifacts, t, opts, log)
	if err != nil {
		return nil, err
	}

	tracker := ui.NewStatusTracker("PROCESSED", 0)
	tracker.SetOutput(out)
	p.OnItem = func(id, name string) {
		tracker.Increment(id, name)
	}

	return p.Run(ctx)
}

// progressOutput is where progress lines go.
func progressOutput() io.Writer {
	if quiet {
		return io.Discard
	}
	return os.Stdout
}

// reportCrawl prints the walk outcome and how to continue.
func reportCrawl(n *ui.Notifier, res *walker.Result) {
	ui.PrintInfo("Requests", fmt.Sprintf("%d", res.Requests))
	ui.PrintInfo("Stored", fmt.Sprintf("%d", len(res.Fetched)))
	if res.Last != "" {
		ui.PrintInfo("Last page", res.Last)
	}

	switch res.Outcome {
	case walker.OutcomeCompleted:
		n.SendSuccess("Crawl complete", "reached the end of the chain")
	case walker.OutcomeBudgetExhausted:
		n.SendWarning("Request budget exhausted", "run again to continue from "+res.Cursor)
	case walker.OutcomeLoopDetected:
		n.SendWarning("Loop detected", "the chain points back to a page already stored")
	}
}

// reportError prints the error kind and the identifier involved.
func reportError(err error) {
	if stderrors.Is(err, context.Canceled) {
		ui.PrintWarning("Interrupted; progress up to the last stored item is saved")
		return
	}

	var rerr *rerrors.Error
	if stderrors.As(err, &rerr) {
		label := fmt.Sprintf("[%s]", strings.ToUpper(string(rerr.Kind)))
		if !rerrors.IsFatal(rerr.Kind) {
			ui.PrintWarning(label, err.Error())
		} else {
			ui.PrintError(label, err.Error())
		}
		if rerr.ID != "" {
			ui.PrintInfo("Identifier", rerr.ID)
		}
		if rerr.Kind == rerrors.KindFetch && rerrors.IsRetryableStatusCode(rerr.Code) {
			ui.PrintWarning("The failure looks transient; running the same command again retries it")
		}
		return
	}
	ui.PrintError("Error", err.Error())
}

// exitCode is 0 for kinds that do not stop a run, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if kind, ok := rerrors.KindOf(err); ok && !rerrors.IsFatal(kind) {
		return 0
	}
	return 1
}
