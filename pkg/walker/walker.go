package walker

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"rephrase/pkg/checkpoint"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/extractor"
	"rephrase/pkg/fetcher"
	"rephrase/pkg/logger"
	"rephrase/pkg/metadata"
	"rephrase/pkg/naming"
	"rephrase/pkg/ratelimit"
	"rephrase/pkg/storage"
)

// Outcome is how a walk ended.
type Outcome string

const (
	// OutcomeCompleted means the last page had no next link.
	OutcomeCompleted Outcome = "completed"
	// OutcomeBudgetExhausted means the request budget ran out with a cursor
	// still pending; running again continues from it.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	// OutcomeLoopDetected means the next identifier was already visited.
	OutcomeLoopDetected Outcome = "loop_detected"
	// OutcomeFailed means a fetch or a write failed; Run also returns the error.
	OutcomeFailed Outcome = "failed"
)

// Result summarises one invocation of Run.
type Result struct {
	Outcome  Outcome
	Requests int
	// Cursor is the identifier the next run will start from, empty when the
	// walk has terminated.
	Cursor string
	// Last is the final identifier of the most recent stored page.
	Last string
	// Fetched lists the item keys stored during this run, in walk order.
	Fetched []string
}

// Event is reported after each page is stored.
type Event struct {
	Request int
	URL     string
	Key     string
	Bytes   int
	Missing bool
}

// MetadataWriter persists the optional per-item side output.
type MetadataWriter interface {
	Write(meta *metadata.ItemMetadata) error
}

// Options controls a walk.
type Options struct {
	StartURL string
	// BaseURL resolves relative next links. When empty, links resolve
	// against the page they were found on.
	BaseURL     string
	MaxRequests int
}

// Dependencies are the collaborators a Walker drives.
type Dependencies struct {
	Fetcher   fetcher.Fetcher
	Extractor extractor.Extractor
	Items     *storage.Manager
	Store     *checkpoint.Store[checkpoint.WalkState]
	Pacer     ratelimit.Pacer
	Metadata  MetadataWriter
	Logger    logger.Logger
	// OnItem is called after each page is stored. Optional.
	OnItem func(Event)
}

// Walker runs the link-chain walk for one job directory.
type Walker struct {
	opts Options
	deps Dependencies
	log  logger.Logger
	base *url.URL
}

// New creates a Walker.
func New(opts Options, deps Dependencies) (*Walker, error) {
	if opts.StartURL == "" {
		return nil, fmt.Errorf("start URL is required")
	}
	if opts.MaxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", opts.MaxRequests)
	}
	if deps.Fetcher == nil || deps.Extractor == nil || deps.Items == nil || deps.Store == nil {
		return nil, fmt.Errorf("fetcher, extractor, item storage and checkpoint store are required")
	}
	if deps.Pacer == nil {
		deps.Pacer = ratelimit.NewFixedDelay(0)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	w := &Walker{opts: opts, deps: deps, log: deps.Logger.WithField("component", "walker")}
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		w.base = base
	}
	return w, nil
}

// NewFromConfig wires a Walker with the HTTP fetcher, the HTML extractor and
// file storage under the configured raw directory.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Walker, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	rawDir := cfg.RawPath()

	items, err := storage.NewManager(rawDir)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.NewStore[checkpoint.WalkState](rawDir, log)
	if err != nil {
		return nil, err
	}
	f := fetcher.New(cfg.Crawl.Timeout, cfg.Crawl.UserAgent, log)
	for name, value := range cfg.Crawl.Headers {
		f.SetHeader(name, value)
	}

	return New(Options{
		StartURL:    cfg.Crawl.StartURL,
		BaseURL:     cfg.Crawl.BaseURL,
		MaxRequests: cfg.Crawl.MaxRequests,
	}, Dependencies{
		Fetcher:   f,
		Extractor: extractor.New(cfg.Extract, log),
		Items:     items,
		Store:     store,
		Pacer:     ratelimit.NewFixedDelay(cfg.Crawl.Delay),
		Metadata:  metadata.NewWriter(rawDir, cfg.Output.SaveMetadata),
		Logger:    log,
	})
}

// SetOnItem installs the per-item hook after construction.
func (w *Walker) SetOnItem(fn func(Event)) {
	w.deps.OnItem = fn
}

// Run walks the chain until the budget is spent, the chain ends, a loop is
// detected or a fetch fails. The checkpoint is saved after every step.
func (w *Walker) Run(ctx context.Context) (*Result, error) {
	state, err := w.deps.Store.Load()
	if err != nil {
		return nil, err
	}

	cursor := state.CursorOr(w.opts.StartURL)
	result := &Result{Cursor: cursor, Last: state.Last}

	w.log.InfoWithFields("Starting walk", map[string]interface{}{
		"cursor":       cursor,
		"visited":      state.Visited.Len(),
		"max_requests": w.opts.MaxRequests,
		"resumed":      state.Cursor != nil,
	})

	for {
		// READY: budget guard, then loop guard.
		if result.Requests >= w.opts.MaxRequests {
			result.Outcome = OutcomeBudgetExhausted
			w.log.InfoWithFields("Request budget exhausted", map[string]interface{}{
				"requests": result.Requests,
				"cursor":   cursor,
			})
			return result, nil
		}
		if state.Visited.Has(cursor) {
			return w.stopOnLoop(state, result, cursor)
		}
		if err := ctx.Err(); err != nil {
			return w.fail(state, result, cursor, err)
		}

		// FETCHING
		page, err := w.deps.Fetcher.Fetch(ctx, cursor)
		result.Requests++
		state.RequestsTotal++
		if err != nil {
			w.logError(err, "Fetch failed, stopping walk", map[string]interface{}{
				"url":      cursor,
				"requests": result.Requests,
			})
			return w.fail(state, result, cursor, err)
		}

		// EXTRACTING
		extracted, err := w.deps.Extractor.Extract(page.Body, page.FinalURL)
		if err != nil {
			extracted = &extractor.Result{Missing: true}
		}
		if extracted.Missing {
			w.logError(rerrors.New(rerrors.KindExtractionMiss, "extract", page.FinalURL, err),
				"No content extracted, storing empty item", map[string]interface{}{
					"url": page.FinalURL,
				})
		}

		// SAVED
		key := naming.Slug(page.FinalURL)
		replaced := w.deps.Items.HasItem(key)
		itemPath, err := w.deps.Items.SaveItem(key, extracted.Text)
		if err != nil {
			return w.fail(state, result, cursor, rerrors.New(rerrors.KindStorage, "save_item", key, err))
		}

		next := w.resolve(extracted.NextHref, page.FinalURL)
		w.writeMetadata(&metadata.ItemMetadata{
			URL:            cursor,
			FinalURL:       page.FinalURL,
			Key:            key,
			TextFile:       itemPath,
			Bytes:          len(extracted.Text),
			NextURL:        next,
			FetchedAt:      time.Now().UTC(),
			ContentMissing: extracted.Missing,
		})

		state.Visited.Add(cursor)
		state.Visited.Add(page.FinalURL)
		state.Last = page.FinalURL
		result.Last = page.FinalURL
		result.Fetched = append(result.Fetched, key)

		w.log.InfoWithFields("Item stored", map[string]interface{}{
			"url":      page.FinalURL,
			"key":      key,
			"bytes":    len(extracted.Text),
			"missing":  extracted.Missing,
			"replaced": replaced,
			"next":     next,
		})
		if w.deps.OnItem != nil {
			w.deps.OnItem(Event{
				Request: result.Requests,
				URL:     page.FinalURL,
				Key:     key,
				Bytes:   len(extracted.Text),
				Missing: extracted.Missing,
			})
		}

		if next == "" {
			state.Cursor = nil
			result.Cursor = ""
			if err := w.save(state); err != nil {
				return w.failed(result, err)
			}
			result.Outcome = OutcomeCompleted
			w.log.InfoWithFields("Reached the end of the chain", map[string]interface{}{
				"last":     page.FinalURL,
				"requests": result.Requests,
			})
			return result, nil
		}
		if state.Visited.Has(next) {
			return w.stopOnLoop(state, result, next)
		}

		state.SetCursor(next)
		cursor = next
		result.Cursor = next
		if err := w.save(state); err != nil {
			return w.failed(result, err)
		}

		// READY(next): no pause after the final permitted request.
		if result.Requests < w.opts.MaxRequests {
			if err := w.deps.Pacer.Pause(ctx); err != nil {
				return w.failed(result, err)
			}
		}
	}
}

// stopOnLoop terminates the walk because id was already visited.
func (w *Walker) stopOnLoop(state *checkpoint.WalkState, result *Result, id string) (*Result, error) {
	w.logError(rerrors.New(rerrors.KindLoopDetected, "walk", id, nil), "Loop detected, stopping walk", map[string]interface{}{
		"url":      id,
		"requests": result.Requests,
	})
	state.Cursor = nil
	result.Cursor = ""
	if err := w.save(state); err != nil {
		return w.failed(result, err)
	}
	result.Outcome = OutcomeLoopDetected
	return result, nil
}

// fail keeps id as the cursor so the next run retries it, then returns cause.
func (w *Walker) fail(state *checkpoint.WalkState, result *Result, id string, cause error) (*Result, error) {
	state.SetCursor(id)
	result.Cursor = id
	if err := w.save(state); err != nil {
		cause = stderrors.Join(cause, err)
	}
	return w.failed(result, cause)
}

func (w *Walker) failed(result *Result, err error) (*Result, error) {
	result.Outcome = OutcomeFailed
	return result, err
}

func (w *Walker) save(state *checkpoint.WalkState) error {
	if err := w.deps.Store.Save(state); err != nil {
		return rerrors.New(rerrors.KindStorage, "save_checkpoint", w.deps.Store.Path(), err)
	}
	return nil
}

// logError logs err at warn level when its kind does not stop a run and at
// error level otherwise.
func (w *Walker) logError(err error, msg string, fields map[string]interface{}) {
	log := w.log.WithError(err)
	if kind, ok := rerrors.KindOf(err); ok && !rerrors.IsFatal(kind) {
		log.WarnWithFields(msg, fields)
		return
	}
	log.ErrorWithFields(msg, fields)
}

// writeMetadata never fails the walk; problems are logged.
func (w *Walker) writeMetadata(meta *metadata.ItemMetadata) {
	if w.deps.Metadata == nil {
		return
	}
	if err := w.deps.Metadata.Write(meta); err != nil {
		w.log.WithError(err).WarnWithFields("Failed to write item metadata", map[string]interface{}{
			"key": meta.Key,
		})
	}
}

// resolve turns an extracted href into an absolute identifier.
func (w *Walker) resolve(href, pageURL string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		w.log.WarnWithFields("Ignoring unparsable next link", map[string]interface{}{
			"href": href,
			"page": pageURL,
		})
		return ""
	}

	base := w.base
	if base == nil {
		if base, err = url.Parse(pageURL); err != nil {
			return href
		}
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}
