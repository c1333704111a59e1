// Package processor rewrites stored items through the transform boundary,
// one at a time and in natural numeric order, checkpointing after each.
package processor

import (
	"context"
	"fmt"

	"rephrase/pkg/checkpoint"
	"rephrase/pkg/config"
	rerrors "rephrase/pkg/errors"
	"rephrase/pkg/logger"
	"rephrase/pkg/naming"
	"rephrase/pkg/storage"
	"rephrase/pkg/transform"
)

// Options controls naming and the transform request.
type Options struct {
	Label       string
	Ext         string
	Prompt      string
	System      string
	Model       string
	Temperature float64
	MaxTokens   int
	// DryRun enumerates and names items without calling the transform.
	DryRun bool
}

// OptionsFromConfig builds Options from the transform and process sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Label:       cfg.Process.Label,
		Ext:         cfg.Process.Extension,
		Prompt:      cfg.Transform.Prompt,
		System:      cfg.Transform.System,
		Model:       cfg.Transform.Model,
		Temperature: cfg.Transform.Temperature,
		MaxTokens:   cfg.Transform.MaxTokens,
	}
}

// Result summarises one run.
type Result struct {
	Processed int
	Skipped   int
	// Outputs are the artifact names written (or planned, for a dry run).
	Outputs []string
}

// Processor owns the processed checkpoint for one output directory.
type Processor struct {
	items       *storage.Manager
	artifacts   *storage.Manager
	store       *checkpoint.Store[checkpoint.ProcessState]
	transformer transform.Transformer
	opts        Options
	namer       *naming.Namer
	logger      logger.Logger

	// OnItem is called after each artifact is written. Optional.
	OnItem func(id, name string)
}

// New creates a Processor reading items from items and writing artifacts
// and its checkpoint into artifacts' directory.
func New(items, artifacts *storage.Manager, t transform.Transformer, opts Options, log logger.Logger) (*Processor, error) {
	if items == nil || artifacts == nil {
		return nil, fmt.Errorf("item and artifact storage are required")
	}
	if t == nil && !opts.DryRun {
		return nil, fmt.Errorf("a transformer is required")
	}
	if opts.Label == "" {
		return nil, fmt.Errorf("label is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	store, err := checkpoint.NewStore[checkpoint.ProcessState](artifacts.GetOutputDir(), log)
	if err != nil {
		return nil, err
	}

	return &Processor{
		items:       items,
		artifacts:   artifacts,
		store:       store,
		transformer: t,
		opts:        opts,
		namer:       naming.NewNamer(opts.Label, opts.Ext),
		logger:      log.WithField("component", "processor"),
	}, nil
}

// Store exposes the processed checkpoint.
func (p *Processor) Store() *checkpoint.Store[checkpoint.ProcessState] {
	return p.store
}

// Run processes every unprocessed item. A transform failure stops the run;
// items finished before it stay recorded and the failing item is retried
// next time.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	state, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	ids := p.items.ListItems()
	names, err := p.plan(ids)
	if err != nil {
		return nil, err
	}

	p.logger.InfoWithFields("Starting processing", map[string]interface{}{
		"items":     len(ids),
		"processed": state.Processed.Len(),
		"dry_run":   p.opts.DryRun,
	})

	result := &Result{}
	for _, id := range ids {
		if state.Processed.Has(id) {
			p.logger.DebugWithFields("Skipping processed item", map[string]interface{}{"id": id})
			result.Skipped++
			continue
		}
		name := names[id]

		if p.opts.DryRun {
			result.Outputs = append(result.Outputs, name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := p.processItem(ctx, id, name); err != nil {
			p.logger.WithError(err).ErrorWithFields("Processing stopped", map[string]interface{}{
				"id":        id,
				"processed": result.Processed,
			})
			return result, err
		}

		state.Processed.Add(id)
		if err := p.store.Save(state); err != nil {
			return result, rerrors.New(rerrors.KindStorage, "save_checkpoint", p.store.Path(), err)
		}

		result.Processed++
		result.Outputs = append(result.Outputs, name)
		if p.OnItem != nil {
			p.OnItem(id, name)
		}
	}

	p.logger.InfoWithFields("Processing finished", map[string]interface{}{
		"processed": result.Processed,
		"skipped":   result.Skipped,
	})
	return result, nil
}

// plan assigns an output name to every id and rejects collisions up front.
func (p *Processor) plan(ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	owners := make(map[string]string, len(ids))
	for _, id := range ids {
		name := p.namer.Name(id)
		if other, ok := owners[name]; ok {
			return nil, rerrors.New(rerrors.KindNameCollision, "name_output", id,
				fmt.Errorf("%q and %q both map to %q", other, id, name))
		}
		owners[name] = id
		names[id] = name
	}
	return names, nil
}

func (p *Processor) processItem(ctx context.Context, id, name string) error {
	text, err := p.items.ReadItem(id)
	if err != nil {
		return rerrors.New(rerrors.KindStorage, "read_item", id, err)
	}

	req := transform.Request{
		Model:       p.opts.Model,
		System:      p.opts.System,
		Prompt:      p.opts.Prompt + "\n\n" + text,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	}

	p.logger.InfoWithFields("Transforming item", map[string]interface{}{
		"id":     id,
		"output": name,
		"bytes":  len(text),
	})

	stream, err := p.transformer.Transform(ctx, req)
	if err != nil {
		return rerrors.Transform(id, err)
	}
	out, err := transform.Collect(stream)
	if err != nil {
		return rerrors.Transform(id, err)
	}

	if _, err := p.artifacts.WriteFile(name, []byte(naming.Format(out))); err != nil {
		return rerrors.New(rerrors.KindStorage, "write_artifact", id, err)
	}
	return nil
}
