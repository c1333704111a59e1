// Package transform is the boundary to the text-rewriting service.
//
// A Transformer turns one Request into a Stream of text chunks. The stream
// is finite and can be consumed once; Collect drains it into the single
// string the processor formats and writes.
package transform

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// Request is a single rewrite call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Validate checks the fields every backend needs.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if strings.TrimSpace(r.Prompt) == "" {
		errs = append(errs, errors.New("prompt is required"))
	}
	if r.MaxTokens < 0 {
		errs = append(errs, errors.New("max tokens must not be negative"))
	}
	return errors.Join(errs...)
}

// Stream yields response chunks in order. A non-nil error ends the stream.
type Stream = iter.Seq2[string, error]

// Transformer is implemented by every backend.
type Transformer interface {
	Transform(ctx context.Context, req Request) (Stream, error)
}

// Collect drains s into one string.
func Collect(s Stream) (string, error) {
	var b strings.Builder
	for chunk, err := range s {
		if err != nil {
			return "", err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

// Func adapts a plain function into a Transformer that yields one chunk.
type Func func(ctx context.Context, req Request) (string, error)

// Transform calls f.
func (f Func) Transform(ctx context.Context, req Request) (Stream, error) {
	out, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	return Chunks(out), nil
}

// Chunks returns a Stream over the given chunks.
func Chunks(chunks ...string) Stream {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}
