// Package logger provides the structured logging interface used by every
// rephrase component.
//
// It wraps zerolog behind a small Logger interface so that core packages
// receive a logger at construction time instead of reaching for a global:
//
//	log, err := logger.New(&cfg.Logging)
//	w := walker.New(cfg, fetcher, extractor, store, log)
//
// Console output is coloured and human readable. When a log file is
// configured, records are written to both the console and the file.
//
// Tests use NewNopLogger to silence output or NewTestLogger to capture
// records and assert on them.
package logger
