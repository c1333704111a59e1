// Package walker follows a chain of linked pages one "next" link at a time.
//
// Architecture:
//
// The Walker is a small state machine:
//
//	READY(cursor) -> FETCHING -> EXTRACTING -> SAVED -> READY(next) | DONE | FAILED
//
// Before every fetch two guards run: the request budget and the loop guard
// (the cursor must not be in the visited set). After each fetched page is
// stored, the checkpoint is written with the new cursor, so a run killed at
// any point resumes from the last durable state.
//
// Failure handling:
//
// An identifier is only marked visited after its page was fetched and
// stored. When a fetch fails the checkpoint keeps the failing identifier as
// cursor, so the next invocation retries it. There is no retry within a run.
//
// Concurrent runs against the same output directory are not supported.
//
// Usage:
//
//	w, err := walker.NewFromConfig(cfg, log)
//	if err != nil {
//	    return err
//	}
//	result, err := w.Run(ctx)
//	switch result.Outcome {
//	case walker.OutcomeBudgetExhausted:
//	    // run again to continue from result.Cursor
//	}
package walker
