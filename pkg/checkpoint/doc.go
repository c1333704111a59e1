// Package checkpoint provides durable, resumable progress records for the
// walker and the processor.
//
// Each job directory holds exactly one state.json. Saves are atomic from a
// reader's point of view: the record is written to state.json.tmp, synced,
// and renamed over the previous file, so an interrupted save leaves either
// the old or the new record, never a torn one. A missing file loads as an
// empty checkpoint; a malformed file is reported as a checkpoint_corrupt
// error and is never silently repaired.
//
// The files are indented JSON with sorted identifier lists so they can be
// inspected and hand-edited for recovery.
//
// Two processes writing the same job directory at once is unsupported.
package checkpoint
