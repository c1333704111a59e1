package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the class of failure raised by the pipeline
type Kind string

const (
	KindFetch             Kind = "fetch"
	KindExtractionMiss    Kind = "extraction_miss"
	KindLoopDetected      Kind = "loop_detected"
	KindTransform         Kind = "transform"
	KindCheckpointCorrupt Kind = "checkpoint_corrupt"
	KindNameCollision     Kind = "name_collision"
	KindStorage           Kind = "storage"
	KindConfig            Kind = "config"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrFetch             = &Error{Kind: KindFetch}
	ErrExtractionMiss    = &Error{Kind: KindExtractionMiss}
	ErrLoopDetected      = &Error{Kind: KindLoopDetected}
	ErrTransform         = &Error{Kind: KindTransform}
	ErrCheckpointCorrupt = &Error{Kind: KindCheckpointCorrupt}
	ErrNameCollision     = &Error{Kind: KindNameCollision}
)

// Error carries the failure kind plus enough context (identifier, phase)
// for an operator to diagnose and resume.
type Error struct {
	Kind Kind
	// Op is the phase that failed, e.g. "fetch", "save_checkpoint".
	Op string
	// ID is the identifier (URL, item key, file path) being worked on.
	ID string
	// Code is the transport status code, 0 when not applicable.
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" (%s)", e.ID)
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" [status %d]", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so the package sentinels match wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op) && (t.ID == "" || t.ID == e.ID)
}

// New builds an Error of the given kind.
func New(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Fetch builds a transport failure for id.
func Fetch(id string, code int, err error) *Error {
	return &Error{Kind: KindFetch, Op: "fetch", ID: id, Code: code, Err: err}
}

// Transform builds a transform-boundary failure for the item id.
func Transform(id string, err error) *Error {
	return &Error{Kind: KindTransform, Op: "transform", ID: id, Err: err}
}

// CheckpointCorrupt builds a load-time failure for the checkpoint at path.
func CheckpointCorrupt(path string, err error) *Error {
	return &Error{Kind: KindCheckpointCorrupt, Op: "load_checkpoint", ID: path, Err: err}
}

// KindOf extracts the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsFatal checks if an error kind must stop the current run
func IsFatal(kind Kind) bool {
	switch kind {
	case KindExtractionMiss, KindLoopDetected:
		return false
	case KindFetch, KindTransform, KindCheckpointCorrupt, KindNameCollision, KindStorage, KindConfig:
		return true
	default:
		return true
	}
}

// IsRetryableStatusCode checks if an HTTP status code is likely transient.
// The walker never retries within a run; this only shapes the operator hint.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error or timeout
		return true
	case 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
