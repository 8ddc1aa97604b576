package adapter

import (
	"log/slog"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

// SaveAction is returned by a BeforeSaveFunc.
type SaveAction int

const (
	// SaveContinue lets the write pipeline store the (possibly transformed) file.
	SaveContinue SaveAction = iota
	// SaveSkip stops the pipeline; the write completes without storing anything.
	SaveSkip
)

// BeforeSaveFunc transforms a file before it is written. It receives a private
// copy of the caller's file and may change its name, type, size and payload.
type BeforeSaveFunc func(file interfaces.LogicalFile) SaveAction

// WriteOutcome is the state of a finished write. The zero value is
// OutcomeFailed; the error carries the cause.
type WriteOutcome int

const (
	OutcomeFailed WriteOutcome = iota
	OutcomeStored
	OutcomeSkipped
)

// String returns the outcome name.
func (o WriteOutcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// WriteResult is the result of Insert and Update. Info is set only for stored writes.
type WriteResult struct {
	Outcome WriteOutcome
	Info    *interfaces.SavedFileInfo
}

// Stored reports whether the write reached the backend.
func (r WriteResult) Stored() bool {
	return r.Outcome == OutcomeStored && r.Info != nil
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// IgnoreMissing treats a file without a copy record as successfully removed.
	IgnoreMissing bool
}

// OperationObserver receives one call per completed adapter operation.
type OperationObserver interface {
	ObserveOperation(adapter, op string, duration time.Duration, err error)
}

// Options are merged into an adapter at construction and read-only afterwards.
type Options struct {
	// BeforeSave runs on a copy of the file before every insert and update.
	BeforeSave BeforeSaveFunc

	// Sync marks the adapter as a candidate for external change reconciliation.
	Sync bool

	Logger   *slog.Logger
	Observer OperationObserver

	// Now overrides the wall clock used for utime when the backend has no stats.
	Now func() time.Time

	// Values holds free-form settings exposed through Adapter.Option.
	Values map[string]any
}
