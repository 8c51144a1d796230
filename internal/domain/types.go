// Package domain defines the shared value types passed between the office
// engine, the journey, and the document orchestrator.
package domain

import (
	"context"
	"time"
)

// CustomerProfile describes an applicant arriving at the bureaucracy: which
// documents they want and how long they wait before showing up.
type CustomerProfile struct {
	CustomerID        string
	RequestedDocuments []string
	ArrivalDelay      time.Duration
}

// IssuanceTask is the unit of work an office counter executes. Work is a
// deferred producer of an IssuanceResult; it carries no mutable state of its
// own and lives from submission until a worker settles its completion. The
// context passed to Work carries the reentrancy marker a worker installs
// around its service call, so a Work body that submits back into the office
// it is running on can be recognized and executed inline.
type IssuanceTask struct {
	CustomerID   string
	DocumentName string
	Work         func(ctx context.Context) (IssuanceResult, error)

	// TaskID is an opaque log-correlation identifier, never used for
	// equality or business logic; the (CustomerID, DocumentName) pair
	// remains the sole identity key.
	TaskID string
}

// IssuanceResult is what a customer receives when a document is produced.
// ServiceDuration is filled in by the worker after the delay-plus-work span
// is timed; every other field is set by the task's work body.
type IssuanceResult struct {
	CustomerID      string
	DocumentName    string
	IssuingOffice   string
	Dependencies    []string
	ServiceDuration time.Duration

	// TaskID carries the originating IssuanceTask's log-correlation
	// identifier through to the result.
	TaskID string
}

// WithServiceDuration returns a copy of the result with ServiceDuration set,
// mirroring the immutable with-style update used throughout the pack's
// value types.
func (r IssuanceResult) WithServiceDuration(d time.Duration) IssuanceResult {
	r.ServiceDuration = d
	return r
}

// OfficeRuntimeState is the office's break/shutdown state machine, per the
// break state diagram: OPEN -> BREAK_PENDING -> ON_BREAK -> OPEN, with
// SHUTDOWN reachable from any state as a terminal.
type OfficeRuntimeState string

const (
	OfficeOpen        OfficeRuntimeState = "OPEN"
	OfficeBreakPending OfficeRuntimeState = "BREAK_PENDING"
	OfficeOnBreak      OfficeRuntimeState = "ON_BREAK"
	OfficeShutdown     OfficeRuntimeState = "SHUTDOWN"
)
