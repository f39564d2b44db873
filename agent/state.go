package agent

// State is the value threaded through one workflow invocation. It is
// created per run, owned by that run alone, and returned by value; nodes
// never report failure any other way than through the Status and Summary
// fields.
type State struct {
	// Template is the caller-supplied notification template (see
	// mailer.Render for the available placeholders).
	Template string

	// SkipDispatch turns the run into a reconciliation-only pass.
	// Scheduled background runs set this; manual triggers do not.
	SkipDispatch bool

	// Status describes the dispatch outcome.
	Status string

	// DispatchedID is the identifier of the complaint a notification was
	// sent for, when one was.
	DispatchedID string

	// Summary describes the reconciliation outcome.
	Summary string

	// ResolvedCount and ScannedCount back the Summary.
	ResolvedCount int
	ScannedCount  int
}

// Dispatch statuses
const (
	StatusSkipped   = "skipped"
	StatusNoPending = "no records pending"
	StatusSent      = "notification sent"
)
