// Package agent implements the complaint-resolution workflow: a strictly
// linear two-step machine that first dispatches a notification for one
// pending complaint and then reconciles inbound replies against the store.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/civicworks/remedy/db"
	"github.com/civicworks/remedy/logger"
	"github.com/civicworks/remedy/mailbox"
	"github.com/civicworks/remedy/mailer"
	"github.com/civicworks/remedy/pkg/metrics"
)

// RecordStore defines the store operations the workflow needs.
// This allows for mocking in tests.
type RecordStore interface {
	FindPending(ctx context.Context) (*db.Complaint, error)
	Approve(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string) (bool, error)
}

// Mailer sends one plain-text message to the fixed recipient.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// Scanner retrieves up to limit unread replies from the inbox.
type Scanner interface {
	Scan(ctx context.Context, limit int) ([]mailbox.Message, error)
}

// Agent ties the two workflow steps to their collaborators.
type Agent struct {
	store         RecordStore
	mailer        Mailer
	scanner       Scanner
	subjectPrefix string
	batchLimit    int
}

// New creates a workflow agent
func New(store RecordStore, m Mailer, scanner Scanner, subjectPrefix string, batchLimit int) *Agent {
	return &Agent{
		store:         store,
		mailer:        m,
		scanner:       scanner,
		subjectPrefix: subjectPrefix,
		batchLimit:    batchLimit,
	}
}

// Run executes one workflow invocation: dispatch, then reconciliation.
// Reconciliation always runs, whatever dispatch concluded; the two phases
// share a state value but not a fate. Run never returns an error: every
// failure is folded into the returned state.
func (a *Agent) Run(ctx context.Context, state State) State {
	state = a.dispatch(ctx, state)
	state = a.reconcile(ctx, state)
	return state
}

// dispatch selects one validated, unapproved complaint, sends its
// notification and marks it approved. The approved flag only flips after a
// confirmed send.
func (a *Agent) dispatch(ctx context.Context, state State) State {
	if state.SkipDispatch {
		state.Status = StatusSkipped
		return state
	}

	complaint, err := a.store.FindPending(ctx)
	if err != nil {
		if errors.Is(err, db.ErrComplaintNotFound) {
			state.Status = StatusNoPending
			return state
		}
		state.Status = fmt.Sprintf("store lookup failed: %v", err)
		return state
	}

	id := complaint.ID.Hex()
	subject := fmt.Sprintf("%s #%s", a.subjectPrefix, id)
	body := mailer.Render(complaint, state.Template)

	if err := a.mailer.Send(ctx, subject, body); err != nil {
		// The record stays untouched; the next run retries it.
		logger.Error("notification send failed", "id", id, "error", err)
		state.Status = fmt.Sprintf("send failed: %v", err)
		return state
	}

	if err := a.store.Approve(ctx, id); err != nil {
		// The notification is out but the record still looks pending, so a
		// later run may send a duplicate. Accepted: resolution replies are
		// matched by id, not by send count.
		logger.Error("approval update failed after send", "id", id, "error", err)
		state.DispatchedID = id
		state.Status = fmt.Sprintf("sent but approval update failed: %v", err)
		return state
	}

	logger.Info("complaint dispatched", "id", id)
	state.DispatchedID = id
	state.Status = StatusSent
	return state
}

// reconcile scans unread replies and resolves every complaint a
// resolution reply refers to. Scanner failures are reported in the
// summary, never raised.
func (a *Agent) reconcile(ctx context.Context, state State) State {
	messages, err := a.scanner.Scan(ctx, a.batchLimit)
	if err != nil {
		logger.Error("reply check failed", "error", err)
		state.Summary = fmt.Sprintf("reply check failed: %v", err)
		return state
	}

	state.ScannedCount = len(messages)
	if len(messages) == 0 {
		state.Summary = "no unread replies"
		return state
	}

	for _, msg := range messages {
		if !mailbox.IsResolution(msg.Body) {
			continue
		}

		id, ok := mailbox.ExtractComplaintID(msg.Subject)
		if !ok {
			// A resolution keyword without an extractable identifier is
			// noise, not an error.
			logger.Info("resolution reply without complaint id", "subject", msg.Subject)
			continue
		}

		resolved, err := a.store.Resolve(ctx, id)
		if err != nil {
			logger.Error("failed to resolve complaint", "id", id, "error", err)
			continue
		}
		if resolved {
			state.ResolvedCount++
			metrics.ComplaintsResolved.Inc()
		}
	}

	state.Summary = fmt.Sprintf("resolved %d of %d scanned replies", state.ResolvedCount, state.ScannedCount)
	return state
}
