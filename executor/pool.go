// Package executor provides the bounded execution facility shared by
// scheduled and manually triggered workflow runs: a fixed-size worker pool
// with per-submission timeouts, and a ticker-driven scheduler feeding it.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/civicworks/remedy/agent"
	"github.com/civicworks/remedy/pkg/metrics"
)

var (
	// ErrTimeout is returned when a submission was not completed within
	// the caller's timeout. The underlying run is not cancelled.
	ErrTimeout = errors.New("workflow run timed out")

	// ErrClosed is returned when submitting to a closed pool
	ErrClosed = errors.New("executor is closed")
)

// Trigger labels for metrics and logs
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Request describes one workflow invocation
type Request struct {
	Template     string
	SkipDispatch bool
}

// Workflow runs one invocation to completion. Implemented by *agent.Agent.
type Workflow interface {
	Run(ctx context.Context, state agent.State) agent.State
}

type task struct {
	req     Request
	trigger string
	result  chan agent.State
}

// Pool runs workflow invocations on a fixed number of workers. Submissions
// block until a worker picks them up or the caller's timeout elapses.
//
// A timed-out submission abandons the wait but does not interrupt the run:
// the worker finishes on a cancel-free context and may still mutate the
// store and mailbox after the caller has moved on. The store operations
// are idempotent enough that this is a resource leak, not a correctness
// problem.
type Pool struct {
	workflow Workflow
	tasks    chan task
	closed   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewPool creates a pool and starts its workers
func NewPool(workflow Workflow, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	p := &Pool{
		workflow: workflow,
		tasks:    make(chan task),
		closed:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case t := <-p.tasks:
			start := time.Now()
			state := p.workflow.Run(context.Background(), agent.State{
				Template:     t.req.Template,
				SkipDispatch: t.req.SkipDispatch,
			})
			metrics.WorkflowDuration.WithLabelValues(t.trigger).Observe(time.Since(start).Seconds())
			t.result <- state
		}
	}
}

// Submit queues a workflow invocation and waits up to timeout for its
// result. trigger is a label for metrics and logs (TriggerManual or
// TriggerScheduled).
func (p *Pool) Submit(ctx context.Context, trigger string, req Request, timeout time.Duration) (agent.State, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	t := task{
		req:     req,
		trigger: trigger,
		// Buffered so an abandoned worker can deliver without blocking forever
		result: make(chan agent.State, 1),
	}

	select {
	case p.tasks <- t:
	case <-p.closed:
		metrics.WorkflowRuns.WithLabelValues(trigger, "rejected").Inc()
		return agent.State{}, ErrClosed
	case <-timer.C:
		metrics.WorkflowRuns.WithLabelValues(trigger, "timeout").Inc()
		return agent.State{}, ErrTimeout
	case <-ctx.Done():
		metrics.WorkflowRuns.WithLabelValues(trigger, "cancelled").Inc()
		return agent.State{}, ctx.Err()
	}

	select {
	case state := <-t.result:
		metrics.WorkflowRuns.WithLabelValues(trigger, "completed").Inc()
		return state, nil
	case <-timer.C:
		metrics.WorkflowRuns.WithLabelValues(trigger, "timeout").Inc()
		return agent.State{}, ErrTimeout
	case <-ctx.Done():
		metrics.WorkflowRuns.WithLabelValues(trigger, "cancelled").Inc()
		return agent.State{}, ctx.Err()
	}
}

// Close stops accepting submissions and waits for in-flight runs to finish
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}
