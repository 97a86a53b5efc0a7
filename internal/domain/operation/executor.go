package operation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
)

// ErrNotFound is the error text of a result for an unknown operation id
const ErrNotFound = "operation_not_found"

// TimeoutKey overrides the executor timeout for one call, in milliseconds
const TimeoutKey = "timeoutMs"

// DefaultTimeout applies when the executor is built without one
const DefaultTimeout = 15 * time.Second

// Request is one operation call
type Request struct {
	ContainerID string         `json:"containerId"`
	OperationID string         `json:"operationId"`
	Config      map[string]any `json:"config,omitempty"`
	Elements    []Element      `json:"elements,omitempty"`
	// Page overrides the executor's page for this call
	Page Page `json:"-"`
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	SessionID        id.SessionID
	Page             Page
	Timeout          time.Duration
	BatchConcurrency int
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// Executor runs operations from a registry with a per-call timeout and
// turns every failure into a Result. It never retries.
type Executor struct {
	registry    *Registry
	sessionID   id.SessionID
	page        Page
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
	metrics     *monitoring.Metrics
}

// NewExecutor creates an executor bound to one session's page
func NewExecutor(registry *Registry, opts ExecutorOptions) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	return &Executor{
		registry:    registry,
		sessionID:   opts.SessionID,
		page:        opts.Page,
		timeout:     opts.Timeout,
		concurrency: opts.BatchConcurrency,
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Registry returns the operations the executor resolves ids against
func (e *Executor) Registry() *Registry {
	return e.registry
}

// CreateContext builds a fresh execution context. A nil page falls back to
// the executor's page.
func (e *Executor) CreateContext(containerID string, elements []Element, page Page) *Context {
	if page == nil {
		page = e.page
	}
	c := &Context{
		SessionID:   e.sessionID,
		ContainerID: containerID,
		Elements:    elements,
		Page:        page,
	}
	if page != nil {
		c.Input = SystemInput{
			MouseMove:  page.MouseMove,
			MouseClick: page.ClickAt,
		}
	}
	return c
}

type outcome struct {
	value any
	err   error
}

// Execute runs one operation. It never panics and never returns an error;
// unknown ids, failures, panics and timeouts all become failed results.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()

	op, ok := e.registry.Get(req.OperationID)
	if !ok {
		e.logger.Warn("Unknown operation",
			zap.String("operation", req.OperationID),
			zap.String("container", req.ContainerID))
		e.metrics.RecordOperation(req.OperationID, false, time.Since(start))
		return Failure(ErrNotFound)
	}

	timeout := e.timeout
	if ms, ok := GetFloat(req.Config, TimeoutKey); ok && ms > 0 {
		timeout = time.Duration(ms * float64(time.Millisecond))
	}

	if ctx.Err() != nil {
		return Failure(interrupted(ctx, timeout))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opCtx := e.CreateContext(req.ContainerID, req.Elements, req.Page)
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op.Run(runCtx, opCtx, req.Config)
		done <- outcome{value: v, err: err}
	}()

	var res Result
	select {
	case o := <-done:
		switch {
		case o.err == nil:
			res = Result{Success: true, Result: o.value}
		case runCtx.Err() != nil:
			res = Failure(interrupted(ctx, timeout))
		default:
			res = Failure(o.err.Error())
		}
	case <-runCtx.Done():
		// the call is abandoned; its side effect may still happen
		res = Failure(interrupted(ctx, timeout))
	}

	elapsed := time.Since(start)
	res.DurationMs = elapsed.Milliseconds()
	e.metrics.RecordOperation(op.ID(), res.Success, elapsed)

	if !res.Success {
		e.logger.Warn("Operation failed",
			zap.String("operation", op.ID()),
			zap.String("container", req.ContainerID),
			zap.String("session", e.sessionID.String()),
			zap.String("error", res.Error),
			zap.Duration("duration", elapsed))
	} else {
		e.logger.Debug("Operation executed",
			zap.String("operation", op.ID()),
			zap.String("container", req.ContainerID),
			zap.Duration("duration", elapsed))
	}
	return res
}

func interrupted(ctx context.Context, timeout time.Duration) string {
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("operation cancelled: %v", err)
	}
	return fmt.Sprintf("operation timed out after %s", timeout)
}

// ExecuteBatch runs reqs independently and returns one result per request
// in input order. A failed item does not affect the others.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = e.Execute(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
