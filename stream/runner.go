package stream

import (
	"context"
	"sync"

	"github.com/kbukum/gostream/component"
	"github.com/kbukum/gostream/errors"
)

// Runner runs a pipeline in the background as a component.Component.
type Runner struct {
	p *Pipeline

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	result  Result
	err     error
}

var _ component.Component = (*Runner)(nil)

// NewRunner wraps p.
func NewRunner(p *Pipeline) *Runner {
	return &Runner{p: p, done: make(chan struct{})}
}

// Name returns the pipeline name.
func (r *Runner) Name() string { return r.p.Name() }

// Start launches the run and returns immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.InvalidState("", "start", "started")
	}
	r.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	go func() {
		defer close(r.done)
		defer cancel()
		res, err := r.p.Run(runCtx)
		r.mu.Lock()
		r.result, r.err = res, err
		r.mu.Unlock()
	}()
	return nil
}

// Stop cancels a run still in progress and waits for it, bounded by ctx.
// A cancelled run is not reported as a Stop error.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if _, err := r.Wait(ctx); err != nil && !errors.HasCode(err, errors.ErrCodeCancellationRequested) {
		return err
	}
	return nil
}

// Wait blocks until the run finishes and returns its outcome.
func (r *Runner) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Done is closed when the run finishes.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Health reports the pipeline as healthy while it flows or after it
// completed, and unhealthy once it failed.
func (r *Runner) Health(_ context.Context) component.Health {
	h := component.Health{Name: r.Name(), Status: component.StatusHealthy}

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		h.Status = component.StatusDegraded
		h.Message = "not started"
		return h
	}

	details := make(map[string]any, len(r.p.stages))
	for _, s := range r.p.stages {
		details[s.name] = s.State().String()
	}
	h.Details = details

	if err := r.p.Err(); err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = err.Error()
		return h
	}
	select {
	case <-r.done:
		h.Message = "completed"
	default:
		h.Message = "flowing"
	}
	return h
}
