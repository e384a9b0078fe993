package stream

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/logger"
	"github.com/kbukum/gostream/observability"
)

// StageResult reports one stage's outcome after a run.
type StageResult struct {
	ID    string
	Name  string
	Role  Role
	State State
	Stats Stats
}

// Result summarizes a run. Chunks and Bytes count what reached the sink.
type Result struct {
	RunID    string
	Chunks   int64
	Bytes    int64
	Duration time.Duration
	Stages   []StageResult
}

// DefaultName names a pipeline built without WithName.
const DefaultName = "pipeline"

// Option configures a Pipeline.
type Option func(*Pipeline)

// NameOf returns the name a pipeline built with opts would carry.
func NameOf(opts ...Option) string {
	p := &Pipeline{name: DefaultName}
	for _, opt := range opts {
		opt(p)
	}
	return p.name
}

// WithName sets the pipeline name used in logs and spans.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithObserver registers an observer for flow-control events.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithTeardownHook receives errors discarded while tearing a failed
// pipeline down, after the first error has been recorded.
func WithTeardownHook(fn func(stage string, err error)) Option {
	return func(p *Pipeline) { p.teardown = fn }
}

// Pipeline is an ordered chain of stages: one source, any number of
// transforms and one sink. It relays chunks between neighbours, applies
// backpressure and tears every stage down on the first failure.
type Pipeline struct {
	name     string
	stages   []*Stage
	index    map[*Stage]int
	observer Observer
	teardown func(stage string, err error)

	mu        sync.Mutex
	log       *logger.Logger
	ran       bool
	completed bool
	runID     string
	firstErr  error
	cancel    context.CancelFunc
}

// Build validates the stage order and wires neighbours together. Stages
// are owned by the returned pipeline and cannot join another one.
func Build(stages []*Stage, opts ...Option) (*Pipeline, error) {
	if err := validateTopology(stages); err != nil {
		return nil, err
	}
	for _, s := range stages {
		if err := s.cfg.Validate(); err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				return nil, appErr.WithStage(s.name)
			}
			return nil, err
		}
	}

	claimed := make([]*Stage, 0, len(stages))
	for _, s := range stages {
		if !s.owned.CompareAndSwap(false, true) {
			for _, c := range claimed {
				c.owned.Store(false)
			}
			return nil, errors.InvalidTopology(fmt.Sprintf("stage %q already belongs to a pipeline", s.name))
		}
		claimed = append(claimed, s)
	}

	p := &Pipeline{
		name:     DefaultName,
		stages:   slices.Clone(stages),
		index:    make(map[*Stage]int, len(stages)),
		observer: nopObserver{},
		log:      logger.Get("stream"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wire()
	return p, nil
}

func validateTopology(stages []*Stage) error {
	if len(stages) < 2 {
		return errors.InvalidTopology("a pipeline needs at least a source and a sink")
	}
	seen := make(map[*Stage]bool, len(stages))
	last := len(stages) - 1
	for i, s := range stages {
		if s == nil {
			return errors.InvalidTopology(fmt.Sprintf("stage %d is nil", i))
		}
		if seen[s] {
			return errors.InvalidTopology(fmt.Sprintf("stage %q appears more than once", s.name))
		}
		seen[s] = true

		want := RoleTransform
		switch i {
		case 0:
			want = RoleSource
		case last:
			want = RoleSink
		}
		if s.role != want {
			return errors.InvalidTopology(fmt.Sprintf("stage %d (%s) is a %s, expected a %s", i, s.name, s.role, want)).
				WithStage(s.name)
		}
		if s.userObject() == nil || isNilFunc(s) {
			return errors.InvalidTopology(fmt.Sprintf("stage %q has no processing function", s.name)).WithStage(s.name)
		}
		if st := s.State(); st != StateIdle {
			return errors.InvalidTopology(fmt.Sprintf("stage %q is %s, expected idle", s.name, st)).WithStage(s.name)
		}
	}
	return nil
}

func isNilFunc(s *Stage) bool {
	switch f := s.userObject().(type) {
	case ProducerFunc:
		return f == nil
	case TransformFunc:
		return f == nil
	case ConsumerFunc:
		return f == nil
	}
	return false
}

func (p *Pipeline) wire() {
	for i, s := range p.stages {
		p.index[s] = i
		w := wiring{onEnd: p.stageEnded, onFail: p.stageFailed, onDiscard: p.discard}
		if i+1 < len(p.stages) {
			from, to := s, p.stages[i+1]
			w.emit = func(ctx context.Context, c Chunk) error { return p.deliver(ctx, from, to, c) }
		}
		s.mu.Lock()
		s.w = w
		s.mu.Unlock()
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Stages returns the stages in order.
func (p *Pipeline) Stages() []*Stage { return slices.Clone(p.stages) }

// Source returns the first stage.
func (p *Pipeline) Source() *Stage { return p.stages[0] }

// Sink returns the last stage.
func (p *Pipeline) Sink() *Stage { return p.stages[len(p.stages)-1] }

// RunID returns the ID of the current or last run.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Err returns the first error recorded, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

func (p *Pipeline) logger() *logger.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log
}

// Run starts every stage sink first and blocks until the pipeline
// completes or fails. Cancelling ctx aborts the run with
// CANCELLATION_REQUESTED. A pipeline runs at most once.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return Result{}, errors.InvalidState("", "run", "already run")
	}
	p.ran = true
	if err := p.firstErr; err != nil {
		p.mu.Unlock()
		return Result{}, err
	}
	p.runID = uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	runCtx = logger.ContextWithRunID(logger.ContextWithPipeline(runCtx, p.name), p.runID)
	p.log = p.log.WithContext(runCtx)
	log := p.log
	p.mu.Unlock()
	defer cancel()

	runCtx, span := observability.StartSpan(runCtx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(runCtx, observability.AttrPipeline, p.name)
	observability.SetSpanAttribute(runCtx, observability.AttrRunID, p.runID)
	observability.SetSpanAttribute(runCtx, observability.AttrStages, len(p.stages))

	start := time.Now()
	log.Debug("pipeline run started", logger.Fields("stages", len(p.stages)))

	var wg sync.WaitGroup
	for i := len(p.stages) - 1; i >= 0; i-- {
		if err := p.stages[i].start(runCtx, &wg); err != nil {
			p.abort(p.stages[i], err)
			break
		}
	}

	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		p.watch(ctx, stop)
	}()
	wg.Wait()
	p.mu.Lock()
	p.completed = true
	p.mu.Unlock()
	close(stop)
	<-watched

	sink := p.Sink().Stats()
	res := Result{
		RunID:    p.runID,
		Chunks:   sink.ChunksIn,
		Bytes:    sink.BytesIn,
		Duration: time.Since(start),
		Stages:   p.results(),
	}
	observability.SetSpanAttribute(runCtx, observability.AttrChunks, res.Chunks)
	observability.SetSpanAttribute(runCtx, observability.AttrBytes, res.Bytes)

	if err := p.Err(); err != nil {
		observability.SetSpanError(runCtx, err)
		log.Warn("pipeline run failed", logger.MergeWithError(logger.Fields(
			logger.FieldStage, errors.StageOf(err),
			logger.FieldCode, string(errors.Code(err)),
			logger.FieldDuration, res.Duration.String(),
		), err))
		return res, err
	}
	log.Info("pipeline run completed", logger.Fields(
		logger.FieldChunks, res.Chunks,
		logger.FieldBytes, res.Bytes,
		logger.FieldDuration, res.Duration.String(),
	))
	return res, nil
}

// watch turns cancellation of the caller's context into a source failure.
func (p *Pipeline) watch(ctx context.Context, stop <-chan struct{}) {
	select {
	case <-ctx.Done():
		src := p.Source()
		err := errors.CancellationRequested(src.name, context.Cause(ctx))
		if !src.Fail(err) {
			// Source already ended; downstream stages are still draining.
			p.abort(src, err)
		}
	case <-stop:
	}
}

func (p *Pipeline) results() []StageResult {
	out := make([]StageResult, len(p.stages))
	for i, s := range p.stages {
		out[i] = StageResult{ID: s.id, Name: s.name, Role: s.role, State: s.State(), Stats: s.Stats()}
	}
	return out
}

// deliver hands c from one stage to its downstream neighbour and suspends
// the sender while the receiver signals backpressure.
func (p *Pipeline) deliver(ctx context.Context, from, to *Stage, c Chunk) error {
	paused, err := to.Accept(c)
	if err != nil {
		return err
	}
	p.observer.OnChunk(to.name, c.Size())
	if !paused {
		return nil
	}

	from.stats.pauses.Add(1)
	p.observer.OnPause(from.name)
	if err := to.WaitDrained(ctx); err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Stage == "" {
			appErr.Stage = from.name
		}
		return err
	}
	from.stats.resumes.Add(1)
	p.observer.OnResume(from.name)
	return nil
}

func (p *Pipeline) stageEnded(s *Stage, elapsed time.Duration) {
	p.observer.OnStageDone(s.name, StateEnded.String(), elapsed)
	p.logger().Debug("stage ended", logger.Fields(
		logger.FieldStage, s.name,
		logger.FieldRole, s.role.String(),
		logger.FieldDuration, elapsed.String(),
	))

	i := p.index[s]
	if i+1 >= len(p.stages) {
		return
	}
	next := p.stages[i+1]
	if err := next.Finish(); err != nil {
		p.discard(next, err)
	}
}

// stageFailed runs with s.mu held; it must not call back into s.
func (p *Pipeline) stageFailed(s *Stage, err error, elapsed time.Duration) {
	p.observer.OnStageDone(s.name, StateFailed.String(), elapsed)
	p.abort(s, err)
}

// abort records err as the run's outcome if it is the first failure and
// tears down every other stage. Later failures are discarded.
func (p *Pipeline) abort(origin *Stage, err error) {
	p.mu.Lock()
	if p.firstErr != nil || p.completed {
		p.mu.Unlock()
		p.discard(origin, err)
		return
	}
	p.firstErr = err
	cancel := p.cancel
	log := p.log
	p.mu.Unlock()

	log.Warn("stage failed, aborting pipeline", logger.MergeWithError(logger.Fields(
		logger.FieldStage, origin.name,
		logger.FieldRole, origin.role.String(),
		logger.FieldCode, string(errors.Code(err)),
	), err))
	if cancel != nil {
		cancel()
	}
	for _, other := range p.stages {
		if other != origin {
			other.Fail(errors.PipelineAborted(other.name, origin.name).WithCause(err))
		}
	}
}

func (p *Pipeline) discard(s *Stage, err error) {
	p.logger().Debug("teardown error discarded", logger.MergeWithError(logger.Fields(
		logger.FieldStage, s.name,
		logger.FieldCode, string(errors.Code(err)),
	), err))
	if p.teardown != nil {
		p.teardown(s.name, err)
	}
}
