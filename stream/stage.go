package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/gostream/errors"
)

// Stats counts a stage's traffic.
type Stats struct {
	ChunksIn  int64
	BytesIn   int64
	ChunksOut int64
	BytesOut  int64
	// Pauses counts how often this stage was suspended by its downstream neighbour.
	Pauses  int64
	Resumes int64
}

type counters struct {
	chunksIn, bytesIn   atomic.Int64
	chunksOut, bytesOut atomic.Int64
	pauses, resumes     atomic.Int64
}

// wiring is installed by the coordinator. A stage never references its
// pipeline or neighbours directly.
type wiring struct {
	emit      func(ctx context.Context, c Chunk) error
	onEnd     func(s *Stage, elapsed time.Duration)
	onFail    func(s *Stage, err error, elapsed time.Duration)
	onDiscard func(s *Stage, err error)
}

// Stage is one processing unit of a pipeline: a source, a transform or a
// sink. Its processing loop is the only consumer of its buffer, so chunks
// are processed strictly one at a time and in arrival order.
type Stage struct {
	id   string
	name string
	role Role
	cfg  Config

	producer    Producer
	transformer Transformer
	consumer    Consumer

	owned     atomic.Bool
	seq       atomic.Uint64
	stats     counters
	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	state     State
	finishing bool
	err       error
	buf       *Buffer
	paused    bool
	resume    chan struct{}
	wake      chan struct{}
	done      chan struct{}
	w         wiring
	startedAt time.Time
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithID overrides the generated stage ID.
func WithID(id string) StageOption {
	return func(s *Stage) { s.id = id }
}

// WithBufferConfig sets the stage's buffer thresholds.
func WithBufferConfig(cfg Config) StageOption {
	return func(s *Stage) { s.cfg = cfg }
}

// NewSource creates a source stage driven by p.
func NewSource(name string, p Producer, opts ...StageOption) *Stage {
	s := newStage(name, RoleSource, opts)
	s.producer = p
	return s
}

// NewTransform creates a transform stage applying t to every chunk.
func NewTransform(name string, t Transformer, opts ...StageOption) *Stage {
	s := newStage(name, RoleTransform, opts)
	s.transformer = t
	return s
}

// NewSink creates a sink stage handing every chunk to c.
func NewSink(name string, c Consumer, opts ...StageOption) *Stage {
	s := newStage(name, RoleSink, opts)
	s.consumer = c
	return s
}

func newStage(name string, role Role, opts []StageOption) *Stage {
	s := &Stage{
		id:   uuid.NewString(),
		name: name,
		role: role,
		cfg:  DefaultConfig(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.name == "" {
		s.name = role.String()
	}
	s.cfg.ApplyDefaults()
	s.buf = NewBuffer(s.cfg)
	return s
}

// ID returns the stage's unique identity.
func (s *Stage) ID() string { return s.id }

// Name returns the stage's display name.
func (s *Stage) Name() string { return s.name }

// Role returns the stage's role.
func (s *Stage) Role() Role { return s.role }

// Config returns the stage's buffer thresholds.
func (s *Stage) Config() Config { return s.cfg }

// State returns the current lifecycle state.
func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error the stage failed with, or nil.
func (s *Stage) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the stage reaches ended or failed.
func (s *Stage) Done() <-chan struct{} { return s.done }

// Paused reports whether the stage currently asks its producer to pause.
func (s *Stage) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stats returns a snapshot of the stage's counters.
func (s *Stage) Stats() Stats {
	return Stats{
		ChunksIn:  s.stats.chunksIn.Load(),
		BytesIn:   s.stats.bytesIn.Load(),
		ChunksOut: s.stats.chunksOut.Load(),
		BytesOut:  s.stats.bytesOut.Load(),
		Pauses:    s.stats.pauses.Load(),
		Resumes:   s.stats.resumes.Load(),
	}
}

// Accept enqueues c and returns the backpressure signal: true means the
// caller should pause until WaitDrained returns. Valid only while flowing
// and before Finish.
func (s *Stage) Accept(c Chunk) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role == RoleSource {
		return false, errors.InvalidState(s.name, "accept", "source")
	}
	if s.state != StateFlowing || s.finishing {
		return false, errors.InvalidState(s.name, "accept", s.label())
	}
	full, err := s.buf.Push(c)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			appErr.Stage = s.name
		}
		return true, err
	}
	s.stats.chunksIn.Add(1)
	s.stats.bytesIn.Add(int64(c.Size()))
	s.signal()

	if full && !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
	return s.paused, nil
}

// WaitDrained blocks until the stage no longer asks its producer to pause.
// It fails once the stage has failed or ctx is done.
func (s *Stage) WaitDrained(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateFailed {
		s.mu.Unlock()
		return errors.PipelineAborted("", s.name)
	}
	if !s.paused {
		s.mu.Unlock()
		return nil
	}
	ch := s.resume
	s.mu.Unlock()

	select {
	case <-ch:
		if s.State() == StateFailed {
			return errors.PipelineAborted("", s.name)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish marks the end of input. A transform or sink drains its buffer and
// runs its flush logic before ending; a source stops producing and ends.
// Calling Finish twice, or outside flowing, is rejected with INVALID_STATE.
func (s *Stage) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFlowing || s.finishing {
		return errors.InvalidState(s.name, "finish", s.label())
	}
	s.finishing = true
	s.signal()
	return nil
}

// Fail moves the stage to failed, discards its buffer and wakes any
// producer waiting on it. It returns false if the stage was already
// terminal; the pipeline is notified exactly once.
func (s *Stage) Fail(err error) bool {
	if err == nil {
		err = errors.Internal(fmt.Errorf("stage %s failed without an error", s.name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return false
	}
	var elapsed time.Duration
	if !s.startedAt.IsZero() {
		elapsed = time.Since(s.startedAt)
	}
	s.state = StateFailed
	s.err = err
	s.buf.Reset()

	// The pipeline records the failure before any waiting producer wakes,
	// so a woken producer can never report its own error first.
	if s.w.onFail != nil {
		s.w.onFail(s, err, elapsed)
	}
	if s.paused {
		close(s.resume)
		s.resume = nil
		s.paused = false
	}
	close(s.done)
	return true
}

func (s *Stage) label() string {
	if s.state == StateFlowing && s.finishing {
		return "finishing"
	}
	return s.state.String()
}

func (s *Stage) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stage) start(ctx context.Context, wg *sync.WaitGroup) error {
	s.mu.Lock()
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		return errors.InvalidState(s.name, "start", st.String())
	}
	s.state = StateFlowing
	s.startedAt = time.Now()
	s.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.closeQuietly()
		if s.role == RoleSource {
			s.runSource(ctx)
			return
		}
		s.runConsumer(ctx)
	}()
	return nil
}

func (s *Stage) runSource(ctx context.Context) {
	for {
		s.mu.Lock()
		flowing, stop := s.state == StateFlowing, s.finishing
		s.mu.Unlock()
		if !flowing {
			return
		}
		if stop {
			s.complete(nil)
			return
		}

		var (
			c  Chunk
			ok bool
		)
		err := s.guard(func() error {
			var err error
			c, ok, err = s.producer.Next(ctx)
			return err
		})
		if ok {
			if emitErr := s.emit(ctx, c); emitErr != nil {
				s.Fail(s.wrap(emitErr))
				return
			}
		}
		if err != nil {
			s.Fail(s.wrap(err))
			return
		}
		if !ok {
			s.complete(nil)
			return
		}
	}
}

func (s *Stage) runConsumer(ctx context.Context) {
	for {
		c, ok, alive := s.next()
		if !alive {
			return
		}
		if !ok {
			s.complete(s.finalizer(ctx))
			return
		}
		err := s.guard(func() error {
			if s.role == RoleSink {
				return s.consumer.Consume(ctx, c)
			}
			return s.transformer.Transform(ctx, c, s.emitter(ctx))
		})
		if err != nil {
			s.Fail(s.wrap(err))
			return
		}
	}
}

// next blocks until a chunk is available (ok), input is finished and
// drained (!ok), or the stage left flowing (!alive).
func (s *Stage) next() (c Chunk, ok, alive bool) {
	for {
		s.mu.Lock()
		if s.state != StateFlowing {
			s.mu.Unlock()
			return Chunk{}, false, false
		}
		if c, ok := s.buf.Pop(); ok {
			if s.paused && s.buf.IsDrained() {
				close(s.resume)
				s.resume = nil
				s.paused = false
			}
			s.mu.Unlock()
			return c, true, true
		}
		if s.finishing {
			s.mu.Unlock()
			return Chunk{}, false, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.done:
		}
	}
}

func (s *Stage) finalizer(ctx context.Context) func() error {
	switch s.role {
	case RoleTransform:
		if f, ok := s.transformer.(Flusher); ok {
			return func() error { return f.Flush(ctx, s.emitter(ctx)) }
		}
	case RoleSink:
		if f, ok := s.consumer.(Finisher); ok {
			return func() error { return f.Finish(ctx) }
		}
	}
	return nil
}

// complete runs the stage's flush logic, closes its user object and ends it.
func (s *Stage) complete(finalize func() error) {
	if finalize != nil {
		if err := s.guard(finalize); err != nil {
			s.Fail(s.wrap(err))
			return
		}
	}
	if err := s.close(); err != nil {
		s.Fail(s.wrap(err))
		return
	}

	s.mu.Lock()
	if s.state != StateFlowing {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	elapsed := time.Since(s.startedAt)
	close(s.done)
	onEnd := s.w.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd(s, elapsed)
	}
}

func (s *Stage) emitter(ctx context.Context) Emit {
	return func(c Chunk) error { return s.emit(ctx, c) }
}

func (s *Stage) emit(ctx context.Context, c Chunk) error {
	if s.role == RoleSink {
		return errors.InvalidState(s.name, "emit", "sink")
	}
	if st := s.State(); st != StateFlowing {
		return errors.InvalidState(s.name, "emit", st.String())
	}
	c.Seq = s.seq.Add(1)
	s.stats.chunksOut.Add(1)
	s.stats.bytesOut.Add(int64(c.Size()))
	if s.w.emit == nil {
		return nil
	}
	return s.w.emit(ctx, c)
}

// guard runs fn, converting a panic into an error.
func (s *Stage) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// wrap tags a user failure as STAGE_PROCESSING_ERROR. Flow-control errors
// produced by the pipeline itself pass through unchanged.
func (s *Stage) wrap(err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Code {
		case errors.ErrCodeInvalidState, errors.ErrCodePipelineAborted, errors.ErrCodeCapacityExceeded,
			errors.ErrCodeCancellationRequested, errors.ErrCodeStageProcessing:
			return err
		}
	}
	return errors.StageProcessing(s.name, err)
}

func (s *Stage) userObject() any {
	switch s.role {
	case RoleSource:
		return s.producer
	case RoleTransform:
		return s.transformer
	default:
		return s.consumer
	}
}

func (s *Stage) close() error {
	_, err := s.closeUser()
	return err
}

// closeUser closes the user object at most once; closed reports whether
// this call did the closing.
func (s *Stage) closeUser() (closed bool, err error) {
	s.closeOnce.Do(func() {
		closed = true
		if c, ok := s.userObject().(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return closed, s.closeErr
}

// closeQuietly releases the user object after a failure. Its error can no
// longer change the outcome, so it goes to the teardown hook.
func (s *Stage) closeQuietly() {
	if closed, err := s.closeUser(); closed && err != nil && s.w.onDiscard != nil {
		s.w.onDiscard(s, err)
	}
}
