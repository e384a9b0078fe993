package stream

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gostream/errors"
)

func startStage(t *testing.T, s *Stage) *sync.WaitGroup {
	t.Helper()
	var wg sync.WaitGroup
	require.NoError(t, s.start(context.Background(), &wg))
	return &wg
}

func TestStageDefaults(t *testing.T) {
	s := NewTransform("", PassThrough())
	assert.Equal(t, "transform", s.Name())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, RoleTransform, s.Role())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, DefaultConfig(), s.Config())

	s = NewSink("out", Discard(), WithID("sink-1"), WithBufferConfig(Config{HighWaterMark: 8}))
	assert.Equal(t, "sink-1", s.ID())
	assert.Equal(t, 8, s.Config().HighWaterMark)
	assert.Equal(t, 4, s.Config().LowWaterMark)
}

func TestStageAcceptBeforeStart(t *testing.T) {
	s := NewSink("sink", Discard())
	_, err := s.Accept(Text("a"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	assert.Equal(t, "sink", errors.StageOf(err))
}

func TestStageAcceptOnSource(t *testing.T) {
	s := NewSource("src", FromStrings("a"))
	_, err := s.Accept(Text("a"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
}

func TestStageFinishTwice(t *testing.T) {
	out := Collect()
	s := NewSink("sink", out)
	wg := startStage(t, s)

	_, err := s.Accept(Text("a"))
	require.NoError(t, err)
	require.NoError(t, s.Finish())

	err = s.Finish()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))

	wg.Wait()
	assert.Equal(t, StateEnded, s.State())
	assert.Equal(t, "a", out.String())

	_, err = s.Accept(Text("b"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState), "accept after ended")
	assert.True(t, errors.HasCode(s.Finish(), errors.ErrCodeInvalidState), "finish after ended")
	assert.False(t, s.Fail(stderrors.New("late")), "fail after ended")
}

func TestStageAcceptAfterFinish(t *testing.T) {
	block := make(chan struct{})
	s := NewSink("sink", ConsumerFunc(func(context.Context, Chunk) error {
		<-block
		return nil
	}))
	wg := startStage(t, s)

	_, err := s.Accept(Text("a"))
	require.NoError(t, err)
	require.NoError(t, s.Finish())
	_, err = s.Accept(Text("b"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))

	close(block)
	wg.Wait()
}

func TestStageAcceptAfterFailed(t *testing.T) {
	s := NewSink("sink", Discard())
	wg := startStage(t, s)

	cause := stderrors.New("disk full")
	require.True(t, s.Fail(cause))
	assert.False(t, s.Fail(stderrors.New("second")), "fail is reported once")
	wg.Wait()

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, cause, s.Err())
	_, err := s.Accept(Text("a"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed after failure")
	}
}

func TestStageBackpressureSignal(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	s := NewSink("sink", ConsumerFunc(func(context.Context, Chunk) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}), WithBufferConfig(Config{HighWaterMark: 2}))
	wg := startStage(t, s)

	paused, err := s.Accept(Text("a"))
	require.NoError(t, err)
	assert.False(t, paused)
	<-started

	paused, err = s.Accept(Text("bb"))
	require.NoError(t, err)
	assert.True(t, paused)
	assert.True(t, s.Paused())

	drained := make(chan error, 1)
	go func() { drained <- s.WaitDrained(context.Background()) }()

	close(release)
	require.NoError(t, <-drained)
	assert.False(t, s.Paused())

	require.NoError(t, s.Finish())
	wg.Wait()
}

func TestStageFailWakesWaitingProducer(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	s := NewSink("sink", ConsumerFunc(func(context.Context, Chunk) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}), WithBufferConfig(Config{HighWaterMark: 1}))
	wg := startStage(t, s)

	_, err := s.Accept(Text("a"))
	require.NoError(t, err)
	<-started
	paused, err := s.Accept(Text("b"))
	require.NoError(t, err)
	require.True(t, paused)

	drained := make(chan error, 1)
	go func() { drained <- s.WaitDrained(context.Background()) }()

	require.True(t, s.Fail(stderrors.New("boom")))
	err = <-drained
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePipelineAborted))

	close(block)
	wg.Wait()
}

func TestStageWaitDrainedContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	var once sync.Once
	started := make(chan struct{})
	s := NewSink("sink", ConsumerFunc(func(context.Context, Chunk) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}), WithBufferConfig(Config{HighWaterMark: 1}))
	startStage(t, s)

	s.Accept(Text("a"))
	<-started
	s.Accept(Text("b"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitDrained(ctx), context.DeadlineExceeded)
}

func TestStageCapacityExceeded(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	var once sync.Once
	started := make(chan struct{})
	s := NewSink("sink", ConsumerFunc(func(context.Context, Chunk) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}), WithBufferConfig(Config{HighWaterMark: 1, HardCap: 2}))
	startStage(t, s)

	s.Accept(Text("a"))
	<-started
	_, err := s.Accept(Text("b"))
	require.NoError(t, err)
	_, err = s.Accept(Text("c"))
	require.NoError(t, err)

	_, err = s.Accept(Text("d"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCapacityExceeded))
	assert.Equal(t, "sink", errors.StageOf(err))
}

func TestStageCountsTraffic(t *testing.T) {
	s := NewSink("sink", Discard())
	wg := startStage(t, s)
	s.Accept(Text("abc"))
	s.Accept(Text("de"))
	require.NoError(t, s.Finish())
	wg.Wait()

	st := s.Stats()
	assert.Equal(t, int64(2), st.ChunksIn)
	assert.Equal(t, int64(5), st.BytesIn)
	assert.Zero(t, st.ChunksOut)
}

type closingConsumer struct {
	closed int
}

func (c *closingConsumer) Consume(context.Context, Chunk) error { return nil }
func (c *closingConsumer) Close() error {
	c.closed++
	return nil
}

func TestStageClosesUserObjectOnce(t *testing.T) {
	c := &closingConsumer{}
	s := NewSink("sink", c)
	wg := startStage(t, s)
	require.NoError(t, s.Finish())
	wg.Wait()
	assert.Equal(t, 1, c.closed)
}

func TestStageWrap(t *testing.T) {
	s := NewTransform("mid", PassThrough())

	plain := stderrors.New("bad input")
	err := s.wrap(plain)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStageProcessing))
	assert.Equal(t, "mid", errors.StageOf(err))
	assert.ErrorIs(t, err, plain)

	aborted := errors.PipelineAborted("mid", "sink")
	assert.Equal(t, error(aborted), s.wrap(aborted))

	user := errors.InvalidInput("payload", "not json")
	err = s.wrap(user)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStageProcessing))
}

func TestStageGuardRecoversPanic(t *testing.T) {
	s := NewTransform("mid", PassThrough())
	err := s.guard(func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
