package stream

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/gostream/errors"
	"github.com/kbukum/gostream/logger"
)

func iterate(t *testing.T, stages ...*Stage) *ChunkIterator {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	it, err := Iter(ctx, stages, WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = it.Close() })
	return it
}

func TestIterNext(t *testing.T) {
	it := iterate(t,
		NewSource("src", FromStrings("a", "", "b")),
		NewTransform("upper", Uppercase()),
	)
	ctx := context.Background()

	var got []string
	for {
		c, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, c.String())
	}
	assert.Equal(t, []string{"A", "", "B"}, got)

	res, err := it.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Chunks)
	assert.Equal(t, res.RunID, it.Pipeline().RunID())
}

func TestIterAll(t *testing.T) {
	it := iterate(t, NewSource("src", FromValues(1, 2, 3)))

	var got []any
	for c, err := range it.All(context.Background()) {
		require.NoError(t, err)
		got = append(got, c.Value)
	}
	assert.Equal(t, []any{1, 2, 3}, got)
}

func TestIterAllYieldsRunError(t *testing.T) {
	boom := stderrors.New("boom")
	it := iterate(t,
		NewSource("src", FromStrings("a", "b")),
		NewTransform("mid", TransformFunc(func(_ context.Context, in Chunk, emit Emit) error {
			if in.String() == "b" {
				return boom
			}
			return emit(in)
		})),
	)

	var last error
	for _, err := range it.All(context.Background()) {
		last = err
	}
	require.Error(t, last)
	assert.ErrorIs(t, last, boom)
	assert.Equal(t, "mid", errors.StageOf(last))
}

func TestIterBreakStopsRun(t *testing.T) {
	src := NewSource("src", Generate(func(i int) (Chunk, bool) { return Object(i), true }))
	it := iterate(t, src)

	n := 0
	for _, err := range it.All(context.Background()) {
		require.NoError(t, err)
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("source still running after the loop was left")
	}
	c, ok, err := it.Next(context.Background())
	assert.NoError(t, err, "a closed iterator reports no error")
	assert.False(t, ok)
	assert.Equal(t, Chunk{}, c)
}

func TestIterPausesSlowReader(t *testing.T) {
	var produced atomic.Int64
	chunk := bytes.Repeat([]byte("x"), 1024)
	src := NewSource("src", Generate(func(int) (Chunk, bool) {
		produced.Add(1)
		return Bytes(chunk), true
	}))
	it := iterate(t, src)
	sink := it.Pipeline().Sink()

	require.Eventually(t, sink.Paused, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	// 16 chunks fill the sink buffer and one more waits for the reader.
	hwmChunks := int64(DefaultHighWaterMark / len(chunk))
	assert.LessOrEqual(t, produced.Load(), hwmChunks+2)
	assert.LessOrEqual(t, src.Stats().ChunksOut, hwmChunks+1)

	c, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(chunk), c.Size())
	require.NoError(t, it.Close())
}

func TestIterNextHonoursContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	it := iterate(t, NewSource("src", FromFunc(func(ctx context.Context) (Chunk, bool, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return Chunk{}, false, ctx.Err()
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := it.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIterRejectsSink(t *testing.T) {
	_, err := Iter(context.Background(), []*Stage{
		NewSource("src", FromStrings("a")),
		NewSink("sink", Discard()),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTopology, errors.Code(err))
}

func TestForEach(t *testing.T) {
	it := iterate(t, NewSource("src", FromStrings("a", "b", "c")))

	var got []string
	err := ForEach(context.Background(), it, func(_ context.Context, c Chunk) error {
		got = append(got, c.String())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestForEachStopsOnError(t *testing.T) {
	it := iterate(t, NewSource("src", FromStrings("a", "b", "c")))

	stop := stderrors.New("stop")
	calls := 0
	err := ForEach(context.Background(), it, func(context.Context, Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
