package stream

import (
	"context"
	stderrors "errors"
	"iter"
	"slices"
	"sync"
)

// Iterator provides pull-based sequential access to a pipeline's output.
type Iterator interface {
	// Next returns the next chunk. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (Chunk, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

var errIteratorClosed = stderrors.New("iterator closed")

// ChunkIterator reads the output of a pipeline running in the background.
// Its sink hands every chunk over on an unbuffered channel, so a reader
// that stops pulling pauses the pipeline like any slow sink.
type ChunkIterator struct {
	p      *Pipeline
	ch     chan Chunk
	closed chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	res Result
	err error
}

var _ Iterator = (*ChunkIterator)(nil)

type iterSink struct {
	it *ChunkIterator
}

func (s iterSink) Consume(ctx context.Context, in Chunk) error {
	select {
	case s.it.ch <- in:
		return nil
	case <-s.it.closed:
		return errIteratorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Iter builds a pipeline from a source and optional transforms, ends it
// with a sink named "iter" and starts it. Cancelling ctx aborts the run;
// Close stops it early.
func Iter(ctx context.Context, stages []*Stage, opts ...Option) (*ChunkIterator, error) {
	it := &ChunkIterator{
		ch:     make(chan Chunk),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p, err := Build(append(slices.Clone(stages), NewSink("iter", iterSink{it: it})), opts...)
	if err != nil {
		return nil, err
	}
	it.p = p

	runCtx, cancel := context.WithCancel(ctx)
	it.cancel = cancel
	go func() {
		defer close(it.done)
		defer cancel()
		it.res, it.err = p.Run(runCtx)
	}()
	return it, nil
}

// Pipeline returns the running pipeline.
func (it *ChunkIterator) Pipeline() *Pipeline { return it.p }

// Next blocks until the next chunk reaches the sink. Once the run is over
// it returns (zero, false, err) with the run's error, or nil after Close.
func (it *ChunkIterator) Next(ctx context.Context) (Chunk, bool, error) {
	select {
	case c := <-it.ch:
		return c, true, nil
	case <-it.done:
		select {
		case <-it.closed:
			return Chunk{}, false, nil
		default:
			return Chunk{}, false, it.err
		}
	case <-ctx.Done():
		return Chunk{}, false, ctx.Err()
	}
}

// Close stops a run still in progress and waits for it to exit.
func (it *ChunkIterator) Close() error {
	it.once.Do(func() {
		close(it.closed)
		it.cancel()
	})
	<-it.done
	return nil
}

// Result waits for the run and returns its outcome.
func (it *ChunkIterator) Result() (Result, error) {
	<-it.done
	return it.res, it.err
}

// All returns the iterator as a range-over-func sequence. A failed run
// yields its error last. Leaving the loop closes the iterator.
func (it *ChunkIterator) All(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		defer it.Close()
		for {
			c, ok, err := it.Next(ctx)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if !ok || !yield(c, nil) {
				return
			}
		}
	}
}

// ForEach pulls every chunk from it and passes it to fn, then closes it.
func ForEach(ctx context.Context, it Iterator, fn func(context.Context, Chunk) error) error {
	defer it.Close()
	for {
		c, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
	}
}
