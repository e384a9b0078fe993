package stream

import (
	"context"
	"time"
)

// Producer supplies the chunks of a source stage.
// Structurally compatible with an Iterator[Chunk] without Close.
type Producer interface {
	// Next returns the next chunk. Returns (zero, false, nil) at end of input.
	// A chunk returned with ok true and a non-nil error is delivered before
	// the stage fails.
	Next(ctx context.Context) (Chunk, bool, error)
}

// Emit delivers one output chunk downstream. It blocks while the downstream
// stage is paused and fails once the pipeline is torn down. An Emit is only
// valid for the duration of the Transform or Flush call it was passed to.
type Emit func(Chunk) error

// Transformer turns one input chunk into zero or more output chunks.
type Transformer interface {
	Transform(ctx context.Context, in Chunk, emit Emit) error
}

// Flusher is implemented by transformers holding stage-local state that
// must be emitted after the last input chunk.
type Flusher interface {
	Flush(ctx context.Context, emit Emit) error
}

// Consumer receives every chunk reaching a sink stage.
type Consumer interface {
	Consume(ctx context.Context, c Chunk) error
}

// Finisher is implemented by consumers that complete work once all input
// has been consumed (flush a writer, seal a digest).
type Finisher interface {
	Finish(ctx context.Context) error
}

// Producers, transformers and consumers may also implement io.Closer; the
// owning stage closes them once when its processing loop exits.

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (Chunk, bool, error)

func (f ProducerFunc) Next(ctx context.Context) (Chunk, bool, error) { return f(ctx) }

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, in Chunk, emit Emit) error

func (f TransformFunc) Transform(ctx context.Context, in Chunk, emit Emit) error {
	return f(ctx, in, emit)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, c Chunk) error

func (f ConsumerFunc) Consume(ctx context.Context, c Chunk) error { return f(ctx, c) }

// Observer receives flow-control events from a running pipeline.
type Observer interface {
	// OnChunk is called when stage accepts a chunk of the given weight.
	OnChunk(stage string, size int)
	// OnPause is called when stage is suspended by its downstream neighbour.
	OnPause(stage string)
	// OnResume is called when a suspended stage resumes.
	OnResume(stage string)
	// OnStageDone is called once per stage with outcome "ended" or "failed".
	OnStageDone(stage, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnChunk(string, int)                       {}
func (nopObserver) OnPause(string)                            {}
func (nopObserver) OnResume(string)                           {}
func (nopObserver) OnStageDone(string, string, time.Duration) {}
