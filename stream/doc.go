// Package stream provides a backpressure-aware chunked data pipeline.
//
// A Pipeline is an ordered list of Stages: exactly one source, zero or more
// transforms, and exactly one sink. Every stage runs its own processing
// loop and owns a bounded Buffer of accepted-but-unprocessed chunks. When a
// stage's buffer reaches its high-water mark, Accept reports "pause" and
// the coordinator suspends the upstream stage until the buffer drains to
// its low-water mark. A slow sink therefore transitively suspends the
// source without dropping, reordering or duplicating chunks.
//
// Completion flows downstream behind the data: a stage finishes only after
// its buffer is empty and its flush logic has run. The first failure at any
// stage tears down every other stage and becomes the run's only outcome;
// later teardown errors are logged at debug level and handed to the
// teardown hook.
//
// # Backpressure units
//
// In byte mode a chunk weighs len(Data) and the default high-water mark is
// 16 KiB. In object mode every value weighs 1 and the default is 16. The
// number of queued chunks is bounded by the same mark, so a flood of empty
// chunks still pauses the producer while a single empty chunk never flips
// the signal. The low-water mark defaults to half the high-water mark.
//
// # Usage
//
//	out := stream.Collect()
//	p, err := stream.Build([]*stream.Stage{
//	    stream.NewSource("src", stream.FromStrings("abc", "def")),
//	    stream.NewTransform("upper", stream.Uppercase()),
//	    stream.NewSink("sink", out),
//	})
//	res, err := p.Run(ctx)
//	// out.String() == "ABCDEF"
package stream
