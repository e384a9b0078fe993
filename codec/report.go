package codec

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/gostream/stream"
)

// RatioReport is the outcome of compressing one input with one algorithm.
type RatioReport struct {
	Algorithm       Algorithm `json:"algorithm"`
	OriginalBytes   int64     `json:"original_bytes"`
	CompressedBytes int64     `json:"compressed_bytes"`
	// Ratio is CompressedBytes/OriginalBytes; 0 for empty input.
	Ratio float64 `json:"ratio"`
}

// CompressionReport compresses data with every algo concurrently, one
// pipeline per algorithm, and reports the resulting sizes in algos order.
// No algorithms selects all of them. The first failing pipeline cancels
// the others.
func CompressionReport(ctx context.Context, data []byte, chunkSize int, algos ...Algorithm) ([]RatioReport, error) {
	if len(algos) == 0 {
		algos = Algorithms()
	}
	compressors := make([]*Compressor, len(algos))
	for i, algo := range algos {
		c, err := Compress(algo)
		if err != nil {
			for _, prev := range compressors[:i] {
				_ = prev.Close()
			}
			return nil, err
		}
		compressors[i] = c
	}

	reports := make([]RatioReport, len(algos))
	g, gctx := errgroup.WithContext(ctx)
	for i, comp := range compressors {
		g.Go(func() error {
			original, compressed := stream.CountBytes(), stream.CountBytes()
			p, err := stream.Build([]*stream.Stage{
				stream.NewSource("read", stream.FromBytes(data, chunkSize)),
				stream.NewTransform("original", original),
				stream.NewTransform(string(comp.Algorithm()), comp),
				stream.NewTransform("compressed", compressed),
				stream.NewSink("discard", stream.Discard()),
			}, stream.WithName("ratio-"+string(comp.Algorithm())))
			if err != nil {
				comp.Close()
				return err
			}
			if _, err := p.Run(gctx); err != nil {
				return err
			}
			reports[i] = RatioReport{
				Algorithm:       comp.Algorithm(),
				OriginalBytes:   original.Count(),
				CompressedBytes: compressed.Count(),
				Ratio:           ratio(compressed.Count(), original.Count()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func ratio(compressed, original int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(compressed) / float64(original)
}
