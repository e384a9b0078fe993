package codec

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/gostream/encryption"
	"github.com/kbukum/gostream/stream"
)

// PackOption configures Pack and Unpack.
type PackOption func(*packOptions)

type packOptions struct {
	chunkSize int
	stage     []stream.StageOption
	pipeline  []stream.Option
}

// WithChunkSize sets the read size of the source stage.
func WithChunkSize(n int) PackOption {
	return func(o *packOptions) { o.chunkSize = n }
}

// WithStageOptions applies opts to every stage built.
func WithStageOptions(opts ...stream.StageOption) PackOption {
	return func(o *packOptions) { o.stage = append(o.stage, opts...) }
}

// WithPipelineOptions applies opts to every pipeline built.
func WithPipelineOptions(opts ...stream.Option) PackOption {
	return func(o *packOptions) { o.pipeline = append(o.pipeline, opts...) }
}

func newPackOptions(opts []PackOption) *packOptions {
	o := &packOptions{chunkSize: stream.DefaultReadSize}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Pack compresses r with algo, seals the result with enc and writes the
// frames to w. w is not closed.
func Pack(ctx context.Context, r io.Reader, w io.Writer, algo Algorithm, enc encryption.Encryptor, opts ...PackOption) (stream.Result, error) {
	o := newPackOptions(opts)
	comp, err := Compress(algo)
	if err != nil {
		return stream.Result{}, err
	}
	p, err := stream.Build([]*stream.Stage{
		stream.NewSource("read", stream.FromReader(r, o.chunkSize), o.stage...),
		stream.NewTransform("compress", comp, o.stage...),
		stream.NewTransform("encrypt", Encrypt(enc), o.stage...),
		stream.NewSink("write", stream.ToWriter(w), o.stage...),
	}, append([]stream.Option{stream.WithName("pack")}, o.pipeline...)...)
	if err != nil {
		comp.Close()
		return stream.Result{}, err
	}
	return p.Run(ctx)
}

// Unpack reverses Pack. Decryption and decompression run as two pipelines
// joined by an in-memory pipe; the first failure stops both.
func Unpack(ctx context.Context, r io.Reader, w io.Writer, algo Algorithm, enc encryption.Encryptor, opts ...PackOption) error {
	o := newPackOptions(opts)
	pr, pw := io.Pipe()

	decrypt, err := stream.Build([]*stream.Stage{
		stream.NewSource("read", stream.FromReader(r, o.chunkSize), o.stage...),
		stream.NewTransform("decrypt", Decrypt(enc), o.stage...),
		stream.NewSink("pipe", stream.ToWriter(pw), o.stage...),
	}, append([]stream.Option{stream.WithName("unpack-decrypt")}, o.pipeline...)...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := decrypt.Run(gctx)
		// A nil error closes the pipe with EOF.
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := decompress(gctx, pr, w, algo, o)
		if err == nil {
			// Drain anything after the compressed stream so the writer side
			// is never left blocked.
			_, err = io.Copy(io.Discard, pr)
		}
		pr.CloseWithError(err)
		return err
	})
	return g.Wait()
}

func decompress(ctx context.Context, r io.Reader, w io.Writer, algo Algorithm, o *packOptions) error {
	rc, err := DecompressReader(r, algo)
	if err != nil {
		return err
	}
	p, err := stream.Build([]*stream.Stage{
		stream.NewSource("inflate", stream.FromReader(rc, o.chunkSize), o.stage...),
		stream.NewSink("write", stream.ToWriter(w), o.stage...),
	}, append([]stream.Option{stream.WithName("unpack-decompress")}, o.pipeline...)...)
	if err != nil {
		rc.Close()
		return err
	}
	_, err = p.Run(ctx)
	return err
}
