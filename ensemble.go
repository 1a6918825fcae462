// Package ensemble decodes binary telemetry captures from acoustic Doppler
// current profilers into uniform in-memory time series.
//
// A capture is a byte stream of self-delimiting frames ("ensembles" or
// "records"), each carrying marker bytes, a declared length, typed data
// sections and a trailing 16-bit checksum. Real captures are routinely
// corrupted: dropped bytes shift frame boundaries, retransmissions duplicate
// blocks, and a final frame is often truncated mid-write. The decoder
// recovers everything recoverable, reports everything it discarded, and
// never fails a whole file for a single bad frame.
//
// # Core Features
//
//   - Two protocol families: marker-pair ensembles ("pd0") and sync-byte
//     records ("paradopp"), with automatic inference from leading bytes
//   - Checksum validation and corruption-driven resynchronisation
//     (timestamp continuity where the family embeds a clock, structural
//     retry where it does not)
//   - Transparent decompression of gzip, zstd, LZ4 and snappy-framed
//     captures
//   - A vectorised whole-file decode path for uniform captures, bounded by
//     a configurable memory budget, bit-identical to the streaming path
//   - Diagnostics returned as data, never logged: every dropped byte range
//     is accounted for
//
// # Basic Usage
//
// Decoding a capture file with protocol inference:
//
//	import "github.com/oceanum/ensemble"
//
//	res, err := ensemble.DecodeFile("deployment_0142.000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range res.Diags {
//	    fmt.Println(d) // what was discarded, where, and why
//	}
//
//	ts := res.Series.Timestamps()        // microseconds since epoch
//	vel := res.Series.Matrix("velocity") // rows x (cells*beams)
//	fmt.Printf("%d ensembles, %d bad\n", res.Series.Len(), res.Diags.Count(diag.KindIntegrity))
//
// Pinning the protocol and the sampling interval:
//
//	res, err := ensemble.Decode(raw,
//	    ensemble.WithProtocol("pd0"),
//	    ensemble.WithNominalInterval(2*time.Second),
//	)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the protocol
// registry. For fine-grained control (custom capacity budgets, direct access
// to a family's frame layout) use the protocol, frame and source packages
// directly.
package ensemble

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/internal/capacity"
	"github.com/oceanum/ensemble/internal/options"
	"github.com/oceanum/ensemble/protocol"
	"github.com/oceanum/ensemble/series"
	"github.com/oceanum/ensemble/source"

	// Register the built-in protocol families.
	_ "github.com/oceanum/ensemble/paradopp"
	_ "github.com/oceanum/ensemble/pd0"
)

// Result is the outcome of decoding one capture: the assembled series, the
// diagnostics accumulated along the way, and the protocol family used.
//
// Diags is valid even when Decode returned an error: a file reported corrupt
// still yields its best-effort series and a full account of what was
// discarded.
type Result struct {
	// Protocol is the family name that decoded the capture.
	Protocol string

	// Path is the originating file, empty for in-memory captures.
	Path string

	// Series holds the decoded rows; never nil.
	Series *series.Series

	// Diags records every discarded byte range and boundary decision.
	Diags diag.List
}

type decodeConfig struct {
	protocol string
	cfg      protocol.Config
}

// Option configures a decode call.
type Option = options.Option[*decodeConfig]

// WithProtocol pins the protocol family instead of inferring it from the
// capture's leading bytes. Unknown names fail the decode with
// errs.ErrUnknownProtocol.
func WithProtocol(name string) Option {
	return options.NoError(func(c *decodeConfig) {
		c.protocol = name
	})
}

// WithNominalInterval declares the deployment's sampling interval, overriding
// the statistical estimate the resynchroniser would otherwise derive from
// the capture itself.
func WithNominalInterval(d time.Duration) Option {
	return options.NoError(func(c *decodeConfig) {
		c.cfg.NominalInterval = d
	})
}

// WithResyncWindow bounds the forward search for a replacement frame start,
// in bytes from the end of the last trusted frame. Zero keeps the default of
// four frame lengths.
func WithResyncWindow(n int) Option {
	return options.NoError(func(c *decodeConfig) {
		c.cfg.ResyncWindow = n
	})
}

// WithMaxResyncPasses bounds the resynchronisation repair iterations.
func WithMaxResyncPasses(n int) Option {
	return options.NoError(func(c *decodeConfig) {
		c.cfg.MaxResyncPasses = n
	})
}

// WithCapacityEstimator overrides the memory budget that gates the
// vectorised decode path. capacity.Fixed(0) forces per-frame streaming.
func WithCapacityEstimator(e capacity.Estimator) Option {
	return options.NoError(func(c *decodeConfig) {
		c.cfg.Estimator = e
	})
}

// Decode decodes an in-memory capture. The protocol family is inferred from
// the leading bytes unless WithProtocol pins it; compressed captures are
// expanded transparently.
//
// The returned Result is non-nil whenever the input could be sniffed at all,
// so diagnostics and the best-effort series survive whole-file errors such
// as errs.ErrCorruptFile.
func Decode(data []byte, opts ...Option) (*Result, error) {
	buf, err := source.FromBytes(data)
	if err != nil {
		return nil, err
	}

	return decodeBuffer(buf, opts...)
}

// DecodeFile reads, decompresses and decodes one capture file.
func DecodeFile(path string, opts ...Option) (*Result, error) {
	buf, err := source.Open(path)
	if err != nil {
		return nil, err
	}

	return decodeBuffer(buf, opts...)
}

func decodeBuffer(buf *source.Buffer, opts ...Option) (*Result, error) {
	cfg := &decodeConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	name := cfg.protocol
	if name == "" {
		inferred, err := protocol.Infer(buf.Bytes())
		if err != nil {
			return nil, err
		}
		name = inferred
	}

	dec, err := protocol.New(name, cfg.cfg)
	if err != nil {
		return nil, err
	}

	s, dl, err := dec.Decode(buf)

	return &Result{
		Protocol: name,
		Path:     buf.Path(),
		Series:   s,
		Diags:    dl,
	}, err
}

// FileResult pairs one path from a DecodeFiles batch with its outcome.
// Err carries that file's failure without disturbing its siblings.
type FileResult struct {
	*Result
	Err error
}

// DecodeFiles decodes a batch of capture files concurrently, one worker per
// CPU, bounded. Results are returned in input order; a failing file yields
// its error in its slot rather than aborting the batch. The context cancels
// files not yet started.
func DecodeFiles(ctx context.Context, paths []string, opts ...Option) []FileResult {
	results := make([]FileResult, len(paths))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := DecodeFile(paths[i], opts...)
				results[i] = FileResult{Result: res, Err: err}
			}
		}()
	}

	for i := range paths {
		if err := ctx.Err(); err != nil {
			results[i] = FileResult{Err: fmt.Errorf("decode %s: %w", paths[i], err)}

			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = FileResult{Err: fmt.Errorf("decode %s: %w", paths[i], ctx.Err())}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
