package loader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/hupe1980/mmapbits/internal/fs"
	"github.com/hupe1980/mmapbits/resource"
)

// DefaultMaxLineLength is the longest accepted record, terminator included.
const DefaultMaxLineLength = 128

// ErrLineTooLong is returned when a record exceeds Options.MaxLineLength.
var ErrLineTooLong = errors.New("loader: line too long")

// BitWriter receives the byte/mask pairs a strategy derives from a record.
// *mmap.Mapping and *mmapbits.Store implement it.
type BitWriter interface {
	SetBits(index int64, mask byte) error
}

// Strategy turns one record into zero or more SetBits calls.
// line excludes the line terminator.
type Strategy interface {
	Apply(line []byte, w BitWriter) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(line []byte, w BitWriter) error

// Apply calls f(line, w).
func (f StrategyFunc) Apply(line []byte, w BitWriter) error { return f(line, w) }

// Options configures a load.
type Options struct {
	// MaxLineLength bounds a record including its terminator, if any.
	// Default: DefaultMaxLineLength.
	MaxLineLength int

	// Controller throttles input IO and bounds concurrent loads. Optional.
	Controller *resource.Controller

	// Logger receives progress and failure records. Default: discard.
	Logger *slog.Logger
}

// DefaultOptions are the options used when no option functions are given.
var DefaultOptions = Options{
	MaxLineLength: DefaultMaxLineLength,
}

// Stats summarizes a load.
type Stats struct {
	Lines    int64 // records handed to the strategy
	Bytes    int64 // input bytes consumed
	Duration time.Duration
}

// LineError reports the record that aborted a load.
type LineError struct {
	Line int64 // 1-based
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("loader: line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func buildOptions(optFns []func(*Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = DefaultMaxLineLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// Load reads r one record per line and applies s to each, writing through w.
// The first strategy or read error aborts the load; bits set before it stay set.
func Load(ctx context.Context, w BitWriter, r io.Reader, s Strategy, optFns ...func(*Options)) (Stats, error) {
	opts := buildOptions(optFns)
	return load(ctx, w, r, s, opts)
}

func load(ctx context.Context, w BitWriter, r io.Reader, s Strategy, opts Options) (Stats, error) {
	start := time.Now()
	var stats Stats

	if err := opts.Controller.AcquireLoad(ctx); err != nil {
		return stats, err
	}
	defer opts.Controller.ReleaseLoad()

	if opts.Controller != nil {
		r = resource.NewRateLimitedReader(ctx, r, opts.Controller)
	}
	// bufio needs one byte beyond the limit to see the terminator of a
	// maximal record.
	br := bufio.NewReaderSize(r, opts.MaxLineLength+1)

	for {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		raw, err := br.ReadSlice('\n')
		if len(raw) > 0 {
			lineNo := stats.Lines + 1
			if len(raw) > opts.MaxLineLength || errors.Is(err, bufio.ErrBufferFull) {
				stats.Duration = time.Since(start)
				return stats, &LineError{Line: lineNo, Err: fmt.Errorf("%w: limit %d bytes", ErrLineTooLong, opts.MaxLineLength)}
			}
			stats.Bytes += int64(len(raw))
			stats.Lines = lineNo

			line := bytes.TrimSuffix(raw, []byte{'\n'})
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if aerr := s.Apply(line, w); aerr != nil {
				stats.Duration = time.Since(start)
				opts.Logger.Error("load aborted", "line", lineNo, "error", aerr)
				return stats, &LineError{Line: lineNo, Err: aerr}
			}
		}
		if err != nil {
			stats.Duration = time.Since(start)
			if errors.Is(err, io.EOF) {
				opts.Logger.Debug("load completed", "lines", stats.Lines, "bytes", stats.Bytes, "duration", stats.Duration)
				return stats, nil
			}
			return stats, err
		}
	}
}

// LoadFile loads the file at path. If the file cannot be opened the error
// is returned and w is never touched.
func LoadFile(ctx context.Context, fsys fs.FileSystem, w BitWriter, path string, s Strategy, optFns ...func(*Options)) (Stats, error) {
	opts := buildOptions(optFns)

	f, err := fs.OrDefault(fsys).OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	opts.Logger = opts.Logger.With("path", path)
	return load(ctx, w, f, s, opts)
}

// LoadBlob loads the named blob from store, streaming it with ranged reads.
// If the blob cannot be opened the error is returned and w is never touched.
func LoadBlob(ctx context.Context, store blobstore.BlobStore, name string, w BitWriter, s Strategy, optFns ...func(*Options)) (Stats, error) {
	opts := buildOptions(optFns)

	blob, err := store.Open(ctx, name)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: open blob %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: read blob %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	opts.Logger = opts.Logger.With("blob", name)
	return load(ctx, w, rc, s, opts)
}
