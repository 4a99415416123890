// mmapbits-demo writes a byte pattern into a memory-mapped store, flushes
// it, and reads it back through a read-only mapping.
//
// The path and size are fixed; the demo takes no arguments. Any failure is
// logged and the process exits non-zero.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/mmapbits"
	"github.com/hupe1980/mmapbits/loader"
)

type config struct {
	Path  string
	Size  int64
	Lock  bool
	Input string // optional file of bit positions loaded after the pattern
}

func defaultConfig() config {
	return config{
		Path: "/tmp/t.bin",
		Size: 255,
	}
}

func main() {
	logger := mmapbits.NewTextLogger(slog.LevelInfo)

	if err := run(context.Background(), defaultConfig(), logger, os.Stdout); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

// run writes byte i = i mod 256 for every byte, flushes, closes, then reopens
// read-only and verifies the pattern.
func run(ctx context.Context, cfg config, logger *mmapbits.Logger, out io.Writer) error {
	opts := []mmapbits.Option{
		mmapbits.WithLogger(logger),
		mmapbits.WithLock(cfg.Lock),
	}

	w, err := mmapbits.Create(cfg.Path, cfg.Size, opts...)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	for i := int64(0); i < cfg.Size; i++ {
		if err := w.SetBits(i, byte(i)); err != nil {
			_ = w.Close()
			return fmt.Errorf("set bits %d: %w", i, err)
		}
	}
	if cfg.Input != "" {
		stats, err := w.LoadFile(ctx, cfg.Input, loader.BitStrategy())
		if err != nil {
			_ = w.Close()
			return fmt.Errorf("load %s: %w", cfg.Input, err)
		}
		fmt.Fprintf(out, "loaded %d records from %s\n", stats.Lines, cfg.Input)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	r, err := mmapbits.Open(cfg.Path, opts...)
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	defer func() { _ = r.Close() }()

	if cfg.Input == "" {
		for i := int64(0); i < cfg.Size; i++ {
			got, err := r.Byte(i)
			if err != nil {
				return fmt.Errorf("read byte %d: %w", i, err)
			}
			if got != byte(i) {
				return fmt.Errorf("byte %d: got 0x%02x, want 0x%02x", i, got, byte(i))
			}
		}
	}

	count, err := r.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d bytes verified, %d bits set\n", cfg.Path, cfg.Size, count)
	return nil
}
