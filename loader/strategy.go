package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedRecord is returned by the built-in strategies for records
// they cannot parse.
var ErrMalformedRecord = errors.New("loader: malformed record")

// skip reports whether line is blank or a '#' comment.
func skip(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) == 0 || line[0] == '#'
}

// AddressStrategy parses records of the form "<byte-index> <mask>".
// Both fields are integers in Go literal syntax, so "0x80" and "0b1" work.
// Blank lines and '#' comments are skipped.
func AddressStrategy() Strategy {
	return StrategyFunc(func(line []byte, w BitWriter) error {
		if skip(line) {
			return nil
		}
		fields := bytes.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedRecord, len(fields))
		}
		index, err := strconv.ParseInt(string(fields[0]), 0, 64)
		if err != nil {
			return fmt.Errorf("%w: index: %w", ErrMalformedRecord, err)
		}
		mask, err := strconv.ParseUint(string(fields[1]), 0, 8)
		if err != nil {
			return fmt.Errorf("%w: mask: %w", ErrMalformedRecord, err)
		}
		return w.SetBits(index, byte(mask))
	})
}

// BitStrategy parses one absolute bit position per line and sets that bit:
// bit b lives in byte b/8 under mask 1<<(b%8).
// Blank lines and '#' comments are skipped.
func BitStrategy() Strategy {
	return StrategyFunc(func(line []byte, w BitWriter) error {
		if skip(line) {
			return nil
		}
		bit, err := strconv.ParseUint(string(bytes.TrimSpace(line)), 0, 63)
		if err != nil {
			return fmt.Errorf("%w: bit: %w", ErrMalformedRecord, err)
		}
		return w.SetBits(int64(bit/8), byte(1)<<(bit%8))
	})
}
