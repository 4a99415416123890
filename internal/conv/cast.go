package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// Int64ToInt converts a file size or offset to an int slice length.
// It only fails on 32-bit platforms.
func Int64ToInt(v int64) (int, error) {
	if v > math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrOverflow, v)
	}
	return int(v), nil
}

// Uint64ToInt converts a length read from disk to an int.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrOverflow, v)
	}
	return int(v), nil
}
