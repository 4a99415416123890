package testutil

import (
	"math"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// BitPositions returns n uniformly distributed bit positions in [0, maxBit).
// Positions may repeat.
func (r *RNG) BitPositions(n int, maxBit uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.rand.Uint64() % maxBit
	}
	return out
}

// ZipfPositions returns n bit positions in [0, maxBit) whose bytes follow a
// Zipfian distribution with skew s: low bytes are hit far more often, so the
// result is dense with repeats. This is the shape of a load that keeps
// setting the same hot bits.
func (r *RNG) ZipfPositions(n int, maxBit uint64, s float64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	numBytes := int((maxBit + 7) / 8)
	out := make([]uint64, 0, n)
	for len(out) < n {
		bit := uint64(r.zipfLocked(numBytes, s))*8 + uint64(r.rand.Intn(8))
		if bit < maxBit {
			out = append(out, bit)
		}
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Normalization constant (harmonic number with exponent s)
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}

// Distinct returns the sorted set of positions.
func Distinct(positions []uint64) []uint64 {
	out := slices.Clone(positions)
	slices.Sort(out)
	return slices.Compact(out)
}

// ExpectedBytes returns the exact image of a zeroed size-byte store after
// every position has been set. It panics on a position outside the store.
func ExpectedBytes(positions []uint64, size int) []byte {
	out := make([]byte, size)
	for _, bit := range positions {
		out[bit/8] |= 1 << (bit % 8)
	}
	return out
}

// BitRecords renders positions one per line, the input format of
// loader.BitStrategy.
func BitRecords(positions []uint64) string {
	var sb strings.Builder
	for _, bit := range positions {
		sb.WriteString(strconv.FormatUint(bit, 10))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// AddressRecords renders a byte image as "<index> <mask>" lines, skipping
// zero bytes: the input format of loader.AddressStrategy.
func AddressRecords(image []byte) string {
	var sb strings.Builder
	for i, b := range image {
		if b == 0 {
			continue
		}
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(" 0x")
		sb.WriteString(strconv.FormatUint(uint64(b), 16))
		sb.WriteByte('\n')
	}
	return sb.String()
}
