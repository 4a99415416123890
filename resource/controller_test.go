package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Mapping(t *testing.T) {
	c := NewController(Config{MappedBytesLimit: 100})
	assert.Equal(t, int64(100), c.MappedBytesLimit())

	require.NoError(t, c.AcquireMapping(50))
	assert.Equal(t, int64(50), c.MappedBytes())

	require.NoError(t, c.AcquireMapping(40))
	assert.Equal(t, int64(90), c.MappedBytes())

	// Would exceed the limit
	err := c.AcquireMapping(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MappedBytes())

	c.ReleaseMapping(50)
	assert.Equal(t, int64(40), c.MappedBytes())

	require.NoError(t, c.AcquireMapping(20))
	assert.Equal(t, int64(60), c.MappedBytes())

	// Non-positive sizes are ignored
	require.NoError(t, c.AcquireMapping(0))
	c.ReleaseMapping(-5)
	assert.Equal(t, int64(60), c.MappedBytes())
}

func TestController_UnlimitedMapping(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMapping(1 << 40))
	assert.Equal(t, int64(1<<40), c.MappedBytes())
	assert.Zero(t, c.MappedBytesLimit())

	c.ReleaseMapping(1 << 40)
	assert.Zero(t, c.MappedBytes())
}

func TestController_Loads(t *testing.T) {
	c := NewController(Config{MaxConcurrentLoads: 2})

	require.NoError(t, c.AcquireLoad(t.Context()))
	require.NoError(t, c.AcquireLoad(t.Context()))
	assert.False(t, c.TryAcquireLoad())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireLoad(ctx), context.DeadlineExceeded)

	c.ReleaseLoad()
	assert.True(t, c.TryAcquireLoad())
}

func TestController_DefaultLoads(t *testing.T) {
	c := NewController(Config{})
	assert.True(t, c.TryAcquireLoad())
	assert.False(t, c.TryAcquireLoad())
	c.ReleaseLoad()
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMapping(10))
	c.ReleaseMapping(10)
	assert.Zero(t, c.MappedBytes())
	assert.Zero(t, c.MappedBytesLimit())
	assert.NoError(t, c.AcquireLoad(t.Context()))
	assert.True(t, c.TryAcquireLoad())
	c.ReleaseLoad()
	assert.NoError(t, c.AcquireIO(t.Context(), 1<<20))
	assert.True(t, c.TryAcquireIO(1<<20))
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	// The bucket starts full.
	assert.True(t, c.TryAcquireIO(1000))
	assert.False(t, c.TryAcquireIO(1000))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 1000))
}

func TestController_AcquireIOAboveBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Larger than the burst but satisfiable within the deadline.
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.AcquireIO(ctx, (1<<20)+1))
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	src := strings.Repeat("x", 4096)

	r := NewRateLimitedReader(t.Context(), strings.NewReader(src), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, src, string(got))
}

func TestRateLimitedReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := NewRateLimitedReader(ctx, strings.NewReader("data"), nil)
	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitedWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	var buf bytes.Buffer

	w := NewRateLimitedWriter(t.Context(), &buf, c)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}
