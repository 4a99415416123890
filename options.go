package mmapbits

import (
	"log/slog"

	"github.com/hupe1980/mmapbits/internal/fs"
	"github.com/hupe1980/mmapbits/internal/mmap"
	"github.com/hupe1980/mmapbits/resource"
)

// AccessPattern is a paging hint applied to the mapping after it is established.
type AccessPattern = mmap.AccessPattern

const (
	AccessDefault    = mmap.AccessDefault
	AccessSequential = mmap.AccessSequential
	AccessRandom     = mmap.AccessRandom
	AccessWillNeed   = mmap.AccessWillNeed
	AccessDontNeed   = mmap.AccessDontNeed
)

type options struct {
	lock             bool
	access           AccessPattern
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	fsys             fs.FileSystem
}

// Option configures Create, Open and OpenWritable.
type Option func(*options)

// WithLock requests that mapped pages be pinned in physical memory.
// On platforms without support the request is ignored; when the kernel
// refuses (e.g. RLIMIT_MEMLOCK) opening fails.
func WithLock(lock bool) Option {
	return func(o *options) {
		o.lock = lock
	}
}

// WithAccessPattern sets the madvise hint applied right after mapping.
// AccessDefault (the default) leaves the kernel's readahead untouched.
func WithAccessPattern(p AccessPattern) Option {
	return func(o *options) {
		o.access = p
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &mmapbits.BasicMetricsCollector{}
//	s, _ := mmapbits.Create("bits.bin", 1<<20, mmapbits.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Flushes: %d, Avg latency: %dns\n", stats.FlushCount, stats.FlushAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := mmapbits.NewJSONLogger(slog.LevelInfo)
//	s, _ := mmapbits.Open("bits.bin", mmapbits.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares a mapped-bytes budget, a load slot pool and
// an IO rate limit between stores. The controller must outlive every store
// using it.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// withFileSystem swaps the file system; used for fault injection in tests.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		access:           AccessDefault,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fsys:             fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.fsys == nil {
		o.fsys = fs.Default
	}
	return o
}
