package recurrence

import (
	"io"
	"log/slog"
	"time"

	"github.com/samber/mo"
)

// EngineConfig tunes an Engine. The zero value disables caching and range
// clamping.
type EngineConfig struct {
	// CacheEnabled turns on memoisation of count bounds.
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxRangeDays clamps Expand to this many days; 0 means no limit.
	MaxRangeDays int
	// Workers is the number of goroutines Expand fans series out to; values
	// below 2 keep expansion on the calling goroutine.
	Workers int
}

// DefaultEngineConfig caches count bounds and clamps ranges to two years.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxRangeDays: 2 * 366,
	Workers:      1,
}

// HighThroughputConfig is tuned for services rendering many large calendars
var HighThroughputConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},

	MaxRangeDays: 2 * 366,
	Workers:      4,
}

// LowMemoryConfig keeps a small, short-lived cache and clamps ranges to a year.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},

	MaxRangeDays: 366,
	Workers:      1,
}

// DisabledCacheConfig never caches and never clamps.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,

	MaxRangeDays: 0,
	Workers:      1,
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngineWithConfig builds an Engine from config. Call Close to stop the
// cache sweeper.
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if config.CacheEnabled {
		e.cache = NewCache[patternKey, mo.Option[Date]](config.CacheConfig)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
