package local_cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Options sizes the label cache. Each cached label binding costs 1.
type Options struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// TTLTick is how often expired bindings are swept; whole seconds.
	TTLTick time.Duration
	Logger  *log.Logger
}

type Option func(*Options)

func WithNumCounters(n int64) Option {
	return func(o *Options) {
		o.NumCounters = n
	}
}

func WithMaxCost(c int64) Option {
	return func(o *Options) {
		o.MaxCost = c
	}
}

func WithBufferItems(n int64) Option {
	return func(o *Options) {
		o.BufferItems = n
	}
}

func WithMetrics() Option {
	return func(o *Options) {
		o.Metrics = true
	}
}

func WithTTLTick(d time.Duration) Option {
	return func(o *Options) {
		o.TTLTick = d
	}
}

// WithLogger logs evicted and rejected bindings at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func defaultOptions() Options {
	return Options{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	}
}

// OptionsFromConfig reads fdd.ontology.cache.*. Unset keys keep the defaults.
func OptionsFromConfig() ([]Option, error) {
	var opts []Option
	for key, with := range map[string]func(int64) Option{
		config.FDDOntologyCacheNumCounters: WithNumCounters,
		config.FDDOntologyCacheMaxCost:     WithMaxCost,
		config.FDDOntologyCacheBufferItems: WithBufferItems,
	} {
		if !viper.IsSet(key) {
			continue
		}
		n, err := cast.ToInt64E(viper.Get(key))
		if err != nil || n <= 0 {
			return nil, errors.Errorf("%s must be a positive integer, got %v", key, viper.Get(key))
		}
		opts = append(opts, with(n))
	}
	if viper.IsSet(config.FDDOntologyCacheTTLTick) {
		d, err := utilities.PositiveDuration(viper.Get(config.FDDOntologyCacheTTLTick))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", config.FDDOntologyCacheTTLTick)
		}
		opts = append(opts, WithTTLTick(d))
	}
	if viper.GetBool(config.FDDOntologyCacheMetrics) {
		opts = append(opts, WithMetrics())
	}
	return opts, nil
}

func (o Options) ristrettoConfig() *ristretto.Config {
	cfg := &ristretto.Config{
		NumCounters:        o.NumCounters,
		MaxCost:            o.MaxCost,
		BufferItems:        o.BufferItems,
		Metrics:            o.Metrics,
		IgnoreInternalCost: true,
	}
	if o.TTLTick > 0 {
		cfg.TtlTickerDurationInSec = max(int64(o.TTLTick/time.Second), 1)
	}
	if l := o.Logger; l != nil {
		cfg.OnEvict = func(item *ristretto.Item) {
			l.Debug("label binding evicted", zap.Uint64("key", item.Key), zap.Any("value", item.Value))
		}
		cfg.OnReject = func(item *ristretto.Item) {
			l.Debug("label binding rejected", zap.Uint64("key", item.Key), zap.Int64("cost", item.Cost))
		}
	}
	return cfg
}

var (
	once    sync.Once
	cache   *ristretto.Cache
	initErr error
)

// Build creates an independent cache. Resolver tests and short-lived runs use
// it directly; the process-wide cache goes through NewLocalCache.
func Build(opts ...Option) (*ristretto.Cache, error) {
	conf := defaultOptions()
	for _, fn := range opts {
		fn(&conf)
	}
	c, err := ristretto.NewCache(conf.ristrettoConfig())
	if err != nil {
		return nil, errors.Wrap(err, "build ristretto cache")
	}
	return c, nil
}

// NewLocalCache builds the singleton that holds resolved column labels. The
// first call fixes the config.
func NewLocalCache(opts ...Option) error {
	once.Do(func() {
		cache, initErr = Build(opts...)
	})
	return initErr
}

// Cache returns the singleton. It panics when NewLocalCache was never called.
func Cache() *ristretto.Cache {
	if cache == nil {
		panic("local cache not initialized; call NewLocalCache first")
	}
	return cache
}
