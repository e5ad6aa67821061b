package sim

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Simulator.
type Option interface {
	apply(*options)
}

// options holds the simulator configuration.
type options struct {
	logger      *zap.Logger
	registerer  prometheus.Registerer
	namespace   string
	reportEvery int64
	warmup      int64
	concurrency int
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		namespace:   "cachesim",
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithMetrics exports every simulated cache to reg under namespace, one
// series per policy and capacity.
// If not set, no metrics are recorded.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return optionFunc(func(o *options) {
		o.registerer = reg
		if namespace != "" {
			o.namespace = namespace
		}
	})
}

// WithReportEvery logs progress every n requests per experiment.
// Zero disables progress logs.
func WithReportEvery(n int64) Option {
	return optionFunc(func(o *options) {
		o.reportEvery = max(n, 0)
	})
}

// WithWarmup excludes the first n requests from the results. The caches
// still process them.
func WithWarmup(n int64) Option {
	return optionFunc(func(o *options) {
		o.warmup = max(n, 0)
	})
}

// WithConcurrency bounds the experiments RunAll runs at once.
// Default is GOMAXPROCS.
func WithConcurrency(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	})
}
