// Package simfx provides an fx module for a cache simulator backed by the
// built-in policy registry.
package simfx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/sim"
)

// Config holds configuration for the simulator.
type Config struct {
	// ReportEvery logs progress every n requests. Zero disables it.
	ReportEvery int64
	// Warmup excludes the first requests of every run from the results.
	Warmup int64
	// Concurrency bounds parallel experiments. Default is GOMAXPROCS.
	Concurrency int
	// Namespace of exported metrics. Default is "cachesim".
	Namespace string
}

// Module provides the policy registry as a cache.Factory and a
// *sim.Simulator.
// Requires a *zap.Logger and a Config to be provided; a
// prometheus.Registerer is used when present.
var Module = fx.Module("cachesim",
	fx.Provide(
		newFactory,
		newSimulator,
	),
)

func newFactory() cache.Factory { return policy.Default }

// Params holds dependencies for creating the simulator.
type Params struct {
	fx.In

	Config     Config
	Logger     *zap.Logger
	Factory    cache.Factory
	Registerer prometheus.Registerer `optional:"true"`
	Lifecycle  fx.Lifecycle
}

// Result holds the provided simulator.
type Result struct {
	fx.Out

	Simulator *sim.Simulator
}

func newSimulator(p Params) Result {
	log := p.Logger.Named("cachesim")
	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithReportEvery(p.Config.ReportEvery),
		sim.WithWarmup(p.Config.Warmup),
		sim.WithConcurrency(p.Config.Concurrency),
	}
	if p.Registerer != nil {
		opts = append(opts, sim.WithMetrics(p.Registerer, p.Config.Namespace))
	}
	s := sim.New(p.Factory, opts...)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return Result{Simulator: s}
}
