// Package sim replays request traces against simulated caches.
//
// A Simulator builds caches by policy name through a cache.Factory (the
// policy registry), feeds them a trace and collects their statistics.
// RunAll runs independent experiments in parallel; every experiment owns
// its cache and its trace reader, so nothing is shared between goroutines.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/metrics/prom"
	"github.com/IvanBrykalov/cachesim/trace"
)

// Experiment is one cache configuration to simulate.
type Experiment struct {
	Policy string
	// Args is the policy parameter string, "k1=v1,k2=v2".
	Args   string
	Params cache.Params
}

func (e Experiment) String() string {
	if e.Args == "" {
		return fmt.Sprintf("%s(%d)", e.Policy, e.Params.Capacity)
	}
	return fmt.Sprintf("%s(%d,%s)", e.Policy, e.Params.Capacity, e.Args)
}

// Result holds the outcome of one experiment, warmup excluded.
type Result struct {
	Experiment Experiment
	// Name is the canonical policy name; Params its effective parameters.
	Name   string
	Params string

	Stats     cache.Stats
	Bytes     int64 // requested bytes
	MissBytes int64
	Counters  map[string]int64
	Elapsed   time.Duration
}

// MissRatio returns the request miss ratio.
func (r Result) MissRatio() float64 { return r.Stats.MissRatio() }

// ByteMissRatio returns missed bytes over requested bytes.
func (r Result) ByteMissRatio() float64 {
	if r.Bytes == 0 {
		return 0
	}
	return float64(r.MissBytes) / float64(r.Bytes)
}

// Opener opens a fresh reader over the same trace.
type Opener func() (trace.Reader, error)

// Simulator runs experiments.
type Simulator struct {
	factory cache.Factory
	opts    options
}

// New returns a simulator building caches with f.
func New(f cache.Factory, opts ...Option) *Simulator {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Simulator{factory: f, opts: o}
}

// ctxCheckEvery is how many requests pass between cancellation checks.
const ctxCheckEvery = 4096

// Run replays r through a new cache built for exp. It does not close r.
// Invariant violations inside a policy are reported as errors.
func (s *Simulator) Run(ctx context.Context, r trace.Reader, exp Experiment) (res Result, err error) {
	log := s.opts.logger.With(zap.String("experiment", exp.String()))
	p := exp.Params
	if p.Logger == nil {
		p.Logger = log
	}
	if p.Metrics == nil && s.opts.registerer != nil {
		p.Metrics = prom.New(s.opts.registerer, s.opts.namespace, "", prometheus.Labels{
			"policy":   exp.Policy,
			"capacity": strconv.FormatInt(p.Capacity, 10),
			"params":   exp.Args,
		})
	}
	c, err := s.factory.New(exp.Policy, p, exp.Args)
	if err != nil {
		return Result{}, fmt.Errorf("building %v: %w", exp, err)
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("simulating %v at request %d: %v", exp, c.NumRequests(), v)
		}
		_ = c.Close()
	}()

	res = Result{Experiment: exp, Name: c.Name(), Params: c.Describe()}
	start := time.Now()
	var (
		req   cache.Request
		n     int64
		warm  cache.Stats
		bytes int64
		miss  int64
	)
	for {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		err := r.Read(&req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading request %d: %w", n+1, err)
		}
		hit := c.Get(&req)
		n++
		if n <= s.opts.warmup {
			if n == s.opts.warmup {
				warm = c.Stats()
				log.Debug("warmup done", zap.Int64("requests", n))
			}
		} else {
			bytes += req.Size
			if !hit {
				miss += req.Size
			}
		}
		if s.opts.reportEvery > 0 && n%s.opts.reportEvery == 0 {
			st := c.Stats()
			log.Info("progress",
				zap.Int64("requests", n),
				zap.Float64("miss_ratio", st.MissRatio()),
				zap.Int64("objects", c.ObjectCount()),
				zap.Int64("occupied_bytes", c.OccupiedBytes()))
		}
	}

	res.Stats = sub(c.Stats(), warm)
	res.Bytes, res.MissBytes = bytes, miss
	res.Counters = c.Counters()
	res.Elapsed = time.Since(start)
	log.Info("done",
		zap.Int64("requests", res.Stats.Requests),
		zap.Float64("miss_ratio", res.MissRatio()),
		zap.Float64("byte_miss_ratio", res.ByteMissRatio()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func sub(a, b cache.Stats) cache.Stats {
	return cache.Stats{
		Requests:  a.Requests - b.Requests,
		Hits:      a.Hits - b.Hits,
		Misses:    a.Misses - b.Misses,
		Evictions: a.Evictions - b.Evictions,
		Oversize:  a.Oversize - b.Oversize,
		Rejected:  a.Rejected - b.Rejected,
		Expired:   a.Expired - b.Expired,
		Removed:   a.Removed - b.Removed,
	}
}

// RunAll runs every experiment on its own reader from open, at most
// WithConcurrency at a time. Results keep the order of exps. The first
// error cancels the remaining experiments.
func (s *Simulator) RunAll(ctx context.Context, open Opener, exps []Experiment) ([]Result, error) {
	results := make([]Result, len(exps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for i, exp := range exps {
		g.Go(func() error {
			r, err := open()
			if err != nil {
				return fmt.Errorf("opening trace for %v: %w", exp, err)
			}
			defer r.Close()
			res, err := s.Run(ctx, r, exp)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sizes expands one policy configuration over several capacities.
func Sizes(policy, args string, base cache.Params, capacities ...int64) []Experiment {
	exps := make([]Experiment, len(capacities))
	for i, c := range capacities {
		p := base
		p.Capacity = c
		exps[i] = Experiment{Policy: policy, Args: args, Params: p}
	}
	return exps
}
