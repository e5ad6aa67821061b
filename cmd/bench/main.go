// Command bench measures simulation throughput of eviction policies on a
// synthetic Zipf workload and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int64("cap", 10_000, "cache capacity (objects)")
		policies = flag.String("policies", "LRU,FIFO,Clock,ARC,S3FIFO,WTinyLFU", "comma-separated policies")
		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "parallel runs")

		objects  = flag.Uint64("keys", 1_000_000, "keyspace size")
		requests = flag.Int64("requests", 10_000_000, "requests per run")
		alpha    = flag.Float64("zipf_s", 1.0, "Zipf skew (>= 0)")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	)
	flag.Parse()

	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()

	// ---- pprof and metrics share DefaultServeMux ----
	reg := prometheus.NewRegistry()
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go serve(log, "metrics", *metricsAddr)
	}
	if *pprofAddr != "" {
		go serve(log, "pprof", *pprofAddr)
	}

	zo := trace.ZipfOptions{Objects: *objects, Requests: *requests, Alpha: *alpha, Seed: *seed}
	open := func() (trace.Reader, error) { return trace.NewZipf(zo) }

	var exps []sim.Experiment
	for _, name := range strings.Split(*policies, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		exps = append(exps, sim.Experiment{
			Policy: name,
			Params: cache.Params{Capacity: *capacity, Seed: *seed},
		})
	}

	opts := []sim.Option{sim.WithLogger(log), sim.WithConcurrency(*workers)}
	if *metricsAddr != "" {
		opts = append(opts, sim.WithMetrics(reg, "bench"))
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	results, err := sim.New(policy.Default, opts...).RunAll(ctx, open, exps)
	if err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}

	// ---- Report ----
	fmt.Printf("cap=%d keys=%d requests=%d zipf_s=%.2f workers=%d seed=%d\n",
		*capacity, *objects, *requests, *alpha, *workers, *seed)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "policy\tmiss ratio\tMreq/s\tns/req")
	for _, r := range results {
		secs := r.Elapsed.Seconds()
		n := float64(r.Stats.Requests)
		if secs <= 0 || n == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.2f\t%.0f\n", r.Name, r.MissRatio(), n/secs/1e6, secs*1e9/n)
	}
	_ = tw.Flush()
}

func serve(log *zap.Logger, what, addr string) {
	log.Info("serving", zap.String("what", what), zap.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error("server stopped", zap.String("what", what), zap.Error(err))
	}
}
