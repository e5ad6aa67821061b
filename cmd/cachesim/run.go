package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy"
	"github.com/IvanBrykalov/cachesim/policy/belady"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate policies on a trace",
	Long: `Replay a trace file or a synthetic workload against every combination
of --policy and --size and print one result row per run.

A policy is given as NAME or NAME:k=v,k=v. Sizes accept the suffixes
KiB, MiB, GiB and TiB (or K, M, G, T).

Belady needs to know when each object is requested next. Traces in
oracleGeneral format carry that; for others pass --annotate, which loads
the whole trace into memory first. Running Belady turns it on.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	tracePath     string
	traceFormat   string
	csvLayout     string
	synthetic     string
	policies      []string
	sizes         string
	ignoreObjSize bool
	trackMeta     bool
	objOverhead   int64
	defaultTTL    int64
	hashPower     int
	seed          uint64
	warmup        int64
	reportEvery   int64
	concurrency   int
	annotate      bool
	markdown      bool
	metricsAddr   string
)

func init() {
	f := runCmd.Flags()
	f.StringVarP(&tracePath, "trace", "t", "", "trace file (.csv, .oracleGeneral; optionally .zst or .gz)")
	f.StringVar(&traceFormat, "format", "auto", "trace format: auto, csv, oracleGeneral")
	f.StringVar(&csvLayout, "csv", "", "csv layout, e.g. header=true,time-col=1,id-col=2,size-col=3,hash-ids=true")
	f.StringVar(&synthetic, "synthetic", "", "synthetic Zipf workload: objects=,requests=,alpha=,min-size=,max-size=,scan-every=,scan-length=")
	f.StringArrayVarP(&policies, "policy", "p", []string{"LRU"}, "policy as NAME or NAME:k=v,k=v (repeatable)")
	f.StringVarP(&sizes, "size", "s", "", "comma-separated cache sizes in bytes (required)")
	f.BoolVar(&ignoreObjSize, "ignore-obj-size", false, "treat every object as size 1")
	f.BoolVar(&trackMeta, "track-metadata", false, "charge per-object metadata against capacity")
	f.Int64Var(&objOverhead, "object-overhead", 0, "metadata bytes per object with --track-metadata (0 = default)")
	f.Int64Var(&defaultTTL, "ttl", 0, "default TTL in seconds for requests without one")
	f.IntVar(&hashPower, "hash-power", 0, "log2 of the initial object index size (0 = default)")
	f.Uint64Var(&seed, "seed", 1, "seed for randomized policies and synthetic workloads")
	f.Int64Var(&warmup, "warmup", 0, "requests excluded from the results")
	f.Int64Var(&reportEvery, "report-every", 0, "log progress every n requests (0 = off)")
	f.IntVar(&concurrency, "concurrency", 0, "parallel runs (0 = GOMAXPROCS)")
	f.BoolVar(&annotate, "annotate", false, "compute next-access times in memory")
	f.BoolVar(&markdown, "markdown", false, "print the report as a markdown table")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics at addr during the run (e.g. :9090)")
	_ = runCmd.MarkFlagRequired("size")
	runCmd.MarkFlagsMutuallyExclusive("trace", "synthetic")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if tracePath == "" && synthetic == "" {
		return errors.New("one of --trace or --synthetic is required")
	}
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	capacities, err := parseSizes(sizes)
	if err != nil {
		return err
	}
	base := defaultParams(0)
	exps := make([]sim.Experiment, 0, len(policies)*len(capacities))
	for _, p := range policies {
		name, params, _ := strings.Cut(p, ":")
		canonical, ok := policy.Default.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q (see 'cachesim policies')", cache.ErrUnknownPolicy, name)
		}
		if canonical == belady.Name {
			annotate = true
		}
		// Validate once up front so a typo fails before any run starts.
		if _, err := policy.New(canonical, defaultParams(1<<20), params); err != nil {
			return printParams(cmd, err)
		}
		exps = append(exps, sim.Sizes(canonical, params, base, capacities...)...)
	}

	open, err := opener()
	if err != nil {
		return err
	}
	if annotate {
		if open, err = inMemory(open); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithWarmup(warmup),
		sim.WithReportEvery(reportEvery),
		sim.WithConcurrency(concurrency),
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, sim.WithMetrics(reg, "cachesim"))
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	start := time.Now()
	results, err := sim.New(policy.Default, opts...).RunAll(ctx, open, exps)
	if err != nil {
		return err
	}
	log.Info("simulation finished", zap.Int("runs", len(results)), zap.Duration("elapsed", time.Since(start)))

	format := sim.Text
	if markdown {
		format = sim.Markdown
	}
	return sim.WriteReport(cmd.OutOrStdout(), results, format)
}

func defaultParams(capacity int64) cache.Params {
	return cache.Params{
		Capacity:       capacity,
		DefaultTTL:     defaultTTL,
		HashPower:      hashPower,
		TrackMetadata:  trackMeta,
		ObjectOverhead: objOverhead,
		Seed:           seed,
	}
}

// printParams turns a parameter dump into output instead of an error.
func printParams(cmd *cobra.Command, err error) error {
	var pe *cache.PrintParamsError
	if errors.As(err, &pe) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", pe.Policy, pe.Params)
		return nil
	}
	return err
}

func opener() (sim.Opener, error) {
	wrap := func(r trace.Reader) trace.Reader {
		if ignoreObjSize {
			return unitSize{r}
		}
		return r
	}
	if synthetic != "" {
		zo, err := parseSynthetic(synthetic)
		if err != nil {
			return nil, err
		}
		return func() (trace.Reader, error) {
			z, err := trace.NewZipf(zo)
			if err != nil {
				return nil, err
			}
			return wrap(z), nil
		}, nil
	}
	format, err := trace.ParseFormat(traceFormat)
	if err != nil {
		return nil, err
	}
	csvOpt, err := trace.ParseCSVOptions(csvLayout)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(tracePath); err != nil {
		return nil, err
	}
	return func() (trace.Reader, error) {
		r, err := trace.Open(tracePath, format, csvOpt)
		if err != nil {
			return nil, err
		}
		return wrap(r), nil
	}, nil
}

// inMemory reads the trace once, annotates it and replays it from memory.
func inMemory(open sim.Opener) (sim.Opener, error) {
	r, err := open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	reqs, err := trace.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trace.AnnotateNextAccess(reqs)
	return func() (trace.Reader, error) { return trace.NewSliceReader(reqs), nil }, nil
}

// unitSize replaces every object size with 1.
type unitSize struct{ trace.Reader }

func (u unitSize) Read(req *cache.Request) error {
	if err := u.Reader.Read(req); err != nil {
		return err
	}
	req.Size = 1
	return nil
}

func parseSynthetic(s string) (trace.ZipfOptions, error) {
	a, err := cache.ParseArgs("synthetic", s)
	if err != nil {
		return trace.ZipfOptions{}, err
	}
	zo := trace.ZipfOptions{
		Objects:    uint64(a.Int("objects", 100_000)),
		Requests:   a.Int("requests", 1_000_000),
		Alpha:      a.Float("alpha", 1.0),
		MinSize:    a.Int("min-size", 1),
		MaxSize:    a.Int("max-size", 1),
		ScanEvery:  a.Int("scan-every", 0),
		ScanLength: a.Int("scan-length", 0),
		Seed:       seed,
	}
	a.Check(zo.Objects > 0 && zo.Objects < 1<<32, "objects", "must be in [1, 2^32)")
	if err := a.Err(); err != nil {
		return trace.ZipfOptions{}, err
	}
	return zo, nil
}

var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"tib", 1 << 40}, {"gib", 1 << 30}, {"mib", 1 << 20}, {"kib", 1 << 10},
	{"t", 1 << 40}, {"g", 1 << 30}, {"m", 1 << 20}, {"k", 1 << 10},
	{"b", 1},
}

// parseSize parses "64MiB", "1g" or "1000".
func parseSize(s string) (int64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	mult := int64(1)
	for _, sf := range sizeSuffixes {
		if strings.HasSuffix(t, sf.suffix) {
			t, mult = strings.TrimSpace(strings.TrimSuffix(t, sf.suffix)), sf.mult
			break
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid cache size %q", s)
	}
	n := int64(f * float64(mult))
	if n <= 0 {
		return 0, fmt.Errorf("invalid cache size %q", s)
	}
	return n, nil
}

func parseSizes(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := parseSize(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no cache size given")
	}
	return out, nil
}
