package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags.
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Cache replacement policy simulator",
	Long: `cachesim replays request traces against simulated caches and reports
miss ratios for each eviction policy and cache size.

Examples:
  # Compare LRU and S3-FIFO on a compressed oracleGeneral trace
  cachesim run --trace twitter.oracleGeneral.zst --policy lru --policy s3fifo --size 64MiB,1GiB

  # A synthetic Zipf workload with scans
  cachesim run --synthetic objects=100000,requests=2000000,alpha=0.9,scan-every=100000,scan-length=20000 \
    --policy arc --policy "wtinylfu:main-cache=slru" --size 1000,10000 --ignore-obj-size

  # List policies and show the parameters of one
  cachesim policies
  cachesim params s3fifod`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger logs to stderr: human-readable at debug level with --verbose,
// info level otherwise.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}
