package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/trace"
)

var convertCmd = &cobra.Command{
	Use:   "convert INPUT OUTPUT",
	Short: "Convert a trace to oracleGeneral with next-access times",
	Long: `Read a trace, compute when each object is requested next and write it in
oracleGeneral format. An OUTPUT ending in .zst or .gz is compressed.

The whole trace is held in memory.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

var (
	convertFormat string
	convertCSV    string
)

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertFormat, "format", "auto", "input format: auto, csv, oracleGeneral")
	f.StringVar(&convertCSV, "csv", "", "csv layout of the input")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	format, err := trace.ParseFormat(convertFormat)
	if err != nil {
		return err
	}
	csvOpt, err := trace.ParseCSVOptions(convertCSV)
	if err != nil {
		return err
	}
	r, err := trace.Open(args[0], format, csvOpt)
	if err != nil {
		return err
	}
	reqs, err := trace.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return err
	}
	trace.AnnotateNextAccess(reqs)

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var w io.WriteCloser = nopCloser{out}
	if c := trace.CodecFor(args[1]); c != nil {
		if w, err = c.Writer(out); err != nil {
			return err
		}
	}
	ow := trace.NewOracleWriter(w)
	for i := range reqs {
		if err := ow.Write(&reqs[i]); err != nil {
			return fmt.Errorf("request %d: %w", i+1, err)
		}
	}
	err = errors.Join(ow.Flush(), w.Close())
	if err == nil {
		log.Info("converted trace",
			zap.String("in", args[0]),
			zap.String("out", args[1]),
			zap.Int("requests", len(reqs)))
	}
	return err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
