// Package qdlp implements QDLP (quick demotion, lazy promotion): a small
// probationary FIFO that demotes one-hit objects quickly, in front of a
// main cache that promotes lazily. The main cache is Clock by default, so
// promotion is a counter bump instead of a list move.
//
// QDLP shares its machinery with S3-FIFO; QDLPv2 adds additive resizing of
// the probationary queue.
package qdlp

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/clock"
	"github.com/IvanBrykalov/cachesim/policy/s3fifo"
)

// Registry names.
const (
	Name   = "QDLP"
	NameV2 = "QDLPv2"
)

func defaults(mode s3fifo.Mode) s3fifo.Options {
	o := s3fifo.Defaults(mode)
	o.Main = clock.Name
	return o
}

// New constructs a QDLP cache. Parameters are those of S3FIFO with
// main-cache defaulting to Clock.
func New(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return s3fifo.Build(Name, p, args, f, s3fifo.ParseOptions(args, defaults(s3fifo.Static)))
}

// NewV2 constructs a QDLPv2 cache. Parameters are those of S3FIFOd with
// main-cache defaulting to Clock.
func NewV2(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return s3fifo.Build(NameV2, p, args, f, s3fifo.ParseOptions(args, defaults(s3fifo.Additive)))
}
