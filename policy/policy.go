// Package policy is the registry of eviction policies. It maps
// case-insensitive policy names to constructors and builds a cache from a
// name, the common cache parameters and a "k1=v1,k2=v2" parameter string.
//
// The registry is itself a cache.Factory: composite policies receive it so
// that their pluggable inner caches (the main cache of S3FIFO, QDLP and
// W-TinyLFU) can be any registered policy.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/arc"
	"github.com/IvanBrykalov/cachesim/policy/belady"
	"github.com/IvanBrykalov/cachesim/policy/cacheus"
	"github.com/IvanBrykalov/cachesim/policy/clock"
	"github.com/IvanBrykalov/cachesim/policy/fifo"
	"github.com/IvanBrykalov/cachesim/policy/fifomerge"
	"github.com/IvanBrykalov/cachesim/policy/lecar"
	"github.com/IvanBrykalov/cachesim/policy/lfu"
	"github.com/IvanBrykalov/cachesim/policy/lirs"
	"github.com/IvanBrykalov/cachesim/policy/lru"
	"github.com/IvanBrykalov/cachesim/policy/qdlp"
	"github.com/IvanBrykalov/cachesim/policy/random"
	"github.com/IvanBrykalov/cachesim/policy/s3fifo"
	"github.com/IvanBrykalov/cachesim/policy/size"
	"github.com/IvanBrykalov/cachesim/policy/slru"
	"github.com/IvanBrykalov/cachesim/policy/twoq"
	"github.com/IvanBrykalov/cachesim/policy/wtinylfu"
)

// Constructor builds a self-contained policy.
type Constructor func(p cache.Params, args *cache.Args) (*cache.Cache, error)

// CompositeConstructor builds a policy whose inner caches are resolved by
// name through f.
type CompositeConstructor func(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error)

type entry struct {
	name      string
	leaf      Constructor
	composite CompositeConstructor
}

// Registry maps policy names to constructors. Registration is not safe for
// concurrent use; lookups and New are, once registration is done.
type Registry struct {
	byName map[string]*entry // lower-cased name or alias
	names  []string          // canonical names in registration order
}

var _ cache.Factory = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register adds a self-contained policy under name and aliases.
func (r *Registry) Register(name string, ctor Constructor, aliases ...string) {
	r.add(&entry{name: name, leaf: ctor}, aliases)
}

// RegisterComposite adds a policy that builds inner caches through the
// registry.
func (r *Registry) RegisterComposite(name string, ctor CompositeConstructor, aliases ...string) {
	r.add(&entry{name: name, composite: ctor}, aliases)
}

func (r *Registry) add(e *entry, aliases []string) {
	for _, n := range append([]string{e.name}, aliases...) {
		k := strings.ToLower(n)
		if _, dup := r.byName[k]; dup {
			panic(fmt.Sprintf("policy: %q registered twice", n))
		}
		r.byName[k] = e
	}
	r.names = append(r.names, e.name)
}

// Lookup resolves name or an alias to the canonical policy name.
func (r *Registry) Lookup(name string) (string, bool) {
	e, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Names returns the canonical policy names, sorted case-insensitively.
func (r *Registry) Names() []string {
	out := slices.Clone(r.names)
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

// New builds a top-level cache running the policy called name.
//
// Unknown names return an error wrapping cache.ErrUnknownPolicy; rejected
// parameters return a *cache.ConfigError. A parameter whose value is
// "print" makes New return a *cache.PrintParamsError carrying the effective
// parameters instead of a cache.
func (r *Registry) New(name string, p cache.Params, args string) (*cache.Cache, error) {
	e, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cache.ErrUnknownPolicy, name)
	}
	a, err := cache.ParseArgs(e.name, args)
	if err != nil {
		return nil, err
	}
	if e.composite != nil {
		return e.composite(p, a, r)
	}
	return e.leaf(p, a)
}

// Params returns the effective default parameters of the policy called
// name as "k=v,k=v".
func (r *Registry) Params(name string) (string, error) {
	_, err := r.New(name, cache.Params{Capacity: 1}, "params=print")
	var pe *cache.PrintParamsError
	if !errors.As(err, &pe) {
		if err == nil {
			err = fmt.Errorf("policy: %s did not report its parameters", name)
		}
		return "", err
	}
	return pe.Params, nil
}

// Default is the registry of every built-in policy.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register(fifo.Name, fifo.New)
	r.Register(lru.Name, lru.New)
	r.Register(clock.Name, clock.New)
	r.Register(random.Name, random.New)
	r.Register(random.NameTwo, random.NewTwo)
	r.Register(random.NameLRU, random.NewLRU)
	r.Register(lfu.Name, lfu.New)
	r.Register(lfu.NameDA, lfu.NewDA)
	r.Register(belady.Name, belady.New, "optimal")
	r.Register(size.Name, size.New)

	r.Register(arc.Name, arc.New)
	r.Register(arc.NameLP, arc.NewLP, "lparc", "lp-arc")
	r.Register(arc.NameV0, arc.NewV0)
	r.Register(lirs.Name, lirs.New)
	r.Register(slru.Name, slru.New)
	r.Register(slru.NameFIFO, slru.NewFIFO)
	r.Register(slru.NameV0, slru.NewV0)
	r.Register(twoq.Name, twoq.New, "2q")
	r.Register(lecar.Name, lecar.New)
	r.Register(lecar.NameV0, lecar.NewV0)
	r.Register(cacheus.Name, cacheus.New)
	r.Register(cacheus.NameSRLRU, cacheus.NewSRLRU, "srlru", "sr_lru")
	r.Register(fifomerge.Name, fifomerge.New, "fifomerge", "fifo-merge")

	r.RegisterComposite(s3fifo.Name, s3fifo.New, "s3-fifo")
	r.RegisterComposite(s3fifo.NameD, s3fifo.NewD)
	r.RegisterComposite(s3fifo.NameDv2, s3fifo.NewDv2)
	r.RegisterComposite(qdlp.Name, qdlp.New)
	r.RegisterComposite(qdlp.NameV2, qdlp.NewV2)
	r.RegisterComposite(wtinylfu.Name, wtinylfu.New, "w-tinylfu", "tinylfu")
	r.RegisterComposite(wtinylfu.NameV0, wtinylfu.NewV0)
	r.RegisterComposite(wtinylfu.NameV1, wtinylfu.NewV1)
	return r
}()

// New builds a cache from the Default registry.
func New(name string, p cache.Params, args string) (*cache.Cache, error) {
	return Default.New(name, p, args)
}

// Names lists the policies of the Default registry.
func Names() []string { return Default.Names() }
