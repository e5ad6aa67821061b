// Package clock implements CLOCK (second chance) with an n-bit saturating
// access counter per object.
package clock

import "github.com/IvanBrykalov/cachesim/cache"

// Name is the registry name of the policy.
const Name = "Clock"

type clock struct {
	c        *cache.Cache
	q        cache.List // head = newest, tail = hand
	maxFreq  int32
	initFreq int32
	desc     string

	// objects and bytes reinserted at the head by the hand
	nObjRewritten  int64
	nByteRewritten int64
}

// New constructs a Clock cache.
//
// Parameters:
//   - n-bit-counter: counter width in bits, 1..16 (default 1)
//   - init-freq:     counter value of a newly inserted object (default 0)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	bits := args.Int("n-bit-counter", 1)
	args.Check(bits >= 1 && bits <= 16, "n-bit-counter", "must be in [1, 16]")
	maxFreq := int32(1)<<bits - 1
	initFreq := args.Int("init-freq", 0)
	args.Check(initFreq >= 0 && initFreq <= int64(maxFreq), "init-freq", "must be in [0, 2^n-1]")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &clock{
			c:        c,
			q:        cache.NewList(),
			maxFreq:  maxFreq,
			initFreq: int32(initFreq),
			desc:     args.Effective(),
		}, nil
	})
}

func (k *clock) Find(req *cache.Request, update bool) *cache.Object {
	obj := k.c.Lookup(req, update)
	if obj != nil && update && obj.Counter < k.maxFreq {
		obj.Counter++
	}
	return obj
}

func (k *clock) Insert(req *cache.Request) *cache.Object {
	obj := k.c.InsertObject(req)
	obj.Counter = k.initFreq
	k.q.PushFront(k.c.Store(), obj)
	return obj
}

// ToEvict simulates the hand without touching counters: an object with
// counter c survives c passes.
func (k *clock) ToEvict(*cache.Request) *cache.Object {
	s := k.c.Store()
	obj := k.q.Tail(s)
	var round int32
	for obj != nil && obj.Counter-round >= 1 {
		obj = k.q.Prev(s, obj)
		if obj == nil {
			obj = k.q.Tail(s)
			round++
		}
	}
	return obj
}

func (k *clock) Evict(*cache.Request) {
	s := k.c.Store()
	obj := k.q.Tail(s)
	cache.Assert(obj != nil, "Clock evict on an empty cache")
	for obj.Counter >= 1 {
		obj.Counter--
		k.nObjRewritten++
		k.nByteRewritten += obj.Size
		k.q.MoveToFront(s, obj)
		obj = k.q.Tail(s)
	}
	k.q.Remove(s, obj)
	k.c.RemoveObject(obj)
}

func (k *clock) Remove(id uint64) bool {
	obj := k.c.Store().Find(id)
	if obj == nil {
		return false
	}
	k.q.Remove(k.c.Store(), obj)
	k.c.RemoveObject(obj)
	return true
}

func (k *clock) Describe() string { return k.desc }

func (k *clock) Counters() map[string]int64 {
	return map[string]int64{
		"n_obj_rewritten":  k.nObjRewritten,
		"n_byte_rewritten": k.nByteRewritten,
	}
}
