// Package cacheus implements SR-LRU and Cacheus.
//
// SR-LRU is a scan- and churn-resistant LRU. The resident set is split in
// two LRU lists: SR takes new objects, R takes objects that were reused. R
// may use at most capacity minus the SR target; its LRU end is demoted to
// the head of SR to stay within that budget. Evictions come from the tail
// of SR, so a scan only ever displaces other new objects. The SR target
// adapts: it grows when an id evicted from SR before any reuse comes back,
// and shrinks when a demoted object is reused, which means R was too small.
//
// Cacheus mixes two experts with learned weights, as LeCaR does: SR-LRU and
// CR-LFU, an LFU that breaks frequency ties by evicting the most recently
// used object. Its learning rate is not fixed but tuned by hill climbing
// on the hit ratio of successive request windows.
package cacheus

import "github.com/IvanBrykalov/cachesim/cache"

// Object.Seg values.
const (
	inSR int32 = iota + 1
	inR
	inHist    // evicted by SR-LRU
	inHistLFU // evicted by CR-LFU
)

// Object.Flags bit: the object was demoted from R to SR.
const demoted uint32 = 1

// srLists is the resident state of SR-LRU, embedded by both policies.
type srLists struct {
	c      *cache.Cache
	sr, r  cache.List // head = MRU
	target float64    // bytes SR may keep before R is squeezed

	nDemote int64
}

func newSRLists(c *cache.Cache, ratio float64) srLists {
	l := srLists{c: c, sr: cache.NewList(), r: cache.NewList()}
	l.target = l.clamp(float64(c.Capacity()) * ratio)
	return l
}

func (l *srLists) clamp(t float64) float64 {
	capacity := float64(l.c.Capacity())
	return min(max(t, 1), max(capacity-1, 1))
}

func (l *srLists) verify() {
	s := l.c.Store()
	l.sr.Verify(s)
	l.r.Verify(s)
}

// grow and shrink move the SR target by delta bytes.
func (l *srLists) grow(delta int64)   { l.target = l.clamp(l.target + float64(delta)) }
func (l *srLists) shrink(delta int64) { l.target = l.clamp(l.target - float64(delta)) }

func (l *srLists) bytes() int64 { return l.sr.Bytes() + l.r.Bytes() }
func (l *srLists) len() int     { return l.sr.Len() + l.r.Len() }

// add links a new object: into R when reused says it came back from a
// history, into SR otherwise.
func (l *srLists) add(obj *cache.Object, reused bool) {
	s := l.c.Store()
	obj.Flags = 0
	if reused {
		obj.Seg = inR
		l.r.PushFront(s, obj)
		l.balance()
		return
	}
	obj.Seg = inSR
	l.sr.PushFront(s, obj)
}

// hit refreshes a resident object: a hit in SR moves it to R.
func (l *srLists) hit(obj *cache.Object) {
	s := l.c.Store()
	if obj.Seg == inR {
		l.r.MoveToFront(s, obj)
		return
	}
	l.sr.Remove(s, obj)
	obj.Flags &^= demoted
	obj.Seg = inR
	l.r.PushFront(s, obj)
	l.balance()
}

// demotedHit reports whether a hit on obj means R was too small.
func demotedHit(obj *cache.Object) bool {
	return obj.Seg == inSR && obj.Flags&demoted != 0
}

// balance demotes the LRU end of R until R fits beside the SR target.
func (l *srLists) balance() {
	s := l.c.Store()
	budget := float64(l.c.Capacity()) - l.target
	for l.r.Len() > 1 && float64(l.r.Bytes()) > budget {
		obj := l.r.Tail(s)
		l.r.Remove(s, obj)
		obj.Seg = inSR
		obj.Flags |= demoted
		l.sr.PushFront(s, obj)
		l.nDemote++
	}
}

// victim is the LRU end of SR, or of R when SR is empty.
func (l *srLists) victim() *cache.Object {
	s := l.c.Store()
	if obj := l.sr.Tail(s); obj != nil {
		return obj
	}
	return l.r.Tail(s)
}

// unlink removes a resident object from its list, keeping its flags.
func (l *srLists) unlink(obj *cache.Object) {
	s := l.c.Store()
	if obj.Seg == inSR {
		l.sr.Remove(s, obj)
		return
	}
	l.r.Remove(s, obj)
}

func resident(obj *cache.Object) bool { return obj.Seg == inSR || obj.Seg == inR }
