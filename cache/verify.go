package cache

// Verifier is implemented by policies that can check their own structure,
// typically list membership against the store. Verify panics on the first
// inconsistency.
type Verifier interface {
	Verify()
}

// Nested is implemented by composite policies whose resident objects live
// in inner caches. History caches are not listed.
type Nested interface {
	SubCaches() []*Cache
}

// Verify checks the accounting of c and of every cache nested in it, then
// runs the policy's own checks. It walks the whole store: Get calls it after
// every request only in builds with the cachesim_debug tag.
func (c *Cache) Verify() {
	var bytes, n int64
	c.store.Range(func(o *Object) bool {
		bytes += o.Size + c.overhead
		n++
		return true
	})
	Assertf(n == c.count && bytes == c.occupied,
		"%s: store holds %d objects/%d bytes, accounted %d/%d", c.name, n, bytes, c.count, c.occupied)

	if nc, ok := c.policy.(Nested); ok {
		var occ, cnt int64
		for _, sub := range nc.SubCaches() {
			sub.Verify()
			occ += sub.OccupiedBytes()
			cnt += sub.ObjectCount()
		}
		Assertf(occ == c.OccupiedBytes() && cnt == c.ObjectCount(),
			"%s: sub-caches hold %d objects/%d bytes, reported %d/%d", c.name, cnt, occ, c.ObjectCount(), c.OccupiedBytes())
	}
	if v, ok := c.policy.(Verifier); ok {
		v.Verify()
	}
}

// Verify walks l and panics when its links, length or byte count disagree
// with the objects in s.
func (l *List) Verify(s *Store) {
	var (
		n     int
		bytes int64
		prev  Handle
	)
	for h := l.head; h != 0; {
		Assertf(n < l.n, "list is longer than its length %d", l.n)
		o := s.Get(h)
		p, next := l.links(o)
		Assertf(l.Linked(o), "object %d in a list it is not marked for", o.ID)
		Assertf(*p == prev, "object %d has a broken back link", o.ID)
		n++
		bytes += o.Size
		prev, h = h, *next
	}
	Assertf(prev == l.tail, "list tail does not end the walk")
	Assertf(n == l.n && bytes == l.bytes, "list holds %d objects/%d bytes, recorded %d/%d", n, bytes, l.n, l.bytes)
}
