package cache

// Route is where a composite policy's lookup resolved a request.
type Route uint8

const (
	// RouteMiss: not resident and not remembered by any history list.
	RouteMiss Route = iota
	// RouteResident: found in a resident sub-cache.
	RouteResident
	// RouteGhost1: found in the first history list (B1, ghost FIFO, Aout).
	RouteGhost1
	// RouteGhost2: found in the second history list (B2, LFU history).
	RouteGhost2
)

func (r Route) String() string {
	switch r {
	case RouteResident:
		return "resident"
	case RouteGhost1:
		return "ghost1"
	case RouteGhost2:
		return "ghost2"
	default:
		return "miss"
	}
}

// Routing carries a Route from Find to the Insert or Evict that follows in
// the same Get. The decision is stamped with the request's vtime and id: a
// Route recorded for an earlier request, or for another object admitted
// during the same request, never leaks into a later insert.
type Routing struct {
	route Route
	vtime int64
	id    uint64
}

// Set records route for req, replacing any previous decision.
func (r *Routing) Set(req *Request, route Route) {
	r.route, r.vtime, r.id = route, req.VTime, req.ID
}

// Reset forgets any recorded decision.
func (r *Routing) Reset() { *r = Routing{} }

// Peek returns the decision recorded for req without consuming it.
func (r *Routing) Peek(req *Request) Route {
	if r.vtime != req.VTime || r.id != req.ID {
		return RouteMiss
	}
	return r.route
}

// Take returns the decision recorded for req and clears it.
func (r *Routing) Take(req *Request) Route {
	rt := r.Peek(req)
	r.Reset()
	return rt
}
