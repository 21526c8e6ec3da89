package entities

import (
	"encoding/binary"
	"net/netip"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gaissmai/bart"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

// RouteTable is the in-memory mirror of the kernel IPv4 main table, keyed by
// the route identity triple. It is safe for concurrent use: the monitor is
// the single writer and readers take copies.
type RouteTable struct {
	mutex  sync.RWMutex
	routes map[types.Key]types.Route

	// Longest-prefix-match index, rebuilt on the first Match after a mutation
	lpm   *bart.Table[types.Route]
	stale bool
}

// NewRouteTable creates an empty RouteTable
func NewRouteTable() *RouteTable {
	return &RouteTable{
		routes: make(map[types.Key]types.Route),
		stale:  true,
	}
}

// Apply mutates the table for one decoded event and reports whether it changed.
// Inserts replace the route with the same triple, deletes of unknown triples are no-ops.
func (rt *RouteTable) Apply(ev types.Event) bool {
	switch ev.Kind {
	case types.EventNewRoute:
		rt.mutex.Lock()
		defer rt.mutex.Unlock()

		key := ev.Route.Key()
		if old, ok := rt.routes[key]; ok && old == ev.Route {
			return false
		}
		rt.routes[key] = ev.Route
		rt.stale = true
		return true

	case types.EventDelRoute:
		rt.mutex.Lock()
		defer rt.mutex.Unlock()

		key := ev.Route.Key()
		if _, ok := rt.routes[key]; !ok {
			return false
		}
		delete(rt.routes, key)
		rt.stale = true
		return true

	default:
		return false
	}
}

// ApplyAll applies events in order and returns how many changed the table
func (rt *RouteTable) ApplyAll(events []types.Event) int {
	changed := 0
	for _, ev := range events {
		if rt.Apply(ev) {
			changed++
		}
	}
	return changed
}

// FullReplace installs routes as the complete table content
func (rt *RouteTable) FullReplace(routes []types.Route) {
	next := make(map[types.Key]types.Route, len(routes))
	for _, r := range routes {
		next[r.Key()] = r
	}

	rt.mutex.Lock()
	defer rt.mutex.Unlock()
	rt.routes = next
	rt.stale = true
}

// Size returns the number of routes in the table
func (rt *RouteTable) Size() int {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()
	return len(rt.routes)
}

// Snapshot returns a copy of the routes in display order
func (rt *RouteTable) Snapshot() []types.Route {
	rt.mutex.RLock()
	routes := make([]types.Route, 0, len(rt.routes))
	for _, r := range rt.routes {
		routes = append(routes, r)
	}
	rt.mutex.RUnlock()

	SortRoutes(routes)
	return routes
}

// SortRoutes orders routes by descending display key
func SortRoutes(routes []types.Route) {
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Key().SortKey() > routes[j].Key().SortKey()
	})
}

// Fingerprint returns a hash of the table content that does not depend on insertion order
func (rt *RouteTable) Fingerprint() uint64 {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()

	var sum uint64
	for _, r := range rt.routes {
		sum += hashRoute(r)
	}
	return sum
}

// Match returns the route the table would select for addr: the longest
// matching prefix, and the lowest metric among routes for that prefix.
func (rt *RouteTable) Match(addr netip.Addr) (types.Route, bool) {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if rt.stale {
		rt.rebuild()
	}
	return rt.lpm.Lookup(addr.Unmap())
}

// rebuild must be called with the write lock held
func (rt *RouteTable) rebuild() {
	best := make(map[netip.Prefix]types.Route, len(rt.routes))
	for _, r := range rt.routes {
		pfx := r.Prefix()
		if cur, ok := best[pfx]; ok && cur.Metric <= r.Metric {
			continue
		}
		best[pfx] = r
	}

	lpm := new(bart.Table[types.Route])
	for pfx, r := range best {
		lpm.Insert(pfx, r)
	}
	rt.lpm = lpm
	rt.stale = false
}

// hashRoute hashes every field of the route, so replacing a route with new
// interface details changes the table fingerprint
func hashRoute(r types.Route) uint64 {
	h := xxhash.New()

	var b []byte
	b = append(b, r.Destination.AsSlice()...)
	b = append(b, byte(r.PrefixLen))
	b = append(b, r.Gateway.AsSlice()...)
	b = binary.LittleEndian.AppendUint32(b, r.Metric)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.OutIfIndex))
	b = append(b, r.Source.AsSlice()...)
	b = binary.LittleEndian.AppendUint32(b, r.MTU)
	_, _ = h.Write(b)
	_, _ = h.WriteString(r.OutIfName)

	return h.Sum64()
}
