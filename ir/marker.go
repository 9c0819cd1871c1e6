package ir

import "fmt"

// MaxMarkers is the number of markers that can be alive at the same time.
const MaxMarkers = 4

// Marker tags instructions and blocks during a single traversal. A marker is
// a slot index plus a generation, so a stale marker never matches.
type Marker uint32

func (m Marker) slot() int      { return int(m % MaxMarkers) }
func (m Marker) gen() uint32    { return uint32(m / MaxMarkers) }
func (m Marker) String() string { return fmt.Sprintf("marker(%d:%d)", m.slot(), m.gen()) }

// marks is embedded in Inst and Block.
type marks [MaxMarkers]uint32

func (s *marks) set(m Marker)        { s[m.slot()] = m.gen() }
func (s *marks) reset(m Marker)      { s[m.slot()] = 0 }
func (s *marks) isSet(m Marker) bool { return s[m.slot()] == m.gen() }
func (s *marks) setTo(m Marker, v bool) {
	if v {
		s.set(m)
	} else {
		s.reset(m)
	}
}

type markerPool struct {
	gen  uint32
	used [MaxMarkers]uint32 // generation held by the slot, 0 if free
}

// NewMarker allocates a marker. It panics when all slots are in use.
func (g *Graph) NewMarker() Marker {
	for slot := range g.markers.used {
		if g.markers.used[slot] == 0 {
			g.markers.gen++
			g.markers.used[slot] = g.markers.gen
			return Marker(g.markers.gen*MaxMarkers + uint32(slot))
		}
	}
	panic("ir: no free marker")
}

// EraseMarker releases m. Releasing a marker twice panics.
func (g *Graph) EraseMarker(m Marker) {
	if g.markers.used[m.slot()] != m.gen() || m.gen() == 0 {
		panic(fmt.Sprintf("ir: release of %v which is not held", m))
	}
	g.markers.used[m.slot()] = 0
}

// MarkerHolder scopes a marker to a single pass invocation:
//
//	h := ir.NewMarkerHolder(g)
//	defer h.Release()
type MarkerHolder struct {
	g      *Graph
	marker Marker
	held   bool
}

func NewMarkerHolder(g *Graph) *MarkerHolder {
	return &MarkerHolder{g: g, marker: g.NewMarker(), held: true}
}

func (h *MarkerHolder) Marker() Marker { return h.marker }

func (h *MarkerHolder) Release() {
	if !h.held {
		panic(fmt.Sprintf("ir: double release of %v", h.marker))
	}
	h.held = false
	h.g.EraseMarker(h.marker)
}
