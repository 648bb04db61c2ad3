package knowledge

import (
	"fmt"
	"strings"

	"github.com/kingrea/acta/internal/comms"
)

// Relay controls how far a snapshot travels in one exchange.
type Relay string

const (
	// RelayMultiHop floods each connected component so every member ends the
	// tick with the component-wide union of records.
	RelayMultiHop Relay = "multi_hop"
	// RelayDirect only merges snapshots of direct neighbours.
	RelayDirect Relay = "direct"
)

// ParseRelay validates a relay name. Empty selects RelayMultiHop.
func ParseRelay(v string) (Relay, error) {
	switch r := Relay(strings.ToLower(strings.TrimSpace(v))); r {
	case "":
		return RelayMultiHop, nil
	case RelayMultiHop, RelayDirect:
		return r, nil
	default:
		return "", fmt.Errorf("knowledge: unknown relay %q", v)
	}
}

// Exchange merges snapshots across the edges of g. Nodes without a snapshot
// are skipped. All merges read start-of-exchange copies, so the result does
// not depend on iteration order.
func Exchange(g *comms.Graph, snaps map[int]*Snapshot, relay Relay) {
	before := make(map[int]*Snapshot, len(snaps))
	for id, s := range snaps {
		before[id] = s.Clone()
	}
	if relay == RelayDirect {
		for _, id := range g.IDs() {
			s, ok := snaps[id]
			if !ok {
				continue
			}
			for _, nb := range g.Neighbors(id) {
				s.Merge(before[nb])
			}
		}
		return
	}
	for _, comp := range g.Components() {
		union := New()
		for _, id := range comp {
			union.Merge(before[id])
		}
		for _, id := range comp {
			if s, ok := snaps[id]; ok {
				s.Merge(union)
			}
		}
	}
}
