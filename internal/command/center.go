// Package command holds the command center: a fixed node of the
// communication graph whose picture of the world is only ever written by
// what reaches it over the graph.
package command

import (
	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
)

// Center is the command center.
type Center struct {
	Pos geom.Point

	snap *knowledge.Snapshot
}

// New returns a center at pos with an empty snapshot.
func New(pos geom.Point) *Center {
	return &Center{Pos: pos, snap: knowledge.New()}
}

// ID is the graph node id of the center.
func (c *Center) ID() int { return comms.CenterID }

// Node returns the center as a graph node.
func (c *Center) Node() comms.Node { return comms.Node{ID: comms.CenterID, Pos: c.Pos} }

// Communicate ingests records received this tick and reports whether the
// center learned anything new.
func (c *Center) Communicate(received *knowledge.Snapshot) bool {
	return c.snap.Merge(received)
}

// Snapshot returns a copy of the center's current picture.
func (c *Center) Snapshot() *knowledge.Snapshot { return c.snap.Clone() }

// InformationAge reports the age of every record at tick.
func (c *Center) InformationAge(tick int) []knowledge.Age {
	return c.snap.Ages(tick)
}

// AgeSum reports the summed information age at tick.
func (c *Center) AgeSum(tick int) int { return c.snap.AgeSum(tick) }
