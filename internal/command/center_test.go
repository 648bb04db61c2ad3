package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/task"
)

func TestCommunicateUpdatesAges(t *testing.T) {
	c := New(geom.Pt(0, 0))
	assert.Equal(t, comms.CenterID, c.Node().ID)
	assert.Empty(t, c.InformationAge(5))

	s := knowledge.New()
	s.ObserveTask(task.New(1, geom.Pt(3, 3), 2, 2), 0)
	require.True(t, c.Communicate(s))
	assert.Equal(t, 5, c.AgeSum(5))

	fresh := knowledge.New()
	fresh.ObserveTask(task.New(1, geom.Pt(3, 3), 2, 1), 4)
	require.True(t, c.Communicate(fresh))
	assert.Equal(t, []knowledge.Age{{Kind: knowledge.KindTask, ID: 1, Age: 1}}, c.InformationAge(5))
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(geom.Pt(0, 0))
	snap := c.Snapshot()
	snap.ObserveTask(task.New(1, geom.Pt(0, 0), 1, 1), 1)
	assert.Empty(t, c.InformationAge(1))
}
