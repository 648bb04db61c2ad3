package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/task"
)

func chain() *comms.Graph {
	return comms.Build([]comms.Node{
		{ID: 0, Pos: geom.Pt(0, 0)},
		{ID: 1, Pos: geom.Pt(1, 0)},
		{ID: 2, Pos: geom.Pt(2, 0)},
		{ID: 3, Pos: geom.Pt(50, 0)},
	}, 1)
}

func seeded() map[int]*Snapshot {
	snaps := map[int]*Snapshot{}
	for id := range 4 {
		snaps[id] = New()
	}
	snaps[0].ObserveTask(task.New(7, geom.Pt(0, 0), 1, 1), 3)
	return snaps
}

func TestExchangeMultiHopFloodsComponent(t *testing.T) {
	snaps := seeded()
	Exchange(chain(), snaps, RelayMultiHop)
	for _, id := range []int{0, 1, 2} {
		_, ok := snaps[id].Task(7)
		assert.True(t, ok, "node %d", id)
	}
	_, ok := snaps[3].Task(7)
	assert.False(t, ok, "disconnected node learns nothing")
}

func TestExchangeDirectIsOneHop(t *testing.T) {
	snaps := seeded()
	Exchange(chain(), snaps, RelayDirect)
	_, ok := snaps[1].Task(7)
	assert.True(t, ok)
	_, ok = snaps[2].Task(7)
	assert.False(t, ok, "two hops away")
}

func TestParseRelay(t *testing.T) {
	r, err := ParseRelay("")
	require.NoError(t, err)
	assert.Equal(t, RelayMultiHop, r)
	r, err = ParseRelay("Direct")
	require.NoError(t, err)
	assert.Equal(t, RelayDirect, r)
	_, err = ParseRelay("broadcast")
	require.Error(t, err)
}
