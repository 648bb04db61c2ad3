package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/geom"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := NewPool([]*Task{
		New(2, geom.Pt(5, 5), 10, 10),
		New(1, geom.Pt(1, 1), 4, 4),
		New(3, geom.Pt(9, 9), 6, 0),
	})
	require.NoError(t, err)
	return p
}

func TestNewPoolOrdersAndRejectsDuplicates(t *testing.T) {
	p := newTestPool(t)
	assert.Equal(t, []int{1, 2, 3}, p.IDs())
	_, err := NewPool([]*Task{New(1, geom.Pt(0, 0), 1, 1), New(1, geom.Pt(0, 0), 1, 1)})
	require.ErrorContains(t, err, "duplicate id 1")
}

func TestZeroWorkTaskStartsCompleted(t *testing.T) {
	p := newTestPool(t)
	t3, _ := p.Get(3)
	assert.True(t, t3.Done())
	assert.Len(t, p.Open(), 2)
}

func TestClaimIsExclusive(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Claim(1, 10))
	require.NoError(t, p.Claim(1, 10), "re-claim by holder is a no-op")

	err := p.Claim(1, 11)
	require.True(t, errors.Is(err, ErrClaimConflict))
	t1, _ := p.Get(1)
	assert.Equal(t, 10, t1.Claimant)
	assert.Equal(t, []int{11}, t1.Contenders)
	assert.True(t, t1.Pursued(11))

	require.True(t, errors.Is(p.Claim(3, 10), ErrCompleted))
	require.True(t, errors.Is(p.Claim(99, 10), ErrUnknownTask))
}

func TestReleasePromotesLowestContender(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Claim(2, 5))
	_ = p.Claim(2, 9)
	_ = p.Claim(2, 7)
	p.Release(2, 5)
	t2, _ := p.Get(2)
	assert.Equal(t, Claimed, t2.Status)
	assert.Equal(t, 7, t2.Claimant)
	assert.Equal(t, []int{9}, t2.Contenders)

	p.Release(2, 9)
	p.Release(2, 7)
	assert.Equal(t, Unclaimed, t2.Status)
	assert.Equal(t, NoWorker, t2.Claimant)
}

func TestReleaseWorker(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Claim(1, 4))
	require.NoError(t, p.Claim(2, 4))
	assert.Equal(t, []int{1, 2}, p.ClaimsOf(4))
	assert.Equal(t, []int{1, 2}, p.ReleaseWorker(4))
	assert.Empty(t, p.ClaimsOf(4))
}

func TestApplyWorkCompletes(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Claim(1, 4))
	_ = p.Claim(1, 6)
	assert.False(t, p.ApplyWork(1, 4, 3, 7))
	assert.True(t, p.ApplyWork(1, 6, 1, 8))
	t1, _ := p.Get(1)
	assert.True(t, t1.Done())
	assert.Equal(t, 6, t1.Claimant, "first completion wins")
	assert.Empty(t, t1.Contenders)
	assert.Equal(t, 8, t1.CompletedAt)
	assert.False(t, p.ApplyWork(1, 4, 1, 9), "completed tasks take no more work")
}

func TestLastCompletion(t *testing.T) {
	p := newTestPool(t)
	assert.Equal(t, -1, p.LastCompletion())
	p.ApplyWork(1, 0, 4, 3)
	p.ApplyWork(2, 0, 10, 5)
	assert.True(t, p.AllCompleted())
	assert.Equal(t, 5, p.LastCompletion())
	assert.Zero(t, p.TotalRemaining())
}

func TestCloneIsDeep(t *testing.T) {
	p := newTestPool(t)
	c := p.Clone()
	require.NoError(t, c.Claim(1, 3))
	t1, _ := p.Get(1)
	assert.Equal(t, Unclaimed, t1.Status)
}
