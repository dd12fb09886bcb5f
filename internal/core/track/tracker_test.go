package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerRegistersInInputOrder(t *testing.T) {
	tr := NewTracker(DefaultMaxDisappeared, 50)
	got := tr.Update([]Point{{10, 10}, {200, 200}})
	require.Equal(t, map[int]Point{0: {10, 10}, 1: {200, 200}}, got)
}

func TestTrackerKeepsIdentityWhileMovingSlowly(t *testing.T) {
	tr := NewTracker(DefaultMaxDisappeared, 50)
	tr.Update([]Point{{0, 0}})
	for i := 1; i <= 20; i++ {
		p := Point{X: float64(i * 30), Y: 0}
		got := tr.Update([]Point{p})
		require.Len(t, got, 1)
		require.Equal(t, p, got[0], "frame %d", i)
	}
}

func TestTrackerGreedyPrefersTighterPair(t *testing.T) {
	for _, obs := range [][]Point{
		{{1, 1}, {9, 9}},
		{{9, 9}, {1, 1}},
	} {
		tr := NewTracker(DefaultMaxDisappeared, 50)
		tr.Update([]Point{{0, 0}, {10, 10}})
		got := tr.Update(obs)
		require.Len(t, got, 2)
		require.Equal(t, Point{1, 1}, got[0])
		require.Equal(t, Point{9, 9}, got[1])
	}
}

func TestTrackerDistanceCutoff(t *testing.T) {
	tr := NewTracker(DefaultMaxDisappeared, 50)
	tr.Update([]Point{{0, 0}})
	got := tr.Update([]Point{{100, 0}})

	require.Len(t, got, 2)
	require.Equal(t, Point{0, 0}, got[0])
	require.Equal(t, Point{100, 0}, got[1])

	ids := tr.Identities()
	require.Equal(t, 1, ids[0].FramesUnmatched)
	require.Equal(t, 0, ids[1].FramesUnmatched)
}

func TestTrackerTurnover(t *testing.T) {
	const maxDisappeared = 3
	tr := NewTracker(maxDisappeared, 50)
	tr.Update([]Point{{5, 5}})

	for i := 0; i < maxDisappeared; i++ {
		require.Len(t, tr.Update(nil), 1)
	}
	require.Empty(t, tr.Update(nil))

	got := tr.Update([]Point{{5, 5}})
	require.Equal(t, map[int]Point{1: {5, 5}}, got)
}

func TestTrackerEmptyInputNeverCreates(t *testing.T) {
	tr := NewTracker(2, 50)
	require.Empty(t, tr.Update(nil))
	require.Empty(t, tr.Update([]Point{}))

	tr.Update([]Point{{1, 1}, {300, 300}})
	for i := 0; i < 10; i++ {
		require.LessOrEqual(t, len(tr.Update(nil)), 2)
	}
	require.Zero(t, tr.Len())
}

func TestTrackerUnmatchedRowsAgeWhileOthersMatch(t *testing.T) {
	tr := NewTracker(1, 50)
	tr.Update([]Point{{0, 0}, {500, 500}})

	tr.Update([]Point{{2, 2}})
	got := tr.Update([]Point{{4, 4}})
	require.Equal(t, map[int]Point{0: {4, 4}}, got)
}

func TestTrackerMatchedObservationDoesNotSpawn(t *testing.T) {
	tr := NewTracker(DefaultMaxDisappeared, 50)
	tr.Update([]Point{{0, 0}, {100, 0}})
	got := tr.Update([]Point{{3, 0}, {103, 0}, {300, 300}})
	require.Equal(t, map[int]Point{0: {3, 0}, 1: {103, 0}, 2: {300, 300}}, got)
}

func TestNearest(t *testing.T) {
	_, ok := Nearest(Point{}, nil)
	require.False(t, ok)

	id, ok := Nearest(Point{9, 9}, map[int]Point{3: {0, 0}, 7: {10, 10}})
	require.True(t, ok)
	require.Equal(t, 7, id)

	id, _ = Nearest(Point{5, 0}, map[int]Point{4: {0, 0}, 2: {10, 0}})
	require.Equal(t, 2, id)
}
