package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTrack() *Track {
	return &Track{
		ID:              "test-loop",
		Name:            "Test Loop",
		TotalSpaces:     48,
		StartFinishLine: 0,
		Corners: []Corner{
			{ID: 1, Position: 10, SpeedLimit: 3},
			{ID: 2, Position: 22, SpeedLimit: 4},
			{ID: 3, Position: 31, SpeedLimit: 2},
		},
	}
}

func TestAdvanceWraps(t *testing.T) {
	trk := testTrack()

	pos, err := trk.Advance(46, 5)
	require.NoError(t, err)
	require.Equal(t, 3, pos)

	_, err = trk.Advance(-1, 2)
	require.Error(t, err)
}

func TestSpacesTraversed(t *testing.T) {
	trk := testTrack()

	spaces, err := trk.SpacesTraversed(8, 12)
	require.NoError(t, err)
	require.Equal(t, []int{9, 10, 11, 12}, spaces)

	// Absolute positions wrap onto the loop.
	spaces, err = trk.SpacesTraversed(47, 49)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, spaces)

	// Empty traversal when standing still.
	spaces, err = trk.SpacesTraversed(5, 5)
	require.NoError(t, err)
	require.Empty(t, spaces)

	_, err = trk.SpacesTraversed(9, 5)
	require.Error(t, err)
}

func TestCornersCrossed(t *testing.T) {
	trk := testTrack()

	crossed, err := trk.CornersCrossed(8, 12)
	require.NoError(t, err)
	require.Len(t, crossed, 1)
	require.Equal(t, 1, crossed[0].ID)

	// The traversal excludes the starting space: a car on a corner does
	// not re-check it.
	crossed, err = trk.CornersCrossed(10, 12)
	require.NoError(t, err)
	require.Empty(t, crossed)

	// Crossing multiple corners reports them in traversal order.
	crossed, err = trk.CornersCrossed(9, 32)
	require.NoError(t, err)
	require.Len(t, crossed, 3)
	require.Equal(t, []int{1, 2, 3}, []int{crossed[0].ID, crossed[1].ID, crossed[2].ID})
}

func TestCrossesFinishLine(t *testing.T) {
	trk := testTrack()

	n, err := trk.CrossesFinishLine(47, 49)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = trk.CrossesFinishLine(1, 20)
	require.NoError(t, err)
	require.Zero(t, n)

	// Movement of more than a full loop crosses twice.
	n, err = trk.CrossesFinishLine(47, 47+49)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSectorAt(t *testing.T) {
	trk := testTrack()

	s, err := trk.SectorAt(5)
	require.NoError(t, err)
	require.Equal(t, 1, s.Corner)
	require.Equal(t, 32, s.From)
	require.Equal(t, 10, s.To)

	s, err = trk.SectorAt(15)
	require.NoError(t, err)
	require.Equal(t, 2, s.Corner)

	// Past the last corner the sector wraps to the first.
	s, err = trk.SectorAt(40)
	require.NoError(t, err)
	require.Equal(t, 1, s.Corner)
}

func TestEffectiveSpeedLimit(t *testing.T) {
	trk := testTrack()
	corner := trk.Corners[0] // limit 3

	require.Equal(t, 3, trk.EffectiveSpeedLimit(corner, nil, nil))

	rain := &Weather{Name: "rain", LimitDelta: -1}
	require.Equal(t, 2, trk.EffectiveSpeedLimit(corner, rain, nil))

	conds := []RoadCondition{{CornerID: 1, LimitDelta: 2}}
	require.Equal(t, 5, trk.EffectiveSpeedLimit(corner, nil, conds))

	// The limit never drops below one.
	icy := &Weather{Name: "ice", LimitDelta: -10}
	require.Equal(t, 1, trk.EffectiveSpeedLimit(corner, icy, nil))
}

func TestFreeBoostAt(t *testing.T) {
	trk := testTrack()
	conds := []RoadCondition{{CornerID: 2, FreeBoost: true}}

	// Position 15 sits in the sector closing at corner 2.
	require.True(t, trk.FreeBoostAt(15, conds))
	require.False(t, trk.FreeBoostAt(5, conds))
	require.False(t, trk.FreeBoostAt(15, nil))
}

func TestCatalog(t *testing.T) {
	for _, id := range IDs() {
		trk, err := Lookup(id)
		require.NoError(t, err)
		require.NoError(t, trk.Validate())
	}
	_, err := Lookup("no-such-track")
	require.Error(t, err)
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	trk := testTrack()
	trk.Corners[1].Position = 10 // duplicate position
	require.Error(t, trk.Validate())

	trk = testTrack()
	trk.Corners[0].SpeedLimit = 8
	require.Error(t, trk.Validate())

	trk = testTrack()
	trk.StartFinishLine = 48
	require.Error(t, trk.Validate())
}
