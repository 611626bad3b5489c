package track

import (
	"fmt"
)

// Corner is a speed-limited spot on the loop.
type Corner struct {
	ID         int `json:"id"`
	Position   int `json:"position"`
	SpeedLimit int `json:"speedLimit"` // base limit, 1..7
}

// Weather is an optional race-wide token adjusting every corner's limit.
type Weather struct {
	Name       string `json:"name"`
	LimitDelta int    `json:"limitDelta"`
}

// RoadCondition is an optional per-corner placement. LimitDelta adjusts the
// corner's speed limit; FreeBoost makes boosting free of heat for players
// whose car sits in the sector ending at this corner.
type RoadCondition struct {
	CornerID   int  `json:"cornerId"`
	LimitDelta int  `json:"limitDelta"`
	FreeBoost  bool `json:"freeBoost"`
}

// Sector is the stretch of track between two consecutive corners. From is
// the first space after the preceding corner and To the corner closing the
// sector; both are inside the sector.
type Sector struct {
	From   int `json:"from"`
	To     int `json:"to"`
	Corner int `json:"corner"` // id of the corner closing the sector
}

// Track is immutable loop geometry. Positions handed to queries may be
// absolute (accumulated across laps); they are reduced modulo TotalSpaces.
// Negative or reversed ranges are the only errors.
type Track struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	TotalSpaces     int      `json:"totalSpaces"`
	StartFinishLine int      `json:"startFinishLine"`
	Corners         []Corner `json:"corners"`
}

// Advance returns the loop position n spaces beyond from.
func (t *Track) Advance(from, n int) (int, error) {
	if from < 0 || n < 0 {
		return 0, fmt.Errorf("advance out of range: from=%d n=%d", from, n)
	}
	return (from + n) % t.TotalSpaces, nil
}

// SpacesTraversed returns the ordered loop indices visited moving from from
// to to, excluding from and including to. Positions are absolute; the
// traversal wraps as needed.
func (t *Track) SpacesTraversed(from, to int) ([]int, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid traversal range: from=%d to=%d", from, to)
	}
	spaces := make([]int, 0, to-from)
	for p := from + 1; p <= to; p++ {
		spaces = append(spaces, p%t.TotalSpaces)
	}
	return spaces, nil
}

// CornersCrossed returns the corners whose positions lie in the traversal
// from from to to, in traversal order. A corner passed twice (movement
// longer than the loop) appears twice.
func (t *Track) CornersCrossed(from, to int) ([]Corner, error) {
	spaces, err := t.SpacesTraversed(from, to)
	if err != nil {
		return nil, err
	}
	var crossed []Corner
	for _, pos := range spaces {
		for _, c := range t.Corners {
			if c.Position == pos {
				crossed = append(crossed, c)
			}
		}
	}
	return crossed, nil
}

// CrossesFinishLine reports how many times the start/finish line lies in the
// traversal from from to to.
func (t *Track) CrossesFinishLine(from, to int) (int, error) {
	spaces, err := t.SpacesTraversed(from, to)
	if err != nil {
		return 0, err
	}
	crossings := 0
	for _, pos := range spaces {
		if pos == t.StartFinishLine {
			crossings++
		}
	}
	return crossings, nil
}

// SectorAt returns the sector containing pos: the stretch between the
// preceding corner (exclusive) and the next corner (inclusive).
func (t *Track) SectorAt(pos int) (Sector, error) {
	if pos < 0 {
		return Sector{}, fmt.Errorf("position out of range: %d", pos)
	}
	if len(t.Corners) == 0 {
		return Sector{From: 0, To: t.TotalSpaces - 1, Corner: -1}, nil
	}
	loop := pos % t.TotalSpaces

	// Corners are stored in track order; find the first corner at or past loop.
	for i, c := range t.Corners {
		if loop <= c.Position {
			prev := t.Corners[(i+len(t.Corners)-1)%len(t.Corners)]
			return Sector{
				From:   (prev.Position + 1) % t.TotalSpaces,
				To:     c.Position,
				Corner: c.ID,
			}, nil
		}
	}

	// Past the last corner: the sector wraps around to the first corner.
	last := t.Corners[len(t.Corners)-1]
	first := t.Corners[0]
	return Sector{
		From:   (last.Position + 1) % t.TotalSpaces,
		To:     first.Position,
		Corner: first.ID,
	}, nil
}

// CornerByID looks up a corner by id.
func (t *Track) CornerByID(id int) (Corner, bool) {
	for _, c := range t.Corners {
		if c.ID == id {
			return c, true
		}
	}
	return Corner{}, false
}

// EffectiveSpeedLimit returns the corner's limit after applying the weather
// token and any road-condition placement, floored at 1.
func (t *Track) EffectiveSpeedLimit(c Corner, w *Weather, conds []RoadCondition) int {
	limit := c.SpeedLimit
	if w != nil {
		limit += w.LimitDelta
	}
	for _, rc := range conds {
		if rc.CornerID == c.ID {
			limit += rc.LimitDelta
		}
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// FreeBoostAt reports whether a car at pos sits in a sector whose closing
// corner carries a free-boost road condition.
func (t *Track) FreeBoostAt(pos int, conds []RoadCondition) bool {
	if len(conds) == 0 {
		return false
	}
	sector, err := t.SectorAt(pos)
	if err != nil {
		return false
	}
	for _, rc := range conds {
		if rc.FreeBoost && rc.CornerID == sector.Corner {
			return true
		}
	}
	return false
}

// Validate checks geometry consistency: positive length, line and corners in
// range, limits within 1..7, corners sorted and unique by position.
func (t *Track) Validate() error {
	if t.TotalSpaces <= 0 {
		return fmt.Errorf("track %s: totalSpaces must be positive", t.ID)
	}
	if t.StartFinishLine < 0 || t.StartFinishLine >= t.TotalSpaces {
		return fmt.Errorf("track %s: start/finish line %d out of range", t.ID, t.StartFinishLine)
	}
	prev := -1
	for _, c := range t.Corners {
		if c.Position < 0 || c.Position >= t.TotalSpaces {
			return fmt.Errorf("track %s: corner %d position %d out of range", t.ID, c.ID, c.Position)
		}
		if c.SpeedLimit < 1 || c.SpeedLimit > 7 {
			return fmt.Errorf("track %s: corner %d speed limit %d out of range", t.ID, c.ID, c.SpeedLimit)
		}
		if c.Position <= prev {
			return fmt.Errorf("track %s: corners must be sorted by position and unique", t.ID)
		}
		prev = c.Position
	}
	return nil
}
