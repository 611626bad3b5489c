package track

import "fmt"

// Built-in tracks. Geometry is loaded once at startup and treated as
// read-only afterwards.
var catalog = []*Track{
	{
		ID:              "rocket-ring",
		Name:            "Rocket Ring",
		TotalSpaces:     48,
		StartFinishLine: 0,
		Corners: []Corner{
			{ID: 1, Position: 10, SpeedLimit: 3},
			{ID: 2, Position: 22, SpeedLimit: 4},
			{ID: 3, Position: 31, SpeedLimit: 2},
			{ID: 4, Position: 42, SpeedLimit: 5},
		},
	},
	{
		ID:              "cascade-circuit",
		Name:            "Cascade Circuit",
		TotalSpaces:     60,
		StartFinishLine: 0,
		Corners: []Corner{
			{ID: 1, Position: 7, SpeedLimit: 4},
			{ID: 2, Position: 15, SpeedLimit: 2},
			{ID: 3, Position: 27, SpeedLimit: 3},
			{ID: 4, Position: 38, SpeedLimit: 6},
			{ID: 5, Position: 46, SpeedLimit: 2},
			{ID: 6, Position: 55, SpeedLimit: 4},
		},
	},
	{
		ID:              "dustbowl-oval",
		Name:            "Dustbowl Oval",
		TotalSpaces:     36,
		StartFinishLine: 0,
		Corners: []Corner{
			{ID: 1, Position: 9, SpeedLimit: 5},
			{ID: 2, Position: 18, SpeedLimit: 3},
			{ID: 3, Position: 28, SpeedLimit: 5},
		},
	},
}

var catalogByID = func() map[string]*Track {
	m := make(map[string]*Track, len(catalog))
	for _, t := range catalog {
		if err := t.Validate(); err != nil {
			panic(err)
		}
		m[t.ID] = t
	}
	return m
}()

// Lookup returns the built-in track with the given id.
func Lookup(id string) (*Track, error) {
	t, ok := catalogByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown track: %s", id)
	}
	return t, nil
}

// IDs returns the ids of all built-in tracks.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, t := range catalog {
		ids = append(ids, t.ID)
	}
	return ids
}
