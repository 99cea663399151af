package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/silent-god/internal/types"
)

func TestMergeFactions(t *testing.T) {
	current := []types.Faction{
		{Name: "Aurean Holy See", Power: 45, Attitude: 80},
		{Name: "Silent Watchers", Power: 30, Attitude: 10},
	}

	// Test case 1: update in place, insert new, clamp, last write wins
	merged := MergeFactions(current, []types.Faction{
		{Name: "Void Weavers", Power: 150, Attitude: -300},
		{Name: "Aurean Holy See", Power: 10, Attitude: 5},
		{Name: "Aurean Holy See", Power: 0, Attitude: -20, Description: "Broken"},
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "Aurean Holy See", merged[0].Name)
	assert.Equal(t, 0, merged[0].Power)
	assert.Equal(t, -20, merged[0].Attitude)
	assert.Equal(t, "Broken", merged[0].Description)
	assert.Equal(t, "Silent Watchers", merged[1].Name)
	assert.Equal(t, types.Faction{Name: "Void Weavers", Power: 100, Attitude: -100}, merged[2])

	// Test case 2: the input collection is untouched
	assert.Equal(t, 45, current[0].Power)
}

func TestMergeFactionsInvariants(t *testing.T) {
	factions := DefaultSeed().Factions
	rounds := [][]types.Faction{
		{{Name: "Silent Watchers", Power: -5, Attitude: 101}},
		{{Name: "Glass Alchemy Society", Power: 999, Attitude: -999}, {Name: "New Dawn", Power: 50}},
		{{Name: "New Dawn", Power: 60}, {Name: "New Dawn", Power: 70}},
	}

	for _, incoming := range rounds {
		factions = MergeFactions(factions, incoming)

		seen := make(map[string]bool)
		for _, f := range factions {
			assert.False(t, seen[f.Name], "duplicate faction %s", f.Name)
			seen[f.Name] = true
			assert.GreaterOrEqual(t, f.Power, 0)
			assert.LessOrEqual(t, f.Power, 100)
			assert.GreaterOrEqual(t, f.Attitude, -100)
			assert.LessOrEqual(t, f.Attitude, 100)
		}
	}
	assert.Len(t, factions, 7)
}

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		a, b  string
		match bool
	}{
		{"Seraphina", "seraphina ", true},
		{"Saint Seraphina", "seraphina", true},
		{"Archivist Zero", "ARCHIVIST  zero", true},
		{"Luna", "Solaris", false},
		{"Luna", "", false},
		{"", "   ", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.match, NamesMatch(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestPersonMergeFuzzyName(t *testing.T) {
	pm := NewPersonMerger(0)
	current := []types.Person{
		{ID: "fig-luna", Name: "Luna", Status: types.StatusAlive},
		{ID: "fig-seraphina", Name: "Seraphina", Role: "Saint", Status: types.StatusAlive},
	}

	merged := pm.Merge(current, []types.Person{
		{ID: "invented-42", Name: "seraphina ", Role: "Martyr", Status: types.StatusDead},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "fig-seraphina", merged[1].ID)
	assert.Equal(t, "Martyr", merged[1].Role)
	assert.Equal(t, types.StatusDead, merged[1].Status)
}

func TestPersonMergeIDTakesPriority(t *testing.T) {
	pm := NewPersonMerger(0)
	current := []types.Person{
		{ID: "a", Name: "Luna"},
		{ID: "b", Name: "Barbarossa"},
	}

	// The id points at b even though the name matches a
	merged := pm.Merge(current, []types.Person{{ID: "b", Name: "Luna the Younger"}})
	require.Len(t, merged, 2)
	assert.Equal(t, "Luna", merged[0].Name)
	assert.Equal(t, "Luna the Younger", merged[1].Name)
}

func TestPersonMergeInsertsNewPerson(t *testing.T) {
	pm := NewPersonMerger(0)
	current := []types.Person{{ID: "a", Name: "Luna"}}

	merged := pm.Merge(current, []types.Person{{ID: "new", Name: "Barbarossa"}})
	require.Len(t, merged, 2)
	assert.Equal(t, "new", merged[1].ID)
	assert.Len(t, current, 1)
}

func TestPersonMergeBiographyGuard(t *testing.T) {
	pm := NewPersonMerger(50)
	long := strings.Repeat("a", 200)
	current := []types.Person{{ID: "a", Name: "Luna", Biography: long}}

	// Test case 1: short biography is ignored
	merged := pm.Merge(current, []types.Person{{ID: "a", Biography: "Short note."}})
	assert.Equal(t, long, merged[0].Biography)

	// Test case 2: exactly at the threshold is not long enough
	merged = pm.Merge(current, []types.Person{{ID: "a", Biography: strings.Repeat("b", 50)}})
	assert.Equal(t, long, merged[0].Biography)

	// Test case 3: longer than the threshold replaces a longer biography
	replacement := strings.Repeat("c", 51)
	merged = pm.Merge(current, []types.Person{{ID: "a", Biography: replacement}})
	assert.Equal(t, replacement, merged[0].Biography)

	// Test case 4: length is counted in characters
	korean := strings.Repeat("가", 40)
	merged = pm.Merge(current, []types.Person{{ID: "a", Biography: korean}})
	assert.Equal(t, long, merged[0].Biography)
}

func TestPersonMergeFields(t *testing.T) {
	pm := NewPersonMerger(0)
	death := 120
	current := []types.Person{{
		ID: "a", Name: "Luna", FactionName: "Void Weavers", Role: "Oracle",
		BirthYear: 90, Status: types.StatusAlive, Traits: []string{"Mystic"},
		PortraitURL: "data:image/png;base64,AAA",
		Secrets: []types.Secret{
			{ID: "s1", Title: "Starborn", Description: "original"},
		},
		Relationships: []types.Relationship{
			{TargetID: "b", Value: 10, Type: "Ally"},
			{TargetID: "c", Value: -5, Type: "Rival"},
		},
	}}

	merged := pm.Merge(current, []types.Person{{
		ID: "a", Status: types.StatusDead, DeathYear: &death,
		PortraitURL: "https://example.invalid/new.png",
		Secrets: []types.Secret{
			{ID: "s9", Title: "Starborn", Description: "duplicate"},
			{ID: "s2", Title: "The Pact", Description: "new"},
		},
		Relationships: []types.Relationship{
			{TargetID: "b", Value: -80, Type: "Enemy", IsSecret: true},
			{TargetID: "d", Value: 40, Type: "Lover"},
		},
	}})

	require.Len(t, merged, 1)
	p := merged[0]
	assert.Equal(t, "Luna", p.Name)
	assert.Equal(t, "Void Weavers", p.FactionName)
	assert.Equal(t, 90, p.BirthYear)
	assert.Equal(t, types.StatusDead, p.Status)
	require.NotNil(t, p.DeathYear)
	assert.Equal(t, 120, *p.DeathYear)
	assert.Equal(t, []string{"Mystic"}, p.Traits)
	assert.Equal(t, "data:image/png;base64,AAA", p.PortraitURL)

	require.Len(t, p.Secrets, 2)
	assert.Equal(t, "original", p.Secrets[0].Description)
	assert.Equal(t, "The Pact", p.Secrets[1].Title)

	assert.Equal(t, []types.Relationship{
		{TargetID: "b", Value: -80, Type: "Enemy", IsSecret: true},
		{TargetID: "c", Value: -5, Type: "Rival"},
		{TargetID: "d", Value: 40, Type: "Lover"},
	}, p.Relationships)
}

func TestPersonMergeAdoptsPortraitWhenMissing(t *testing.T) {
	pm := NewPersonMerger(0)
	merged := pm.Merge(
		[]types.Person{{ID: "a", Name: "Luna"}},
		[]types.Person{{ID: "a", PortraitURL: "data:image/png;base64,BBB"}},
	)
	assert.Equal(t, "data:image/png;base64,BBB", merged[0].PortraitURL)
}

func TestPersonMergeIdempotent(t *testing.T) {
	pm := NewPersonMerger(0)
	current := DefaultSeed().Persons
	update := types.Person{
		ID: "invented", Name: "Saint Seraphina", Role: "Martyr",
		Biography: strings.Repeat("She walked into the fire and did not burn. ", 3),
		Secrets:   []types.Secret{{ID: "x", Title: "Unburnt"}},
		Relationships: []types.Relationship{
			{TargetID: "fig-ignatius", Value: -60, Type: "Enemy"},
		},
	}

	once := pm.Merge(current, []types.Person{update})
	twice := pm.Merge(once, []types.Person{update})
	assert.Equal(t, once, twice)
	assert.Len(t, twice, len(current))
}

func TestPersonMergeKeepsDeathYear(t *testing.T) {
	pm := NewPersonMerger(0)
	death := 40
	merged := pm.Merge(
		[]types.Person{{ID: "a", Name: "Ignatius", Status: types.StatusDead, DeathYear: &death}},
		[]types.Person{{ID: "a", Description: "Remembered in the hymns of the See."}},
	)

	require.Len(t, merged, 1)
	assert.Equal(t, types.StatusDead, merged[0].Status)
	require.NotNil(t, merged[0].DeathYear)
	assert.Equal(t, 40, *merged[0].DeathYear)
}
