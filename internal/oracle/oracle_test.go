package oracle

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/types"
	"go.uber.org/zap"
)

func testRequest() types.SimulationRequest {
	command := "bless the harvest"
	return types.SimulationRequest{
		Stats: types.WorldStats{Year: 40, Population: 5000, TechnologicalLevel: "Age of Myth", CulturalVibe: "Dawn"},
		Factions: []types.Faction{
			{Name: "Aurean Holy See", Power: 45, Attitude: 80, Tenets: []string{"Order", "Faith"}},
		},
		Persons: []types.Person{
			{ID: "fig-luna", Name: "Astrologer Luna", FactionName: "Void Weavers", Role: "Oracle", BirthYear: 30, Status: types.StatusAlive},
		},
		RecentLogs: []types.LogEntry{
			{Year: 39, Content: "The stars went dark."},
		},
		Command:        &command,
		YearsToAdvance: 10,
	}
}

func TestParseResultDefaults(t *testing.T) {
	req := testRequest()

	result, err := ParseResult("```json\n{\"logs\":[{\"content\":\"Grain overflowed.\"}]}\n```", req)
	require.NoError(t, err)

	assert.Equal(t, 50, result.NewYear)
	assert.Equal(t, 0, result.PopulationChange)
	require.Len(t, result.Logs, 1)
	assert.NotEmpty(t, result.Logs[0].ID)
	assert.Equal(t, 50, result.Logs[0].Year)
	assert.Equal(t, types.LogHistorical, result.Logs[0].Type)
	assert.Equal(t, req.Factions, result.Factions)
	assert.NotNil(t, result.UpdatedFigures)
	assert.Empty(t, result.UpdatedFigures)
	assert.Equal(t, types.StatsOverride{}, result.Stats)
	assert.Nil(t, result.PendingDecision)
}

func TestParseResultFull(t *testing.T) {
	body := `{
		"logs": [{"year": 45, "type": "SCRIPTURE", "content": "The god spoke."}],
		"factions": [{"name": "Aurean Holy See", "power": 140, "attitude": -180}],
		"updatedFigures": [{"name": "Brother Kade", "status": "Alive", "secrets": [{"title": "Coward"}]}],
		"stats": {"populationChange": -300, "culturalVibe": "Dread"},
		"pendingDecision": {"senderName": "Kade", "senderRole": "Monk", "message": "Save us", "options": [{"text": "Yes"}, {"id": "no", "text": "No"}]}
	}`

	result, err := ParseResult(body, testRequest())
	require.NoError(t, err)

	assert.Equal(t, 45, result.Logs[0].Year)
	assert.Equal(t, types.LogScripture, result.Logs[0].Type)
	assert.Equal(t, 100, result.Factions[0].Power)
	assert.Equal(t, -100, result.Factions[0].Attitude)
	assert.Equal(t, -300, result.PopulationChange)
	assert.Equal(t, "Dread", result.Stats.CulturalVibe)

	require.Len(t, result.UpdatedFigures, 1)
	assert.Equal(t, "new-brother-kade-50", result.UpdatedFigures[0].ID)
	assert.NotEmpty(t, result.UpdatedFigures[0].Secrets[0].ID)

	require.NotNil(t, result.PendingDecision)
	assert.NotEmpty(t, result.PendingDecision.ID)
	assert.Equal(t, "opt-1", result.PendingDecision.Options[0].ID)
	assert.Equal(t, "no", result.PendingDecision.Options[1].ID)
}

func TestParseResultErrors(t *testing.T) {
	_, err := ParseResult("", testRequest())
	assert.Error(t, err)

	_, err = ParseResult("```json\n```", testRequest())
	assert.Error(t, err)

	_, err = ParseResult("The oracle is clouded.", testRequest())
	assert.Error(t, err)
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt(testRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "YEAR: 40 (Target: 50)")
	assert.Contains(t, prompt, "[Year 39] The stars went dark.")
	assert.Contains(t, prompt, "[Aurean Holy See] Power:45 Faith:80 Tenets:Order,Faith")
	assert.Contains(t, prompt, "[ID: fig-luna] Name: Astrologer Luna (Faction: Void Weavers, Role: Oracle, Age: 10, Status: Alive)")
	assert.Contains(t, prompt, `THE GOD HAS SPOKEN: "bless the harvest"`)

	req := testRequest()
	req.Command = nil
	prompt, err = RenderPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, "DIVINE SILENCE")

	choice := "opt-heal"
	req.DecisionChoice = &choice
	prompt, err = RenderPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, `THE GOD HAS ANSWERED A PRAYER: "opt-heal"`)
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	g, err := NewGemini(ctx, config.OracleConfig{Model: "gemini-2.5-flash"}, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	req := testRequest()
	result, err := g.Advance(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, req.Stats.Year, result.NewYear)
	assert.Equal(t, 0, result.PopulationChange)
	require.Len(t, result.Logs, 1)
	assert.Equal(t, types.LogSystem, result.Logs[0].Type)
	assert.Equal(t, MissingKeyMessage, result.Logs[0].Content)
	assert.Equal(t, req.Factions, result.Factions)
	assert.Nil(t, result.PendingDecision)

	url, err := g.Generate(ctx, req.Persons[0])
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,UE5H", DataURL("", []byte("PNG")))
	assert.True(t, strings.HasPrefix(DataURL("image/jpeg", []byte{1}), "data:image/jpeg;base64,"))
}
