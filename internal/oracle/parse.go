package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/types"
)

// MissingKeyMessage is the chronicle entry produced when no API key is set
const MissingKeyMessage = "API key missing. Configure GEMINI_API_KEY."

type rawStats struct {
	PopulationChange   int    `json:"populationChange"`
	TechnologicalLevel string `json:"technologicalLevel"`
	CulturalVibe       string `json:"culturalVibe"`
	DominantReligion   string `json:"dominantReligion"`
}

type rawResult struct {
	Logs            []types.LogEntry       `json:"logs"`
	Factions        []types.Faction        `json:"factions"`
	UpdatedFigures  []types.Person         `json:"updatedFigures"`
	Stats           *rawStats              `json:"stats"`
	PendingDecision *types.PendingDecision `json:"pendingDecision"`
}

// CleanJSON strips Markdown code fences around a model response
func CleanJSON(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// ParseResult decodes a model response and fills every default so the
// result is total
func ParseResult(text string, req types.SimulationRequest) (*types.SimulationResult, error) {
	clean := CleanJSON(text)
	if clean == "" {
		return nil, fmt.Errorf("empty response")
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse simulation JSON: %w", err)
	}

	return normalize(raw, req), nil
}

// normalize applies the defaulting rules to a decoded response
func normalize(raw rawResult, req types.SimulationRequest) *types.SimulationResult {
	targetYear := req.Stats.Year + req.YearsToAdvance

	result := &types.SimulationResult{
		NewYear:         targetYear,
		Logs:            raw.Logs,
		Factions:        raw.Factions,
		UpdatedFigures:  raw.UpdatedFigures,
		PendingDecision: raw.PendingDecision,
	}

	if result.Logs == nil {
		result.Logs = []types.LogEntry{}
	}
	for i := range result.Logs {
		if result.Logs[i].ID == "" {
			result.Logs[i].ID = "log-" + uuid.New().String()
		}
		if result.Logs[i].Year == 0 {
			result.Logs[i].Year = targetYear
		}
		if result.Logs[i].Type == "" {
			result.Logs[i].Type = types.LogHistorical
		}
	}

	if result.Factions == nil {
		result.Factions = append([]types.Faction{}, req.Factions...)
	}
	for i := range result.Factions {
		result.Factions[i] = game.ClampFaction(result.Factions[i])
	}

	if result.UpdatedFigures == nil {
		result.UpdatedFigures = []types.Person{}
	}
	for i := range result.UpdatedFigures {
		p := &result.UpdatedFigures[i]
		if p.ID == "" {
			p.ID = fmt.Sprintf("new-%s-%d", strings.ToLower(strings.Join(strings.Fields(p.Name), "-")), targetYear)
		}
		for j := range p.Secrets {
			if p.Secrets[j].ID == "" {
				p.Secrets[j].ID = "sec-" + uuid.New().String()
			}
		}
	}

	if raw.Stats != nil {
		result.PopulationChange = raw.Stats.PopulationChange
		result.Stats = types.StatsOverride{
			TechnologicalLevel: raw.Stats.TechnologicalLevel,
			CulturalVibe:       raw.Stats.CulturalVibe,
			DominantReligion:   raw.Stats.DominantReligion,
		}
	}

	if pd := result.PendingDecision; pd != nil {
		if pd.ID == "" {
			pd.ID = "decision-" + uuid.New().String()
		}
		for i := range pd.Options {
			if pd.Options[i].ID == "" {
				pd.Options[i].ID = fmt.Sprintf("opt-%d", i+1)
			}
		}
	}

	return result
}

// MissingKeyResult is the degenerate response returned without credentials
func MissingKeyResult(req types.SimulationRequest) *types.SimulationResult {
	return &types.SimulationResult{
		NewYear: req.Stats.Year,
		Logs: []types.LogEntry{{
			ID:      "err-" + uuid.New().String(),
			Year:    req.Stats.Year,
			Type:    types.LogSystem,
			Content: MissingKeyMessage,
		}},
		Factions:       append([]types.Faction{}, req.Factions...),
		UpdatedFigures: []types.Person{},
	}
}
