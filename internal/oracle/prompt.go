package oracle

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/user/silent-god/internal/types"
)

//go:embed prompts/advance.txt
var advancePrompt string

var advanceTemplate = template.Must(template.New("advance").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(advancePrompt))

type promptFigure struct {
	ID          string
	Name        string
	FactionName string
	Role        string
	Age         int
	Status      types.PersonStatus
}

type promptData struct {
	Year       int
	TargetYear int
	Era        string
	Vibe       string
	Religion   string
	Population int
	Logs       []types.LogEntry
	Factions   []types.Faction
	Figures    []promptFigure
	Command    string
	Decision   string
}

// RenderPrompt builds the system instruction for one turn
func RenderPrompt(req types.SimulationRequest) (string, error) {
	data := promptData{
		Year:       req.Stats.Year,
		TargetYear: req.Stats.Year + req.YearsToAdvance,
		Era:        req.Stats.TechnologicalLevel,
		Vibe:       req.Stats.CulturalVibe,
		Religion:   req.Stats.DominantReligion,
		Population: req.Stats.Population,
		Logs:       req.RecentLogs,
		Factions:   req.Factions,
		Figures:    make([]promptFigure, 0, len(req.Persons)),
	}
	for _, p := range req.Persons {
		data.Figures = append(data.Figures, promptFigure{
			ID:          p.ID,
			Name:        p.Name,
			FactionName: p.FactionName,
			Role:        p.Role,
			Age:         req.Stats.Year - p.BirthYear,
			Status:      p.Status,
		})
	}
	if req.Command != nil {
		data.Command = *req.Command
	}
	if req.DecisionChoice != nil {
		data.Decision = *req.DecisionChoice
	}

	var buf bytes.Buffer
	if err := advanceTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PortraitPrompt describes a person for the image model
func PortraitPrompt(p types.Person) string {
	var b strings.Builder
	b.WriteString("A highly detailed, oil-painting style portrait of a fantasy character.\n")
	b.WriteString("Name: " + p.Name + "\n")
	b.WriteString("Role: " + p.Role + "\n")
	b.WriteString("Faction: " + p.FactionName + "\n")
	b.WriteString("Traits: " + strings.Join(p.Traits, ", ") + "\n")
	b.WriteString("Description: " + p.Description + "\n")
	b.WriteString("Era: Ancient/Medieval Fantasy mixed with Sci-Fi elements.\n")
	b.WriteString("Style: Dark, gritty, realistic, cinematic lighting. Head and shoulders shot, 3:4 aspect ratio.")
	return b.String()
}
