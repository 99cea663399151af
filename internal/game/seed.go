package game

import (
	"fmt"
	"os"

	"github.com/user/silent-god/internal/types"
	"gopkg.in/yaml.v3"
)

// Seed is the world at genesis
type Seed struct {
	Stats      types.WorldStats `yaml:"stats"`
	Factions   []types.Faction  `yaml:"factions"`
	Persons    []types.Person   `yaml:"persons"`
	OpeningLog string           `yaml:"opening_log"`
}

// Save converts the seed into the initial save tuple
func (s Seed) Save() *types.SaveState {
	state := &types.SaveState{
		Stats:    s.Stats,
		Factions: make([]types.Faction, len(s.Factions)),
		Figures:  make([]types.Person, len(s.Persons)),
		Logs:     []types.LogEntry{},
	}
	for i, f := range s.Factions {
		state.Factions[i] = ClampFaction(f)
	}
	copy(state.Figures, s.Persons)
	if s.OpeningLog != "" {
		state.Logs = append(state.Logs, types.LogEntry{
			ID:      "init",
			Year:    0,
			Type:    types.LogSystem,
			Content: s.OpeningLog,
		})
	}
	return state
}

// DataLoader handles loading genesis data from files
type DataLoader struct {
	path string
}

// NewDataLoader creates a new data loader. An empty path selects the
// built-in world.
func NewDataLoader(path string) *DataLoader {
	return &DataLoader{
		path: path,
	}
}

// LoadSeed reads the genesis seed
func (dl *DataLoader) LoadSeed() (Seed, error) {
	if dl.path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(dl.path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed data: %w", err)
	}

	if len(seed.Factions) == 0 {
		return Seed{}, fmt.Errorf("seed %s defines no factions", dl.path)
	}

	return seed, nil
}

// DefaultSeed returns the built-in world of six philosophies
func DefaultSeed() Seed {
	return Seed{
		Stats: types.WorldStats{
			Year:               1,
			Population:         5000,
			TechnologicalLevel: "Age of Myth",
			CulturalVibe:       "Dawn",
			DominantReligion:   "Polytheism",
		},
		Factions: []types.Faction{
			{
				Name: "Aurean Holy See", Power: 45, Attitude: 80, Color: "#F59E0B", Region: "Center",
				Tenets:      []string{"Sacred Bureaucracy", "Absolute Order"},
				Description: "A theocracy ruling the golden plains, reading the god's silence as consent to its order.",
				History:     "Founded by the first prophet Aurelius after the age of chaos; purged its heretics during the Great Schism.",
			},
			{
				Name: "Silent Watchers", Power: 30, Attitude: 10, Color: "#06B6D4", Region: "North",
				Tenets:      []string{"Entropy", "Preservation of Records"},
				Description: "Monks of the permafrost library-fortress who record everything and intervene in nothing.",
				History:     "Scholars who fled underground as the old civilization burned and learned that intervention is distortion.",
			},
			{
				Name: "Glass Alchemy Society", Power: 25, Attitude: -10, Color: "#DC2626", Region: "South",
				Tenets:      []string{"Transmutation", "Sun Worship"},
				Description: "Technocrats of the desert who live beneath domes of molten sand and trust only proof.",
				History:     "Nomads who unearthed ancient solar engines and named the sun a furnace rather than a god.",
			},
			{
				Name: "Ironroot Forest", Power: 35, Attitude: 30, Color: "#166534", Region: "West",
				Tenets:      []string{"Bio-engineering", "Wrath of Nature"},
				Description: "Druids of a forest fused with the war machines abandoned in it.",
				History:     "Naturalists who adapted to the poison they meant to cleanse and now serve the Mother Tree core.",
			},
			{
				Name: "Abyssal Trade Union", Power: 40, Attitude: 50, Color: "#3B82F6", Region: "Coast",
				Tenets:      []string{"Pragmatism", "Deep Sea Exploration"},
				Description: "A merchant league of ports and islands that holds contracts sacred.",
				History:     "Pirates and smugglers who broke the navy and learned that trade rules better than plunder.",
			},
			{
				Name: "Void Weavers", Power: 20, Attitude: -50, Color: "#7C3AED", Region: "East",
				Tenets:      []string{"Nihilism", "Astronomy"},
				Description: "Mystics of the misty isles who believe the world is a dream about to wake.",
				History:     "A star cult that heard whispers from beyond the sky and made them doctrine.",
			},
		},
		Persons: []types.Person{
			{
				ID: "fig-ignatius", Name: "Archbishop Ignatius", FactionName: "Aurean Holy See",
				Role:        "High Bishop",
				Description: "A cold ruler who hides his face behind a golden mask.",
				Biography:   "A minor scribe who rose to archbishop on memory and loyalty alone. Rumour says he sent his own brother to the pyre for heresy.",
				BirthYear:   45, Status: types.StatusAlive,
				Traits:        []string{"Ruthless", "Perfectionist", "Jurist"},
				Relationships: []types.Relationship{},
				Secrets: []types.Secret{{
					ID: "sec-ignatius-1", Title: "The Secret of the Mask",
					Description: "His face melted in a fire he set to burn forbidden books.",
					Severity:    types.SeverityScandal, KnownBy: []string{},
				}},
			},
			{
				ID: "fig-seraphina", Name: "Saint Seraphina", FactionName: "Aurean Holy See",
				Role:          "Saint",
				Description:   "A healer of the people, the only mercy inside the See's rigour.",
				Biography:     "An orphan of the slums whose touch healed the sick. She secretly hears confessions at night and allows the private prayer the See forbids.",
				BirthYear:     82, Status: types.StatusAlive,
				Traits:        []string{"Merciful", "Doubtful", "Healer"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
			{
				ID: "fig-zero", Name: "Archivist Zero", FactionName: "Silent Watchers",
				Role:          "Grand Archivist",
				Description:   "An old man who gave his eyes to see causality instead of light.",
				Biography:     "The oldest of the Watchers. He speaks to no one and writes the Book of the End, whose last page no one can predict.",
				BirthYear:     12, Status: types.StatusAlive,
				Traits:        []string{"Blind", "Seer", "Silent"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
			{
				ID: "fig-solaris", Name: "Grand Alchemist Solaris", FactionName: "Glass Alchemy Society",
				Role:          "Grand Alchemist",
				Description:   "A genius engineer with a transparent glass arm.",
				Biography:     "She lost her arm in a childhood experiment and built a sun-driven glass prosthetic. She believes the body is a machine and urges her society to improve theirs.",
				BirthYear:     68, Status: types.StatusAlive,
				Traits:        []string{"Genius", "Mad Scientist", "Pragmatist"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
			{
				ID: "fig-gaia7", Name: "Archdruid Gaia-7", FactionName: "Ironroot Forest",
				Role:          "Archdruid",
				Description:   "Half human, half tangle of plant and machine, wired into the forest.",
				Biography:     "She digitised most of her brain to join the Mother Tree network. She shares every sense of the forest and strikes intruders down with roots of optic fibre.",
				BirthYear:     55, Status: types.StatusAlive,
				Traits:        []string{"Cyborg", "Naturalist", "Guardian"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
			{
				ID: "fig-barbarossa", Name: "Trade King Barbarossa", FactionName: "Abyssal Trade Union",
				Role:          "Admiral",
				Description:   "A red-bearded former pirate king, unbeatable at sea.",
				Biography:     "Once a notorious pirate, he negotiated his way to the first chair of the Union after the war with the See. Kings owe him money.",
				BirthYear:     60, Status: types.StatusAlive,
				Traits:        []string{"Charismatic", "Wealthy", "Adventurer"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
			{
				ID: "fig-luna", Name: "Astrologer Luna", FactionName: "Void Weavers",
				Role:          "Oracle",
				Description:   "A girl whose eyes are as black as the night sky.",
				Biography:     "It is said she never cried as a baby and only stared at the stars. Her prophecies of rising and falling nations are frighteningly exact.",
				BirthYear:     90, Status: types.StatusAlive,
				Traits:        []string{"Mystic", "Unhinged", "Alluring"},
				Relationships: []types.Relationship{}, Secrets: []types.Secret{},
			},
		},
		OpeningLog: "The land split and the seas were filled. Six philosophies begin civilization.",
	}
}
