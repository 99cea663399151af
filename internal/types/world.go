package types

import "time"

// LogType classifies a chronicle entry
type LogType string

const (
	LogScripture  LogType = "SCRIPTURE"
	LogHistorical LogType = "HISTORICAL"
	LogChat       LogType = "CHAT"
	LogSystem     LogType = "SYSTEM"
	LogCultural   LogType = "CULTURAL"
	LogPetition   LogType = "PETITION"
	LogRevelation LogType = "REVELATION"
)

// PersonStatus is the life status of a person
type PersonStatus string

const (
	StatusAlive    PersonStatus = "Alive"
	StatusDead     PersonStatus = "Dead"
	StatusMissing  PersonStatus = "Missing"
	StatusAscended PersonStatus = "Ascended"
)

// Severity ranks how damaging a secret is
type Severity string

const (
	SeverityGossip  Severity = "Gossip"
	SeverityScandal Severity = "Scandal"
	SeverityFatal   Severity = "Fatal"
)

// WorldStats is the scalar snapshot of the world
type WorldStats struct {
	Year               int    `json:"year" yaml:"year"`
	Population         int    `json:"population" yaml:"population"`
	TechnologicalLevel string `json:"technologicalLevel" yaml:"technological_level"`
	CulturalVibe       string `json:"culturalVibe" yaml:"cultural_vibe"`
	DominantReligion   string `json:"dominantReligion" yaml:"dominant_religion"`
}

// Faction is keyed by its name
type Faction struct {
	Name        string   `json:"name" yaml:"name"`
	Power       int      `json:"power" yaml:"power"`
	Attitude    int      `json:"attitude" yaml:"attitude"`
	Tenets      []string `json:"tenets" yaml:"tenets"`
	Color       string   `json:"color" yaml:"color"`
	Region      string   `json:"region,omitempty" yaml:"region"`
	Description string   `json:"description,omitempty" yaml:"description"`
	History     string   `json:"history,omitempty" yaml:"history"`
}

// Relationship is a directional tie from its owner to another person
type Relationship struct {
	TargetID    string `json:"targetId" yaml:"target_id"`
	TargetName  string `json:"targetName" yaml:"target_name"`
	Value       int    `json:"value" yaml:"value"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	IsSecret    bool   `json:"isSecret,omitempty" yaml:"is_secret"`
}

// Secret is hidden information about a person, de-duplicated by title
type Secret struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	KnownBy     []string `json:"knownBy" yaml:"known_by"`
}

// Person is a notable figure of the world
type Person struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	FactionName   string         `json:"factionName" yaml:"faction_name"`
	Role          string         `json:"role" yaml:"role"`
	Description   string         `json:"description" yaml:"description"`
	Biography     string         `json:"biography" yaml:"biography"`
	BirthYear     int            `json:"birthYear" yaml:"birth_year"`
	DeathYear     *int           `json:"deathYear,omitempty" yaml:"death_year"`
	Status        PersonStatus   `json:"status" yaml:"status"`
	Traits        []string       `json:"traits" yaml:"traits"`
	PortraitURL   string         `json:"portraitUrl,omitempty" yaml:"portrait_url"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
	Secrets       []Secret       `json:"secrets" yaml:"secrets"`
}

// LogEntry is one chronicle entry
type LogEntry struct {
	ID               string   `json:"id" yaml:"id"`
	Year             int      `json:"year" yaml:"year"`
	Type             LogType  `json:"type" yaml:"type"`
	Content          string   `json:"content" yaml:"content"`
	Flavor           string   `json:"flavor,omitempty" yaml:"flavor"`
	ImageURL         string   `json:"imageUrl,omitempty" yaml:"image_url"`
	RelatedFigureIDs []string `json:"relatedFigureIds,omitempty" yaml:"related_figure_ids"`
}

// DecisionOption is one answer to a petition
type DecisionOption struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	ConsequenceHint string `json:"consequenceHint"`
}

// PendingDecision is a petition awaiting the player's answer
type PendingDecision struct {
	ID         string           `json:"id"`
	SenderName string           `json:"senderName"`
	SenderRole string           `json:"senderRole"`
	Message    string           `json:"message"`
	Options    []DecisionOption `json:"options"`
}

// StatsOverride carries the partial stats returned by the oracle
type StatsOverride struct {
	TechnologicalLevel string `json:"technologicalLevel,omitempty"`
	CulturalVibe       string `json:"culturalVibe,omitempty"`
	DominantReligion   string `json:"dominantReligion,omitempty"`
}

// SimulationRequest is the input of one oracle call
type SimulationRequest struct {
	Stats          WorldStats
	Factions       []Faction
	Persons        []Person
	RecentLogs     []LogEntry
	Command        *string
	DecisionChoice *string
	YearsToAdvance int
}

// SimulationResult is the normalized output of one oracle call
type SimulationResult struct {
	NewYear          int              `json:"newYear"`
	PopulationChange int              `json:"populationChange"`
	Logs             []LogEntry       `json:"logs"`
	Factions         []Faction        `json:"factions"`
	UpdatedFigures   []Person         `json:"updatedFigures"`
	Stats            StatsOverride    `json:"stats"`
	PendingDecision  *PendingDecision `json:"pendingDecision"`
}

// SaveState is the full tuple held in the save slot
type SaveState struct {
	Stats           WorldStats       `json:"stats"`
	Factions        []Faction        `json:"factions"`
	Figures         []Person         `json:"figures"`
	Logs            []LogEntry       `json:"logs"`
	PendingDecision *PendingDecision `json:"pendingDecision"`
	LastSaved       time.Time        `json:"lastSaved"`
}

// PastWorld is an archived, concluded world
type PastWorld struct {
	ID              string    `json:"id"`
	EndedAt         time.Time `json:"endedAt"`
	FinalYear       int       `json:"finalYear"`
	FinalPopulation int       `json:"finalPopulation"`
	FinalEra        string    `json:"finalEra"`
	DominantFaction string    `json:"dominantFaction"`
	Summary         string    `json:"summary"`
	FinalFigures    []Person  `json:"finalFigures"`
}

// Phase is the orchestrator's state machine position
type Phase string

const (
	PhaseIdle            Phase = "Idle"
	PhaseTurnInFlight    Phase = "TurnInFlight"
	PhaseDecisionPending Phase = "DecisionPending"
)

// Snapshot is a read-only copy of the world handed to presentation layers
type Snapshot struct {
	Stats           WorldStats       `json:"stats"`
	Factions        []Faction        `json:"factions"`
	Persons         []Person         `json:"persons"`
	Logs            []LogEntry       `json:"logs"`
	Queue           []string         `json:"queue"`
	QueuedSecretIDs []string         `json:"queuedSecretIds"`
	PendingDecision *PendingDecision `json:"pendingDecision"`
	Phase           Phase            `json:"phase"`
	Loading         bool             `json:"loading"`
	Started         bool             `json:"started"`
	Playing         bool             `json:"playing"`
	Progress        float64          `json:"progress"`
}
