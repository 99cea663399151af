package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/interfaces"
	"github.com/user/silent-god/internal/types"
	"go.uber.org/zap"
)

var (
	ErrTurnInFlight       = errors.New("a turn is already in flight")
	ErrNoPendingDecision  = errors.New("no petition awaits an answer")
	ErrDecisionInProgress = errors.New("an answer is already being delivered")
	ErrUnknownOption      = errors.New("unknown petition option")
	ErrEmptyCommand       = errors.New("command is empty")
	ErrPersonNotFound     = errors.New("person not found")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrNotStarted         = errors.New("world has not started")
	ErrPortraitsDisabled  = errors.New("portrait generation is disabled")
)

// Manager owns the world state and drives the turn state machine
type Manager struct {
	stateLock sync.RWMutex
	config    config.GameConfig
	Logger    *zap.Logger

	oracle        interfaces.Oracle
	store         interfaces.Store
	portraits     interfaces.PortraitGenerator
	merger        *PersonMerger
	seeds         *DataLoader
	messageSender interfaces.MessageSender
	prophets      []string

	stats    types.WorldStats
	factions []types.Faction
	persons  []types.Person
	logs     []types.LogEntry
	queue    CommandQueue
	pending  *types.PendingDecision

	inFlight bool
	loading  bool
	started  bool
	playing  bool
	overlay  bool
	progress float64

	generating map[string]struct{}
	decision   *DecisionTimer
	autosave   *Autosaver
	now        func() time.Time
}

// Ensure Manager satisfies the interfaces.WorldManager interface
var _ interfaces.WorldManager = (*Manager)(nil)

// NewManager creates a new world manager seeded with the genesis world. Call
// Start to restore the save slot and let time flow.
func NewManager(cfg config.Config, oracle interfaces.Oracle, store interfaces.Store) *Manager {
	gm := &Manager{
		config:     cfg.Game,
		Logger:     zap.NewNop(), // Will be set by the server
		oracle:     oracle,
		store:      store,
		merger:     NewPersonMerger(cfg.Game.BiographyThreshold),
		seeds:      NewDataLoader(cfg.Game.SeedPath),
		generating: make(map[string]struct{}),
		now:        time.Now,
	}

	gm.decision = NewDecisionTimer(
		time.Duration(cfg.Game.DecisionTimeout)*time.Second,
		time.Duration(cfg.Game.DecisionSafetyTimeout)*time.Second,
	)
	gm.autosave = NewAutosaver(time.Duration(cfg.Game.AutosaveDelay)*time.Millisecond, func() {
		if err := gm.Save(context.Background()); err != nil {
			gm.Logger.Error("Autosave failed", zap.Error(err))
		}
	})

	gm.applySave(DefaultSeed().Save())
	return gm
}

// SetLogger sets the logger
func (gm *Manager) SetLogger(logger *zap.Logger) {
	gm.Logger = logger
}

// SetPortraitGenerator enables portrait generation
func (gm *Manager) SetPortraitGenerator(generator interfaces.PortraitGenerator) {
	gm.portraits = generator
}

// SetMessageSender sets the message sender used to reach prophets
func (gm *Manager) SetMessageSender(sender interfaces.MessageSender) {
	gm.messageSender = sender
}

// SetProphets sets the phone numbers that receive petitions
func (gm *Manager) SetProphets(numbers []string) {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()
	gm.prophets = append([]string(nil), numbers...)
}

// Start restores the save slot, falling back to the genesis seed, and lets
// time flow
func (gm *Manager) Start(ctx context.Context) error {
	state, err := gm.store.Load(ctx)
	if err != nil {
		// Persistence failures never block play
		gm.Logger.Error("Failed to load save slot", zap.Error(err))
		state = nil
	}

	if state == nil {
		seed, err := gm.seeds.LoadSeed()
		if err != nil {
			return fmt.Errorf("failed to load genesis seed: %w", err)
		}
		state = seed.Save()
		gm.Logger.Info("Starting a new world", zap.Int("factions", len(state.Factions)))
	} else {
		gm.Logger.Info("Restored world from save slot",
			zap.Int("year", state.Stats.Year),
			zap.Time("last_saved", state.LastSaved))
	}

	gm.stateLock.Lock()
	gm.applySave(state)
	gm.started = true
	gm.playing = true
	pending := gm.pending
	gm.stateLock.Unlock()

	if pending != nil {
		gm.armDecision(pending.ID)
	}
	return nil
}

// Stop cancels the decision countdown and flushes any unsaved state
func (gm *Manager) Stop(ctx context.Context) {
	gm.decision.Disarm()
	gm.autosave.Stop()

	gm.stateLock.RLock()
	started := gm.started
	gm.stateLock.RUnlock()
	if !started {
		return
	}
	if err := gm.Save(ctx); err != nil {
		gm.Logger.Error("Failed to save on shutdown", zap.Error(err))
	}
}

// applySave replaces the whole world. The caller holds the lock or owns gm.
func (gm *Manager) applySave(state *types.SaveState) {
	gm.stats = state.Stats
	gm.factions = MergeFactions(nil, state.Factions)
	gm.persons = append([]types.Person{}, state.Figures...)
	gm.logs = append([]types.LogEntry{}, state.Logs...)
	gm.pending = state.PendingDecision
	gm.queue = CommandQueue{}
	gm.progress = 0
}

// Snapshot returns a read-only copy of the world
func (gm *Manager) Snapshot() types.Snapshot {
	gm.stateLock.RLock()
	defer gm.stateLock.RUnlock()

	var pending *types.PendingDecision
	if gm.pending != nil {
		pd := *gm.pending
		pd.Options = append([]types.DecisionOption(nil), gm.pending.Options...)
		pending = &pd
	}

	return types.Snapshot{
		Stats:           gm.stats,
		Factions:        append([]types.Faction{}, gm.factions...),
		Persons:         append([]types.Person{}, gm.persons...),
		Logs:            append([]types.LogEntry{}, gm.logs...),
		Queue:           gm.queue.Texts(),
		QueuedSecretIDs: gm.queue.SecretIDs(),
		PendingDecision: pending,
		Phase:           gm.phase(),
		Loading:         gm.loading,
		Started:         gm.started,
		Playing:         gm.playing,
		Progress:        gm.progress,
	}
}

func (gm *Manager) phase() types.Phase {
	switch {
	case gm.inFlight:
		return types.PhaseTurnInFlight
	case gm.pending != nil:
		return types.PhaseDecisionPending
	default:
		return types.PhaseIdle
	}
}

// DecisionRemaining returns the time left before the pending petition
// resolves to silence
func (gm *Manager) DecisionRemaining() time.Duration {
	return gm.decision.Remaining()
}

// Enqueue appends a directive to the command queue. The queue is drained by
// the next turn.
func (gm *Manager) Enqueue(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyCommand
	}

	gm.stateLock.Lock()
	gm.queue.Push(QueuedCommand{Text: text})
	size := gm.queue.Len()
	gm.stateLock.Unlock()

	gm.Logger.Debug("Directive queued", zap.Int("queue_size", size))
	return nil
}

// RevealSecret queues a revelation directive exposing one of a person's
// secrets
func (gm *Manager) RevealSecret(ctx context.Context, personID, secretID string) error {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()

	for _, p := range gm.persons {
		if p.ID != personID {
			continue
		}
		for _, s := range p.Secrets {
			if s.ID == secretID {
				gm.queue.Push(QueuedCommand{
					Text:     RevelationDirective(p.Name, s),
					SecretID: s.ID,
				})
				gm.Logger.Info("Revelation queued",
					zap.String("person_id", p.ID),
					zap.String("secret", s.Title))
				return nil
			}
		}
		return ErrSecretNotFound
	}
	return ErrPersonNotFound
}

// Submit runs an explicit turn carrying the queue plus the given command
func (gm *Manager) Submit(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	var cmd *string
	if command != "" {
		cmd = &command
	}
	return gm.RunTurn(ctx, cmd, nil, gm.config.SubmitYears)
}

// ProcessQueue runs a turn when directives are waiting and nothing blocks
// them. It reports whether a turn was run.
func (gm *Manager) ProcessQueue(ctx context.Context) bool {
	gm.stateLock.RLock()
	ready := gm.started && !gm.inFlight && gm.pending == nil && gm.queue.Len() > 0
	gm.stateLock.RUnlock()
	if !ready {
		return false
	}

	err := gm.RunTurn(ctx, nil, nil, gm.config.TickYears)
	return err == nil
}

// RunTurn performs one oracle round trip. The queue is drained into the
// directive before the call; at most one turn runs at any time. Oracle
// failures are logged and swallowed. The oracle call outlives ctx: a caller
// that gives up does not abort the turn.
func (gm *Manager) RunTurn(ctx context.Context, command, decisionChoice *string, years int) error {
	req, directive, err := gm.beginTurn(command, decisionChoice, years)
	if err != nil {
		return err
	}

	gm.Logger.Info("Turn started",
		zap.Int("year", req.Stats.Year),
		zap.Int("years", years),
		zap.Bool("has_command", req.Command != nil),
		zap.Bool("has_decision", decisionChoice != nil))

	result, err := gm.callOracle(context.WithoutCancel(ctx), req)
	if err != nil {
		gm.failTurn(directive, err)
		return nil
	}

	gm.applyResult(result, years)
	return nil
}

// beginTurn takes the in-flight guard and prepares the oracle request
func (gm *Manager) beginTurn(command, decisionChoice *string, years int) (types.SimulationRequest, *string, error) {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()

	if !gm.started {
		return types.SimulationRequest{}, nil, ErrNotStarted
	}
	if gm.inFlight {
		return types.SimulationRequest{}, nil, ErrTurnInFlight
	}
	gm.inFlight = true
	gm.loading = true

	directive, _ := gm.queue.Drain(command)
	var forwarded *string
	if directive != nil {
		logType, cleaned := ClassifyDirective(*directive)
		forwarded = &cleaned
		gm.logs = append(gm.logs, types.LogEntry{
			ID:      "cmd-" + uuid.New().String(),
			Year:    gm.stats.Year,
			Type:    logType,
			Content: "\"" + cleaned + "\"",
		})
	}

	req := types.SimulationRequest{
		Stats:          gm.stats,
		Factions:       append([]types.Faction{}, gm.factions...),
		Persons:        gm.relevantPersons(),
		RecentLogs:     gm.recentLogs(),
		Command:        forwarded,
		DecisionChoice: decisionChoice,
		YearsToAdvance: years,
	}
	return req, forwarded, nil
}

// relevantPersons bounds the roster sent to the oracle: the living plus the
// recently dead
func (gm *Manager) relevantPersons() []types.Person {
	persons := make([]types.Person, 0, len(gm.persons))
	for _, p := range gm.persons {
		if p.Status == types.StatusAlive {
			persons = append(persons, p)
			continue
		}
		if p.Status == types.StatusDead && p.DeathYear != nil &&
			gm.stats.Year-*p.DeathYear < gm.config.DeathRecencyYears {
			persons = append(persons, p)
		}
	}
	return persons
}

func (gm *Manager) recentLogs() []types.LogEntry {
	window := gm.config.RecentLogWindow
	start := 0
	if window > 0 && len(gm.logs) > window {
		start = len(gm.logs) - window
	}
	return append([]types.LogEntry{}, gm.logs[start:]...)
}

// callOracle converts panics and empty results into errors
func (gm *Manager) callOracle(ctx context.Context, req types.SimulationRequest) (result *types.SimulationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("oracle panicked: %v", r)
		}
	}()

	result, err = gm.oracle.Advance(ctx, req)
	if err == nil && result == nil {
		err = errors.New("oracle returned no result")
	}
	return result, err
}

// failTurn releases the guard. The drained directive is not restored.
func (gm *Manager) failTurn(directive *string, err error) {
	gm.stateLock.Lock()
	gm.inFlight = false
	gm.loading = false
	pending := gm.pending
	gm.stateLock.Unlock()

	fields := []zap.Field{zap.Error(err)}
	if directive != nil {
		fields = append(fields, zap.String("dropped_directive", *directive))
	}
	gm.Logger.Warn("Turn failed", fields...)

	if pending != nil {
		gm.armDecision(pending.ID)
	}
}

// applyResult folds a successful oracle response into the world in one step
func (gm *Manager) applyResult(result *types.SimulationResult, years int) {
	gm.stateLock.Lock()

	gm.factions = MergeFactions(gm.factions, result.Factions)
	gm.persons = gm.merger.Merge(gm.persons, result.UpdatedFigures)

	newYear := result.NewYear
	if newYear < gm.stats.Year {
		newYear = gm.stats.Year
	}

	for _, entry := range result.Logs {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.Year == 0 {
			entry.Year = newYear
		}
		gm.logs = append(gm.logs, entry)
	}

	gm.stats.Year = newYear
	gm.stats.Population += result.PopulationChange
	if gm.stats.Population < 0 {
		gm.stats.Population = 0
	}
	if result.Stats.TechnologicalLevel != "" {
		gm.stats.TechnologicalLevel = result.Stats.TechnologicalLevel
	}
	if result.Stats.CulturalVibe != "" {
		gm.stats.CulturalVibe = result.Stats.CulturalVibe
	}
	if result.Stats.DominantReligion != "" {
		gm.stats.DominantReligion = result.Stats.DominantReligion
	}

	gm.pending = result.PendingDecision
	if gm.pending != nil {
		gm.logs = append(gm.logs, types.LogEntry{
			ID:      "petition-" + uuid.New().String(),
			Year:    newYear,
			Type:    types.LogPetition,
			Content: gm.pending.Message,
			Flavor:  fmt.Sprintf("Petition of %s (%s)", gm.pending.SenderName, gm.pending.SenderRole),
		})
	}

	gm.progress = 0
	gm.inFlight = false
	gm.loading = false

	pending := gm.pending
	stats := gm.stats
	prophets := append([]string(nil), gm.prophets...)
	gm.stateLock.Unlock()

	gm.Logger.Info("Turn finished",
		zap.Int("year", stats.Year),
		zap.Int("years", years),
		zap.Int("population", stats.Population),
		zap.Int("new_logs", len(result.Logs)),
		zap.Bool("petition", pending != nil))

	if pending != nil {
		gm.armDecision(pending.ID)
		go gm.notifyProphets(prophets, pending)
	}
	gm.markDirty()
}

// SetPlaying pauses or resumes the clock
func (gm *Manager) SetPlaying(playing bool) {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()
	gm.playing = playing
}

// SetOverlay marks a blocking overlay that freezes the clock
func (gm *Manager) SetOverlay(active bool) {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()
	gm.overlay = active
}

// Tick advances the clock by step percent when nothing blocks it. It
// reports whether the cycle completed, resetting progress to zero.
func (gm *Manager) Tick(step float64) bool {
	gm.stateLock.Lock()
	defer gm.stateLock.Unlock()

	if !gm.started || !gm.playing || gm.inFlight || gm.pending != nil ||
		gm.queue.Len() > 0 || gm.overlay {
		return false
	}

	gm.progress += step
	if gm.progress >= 100 {
		gm.progress = 0
		return true
	}
	return false
}

// Save writes the current world to the save slot
func (gm *Manager) Save(ctx context.Context) error {
	gm.stateLock.RLock()
	state := &types.SaveState{
		Stats:           gm.stats,
		Factions:        append([]types.Faction{}, gm.factions...),
		Figures:         append([]types.Person{}, gm.persons...),
		Logs:            append([]types.LogEntry{}, gm.logs...),
		PendingDecision: gm.pending,
		LastSaved:       gm.now(),
	}
	gm.stateLock.RUnlock()

	if err := gm.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save world: %w", err)
	}
	return nil
}

// markDirty schedules an autosave once the world has started
func (gm *Manager) markDirty() {
	gm.stateLock.RLock()
	started := gm.started
	gm.stateLock.RUnlock()
	if started {
		gm.autosave.Trigger()
	}
}

// ArchiveAndReset records the current world as a past world, clears the
// save slot and reseeds. Archive failures do not block the reset.
func (gm *Manager) ArchiveAndReset(ctx context.Context) (*types.PastWorld, error) {
	seed, err := gm.seeds.LoadSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to load genesis seed: %w", err)
	}

	gm.stateLock.Lock()
	if gm.inFlight {
		gm.stateLock.Unlock()
		return nil, ErrTurnInFlight
	}
	world := gm.pastWorld()
	gm.applySave(seed.Save())
	gm.stateLock.Unlock()

	gm.decision.Disarm()
	gm.autosave.Stop()

	if err := gm.store.Archive(ctx, world); err != nil {
		gm.Logger.Error("Failed to archive world", zap.String("world_id", world.ID), zap.Error(err))
	}
	if err := gm.store.Clear(ctx); err != nil {
		gm.Logger.Error("Failed to clear save slot", zap.Error(err))
	}

	gm.Logger.Info("World archived",
		zap.String("world_id", world.ID),
		zap.Int("final_year", world.FinalYear),
		zap.String("dominant_faction", world.DominantFaction))

	gm.markDirty()
	return &world, nil
}

// pastWorld summarizes the current world. The caller holds the lock.
func (gm *Manager) pastWorld() types.PastWorld {
	dominant := ""
	best := -1
	for _, f := range gm.factions {
		if f.Power > best {
			best = f.Power
			dominant = f.Name
		}
	}

	return types.PastWorld{
		ID:              uuid.New().String(),
		EndedAt:         gm.now(),
		FinalYear:       gm.stats.Year,
		FinalPopulation: gm.stats.Population,
		FinalEra:        gm.stats.TechnologicalLevel,
		DominantFaction: dominant,
		Summary:         gm.stats.CulturalVibe,
		FinalFigures:    append([]types.Person{}, gm.persons...),
	}
}

// ListArchives returns the archived worlds, newest first
func (gm *Manager) ListArchives(ctx context.Context) ([]types.PastWorld, error) {
	worlds, err := gm.store.ListArchives(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	return worlds, nil
}

// notifyProphets sends a new petition to every configured prophet
func (gm *Manager) notifyProphets(prophets []string, pd *types.PendingDecision) {
	if gm.messageSender == nil || len(prophets) == 0 {
		return
	}

	message := FormatPetition(pd)
	for _, prophet := range prophets {
		if _, err := gm.messageSender.SendMessage(prophet, prophet, message); err != nil {
			gm.Logger.Error("Failed to send petition",
				zap.String("prophet", prophet),
				zap.String("decision_id", pd.ID),
				zap.Error(err))
		}
	}
}

// FormatPetition renders a petition as a chat message with lettered options
func FormatPetition(pd *types.PendingDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🙏 *PETITION* 🙏\n\n%s, %s, prays:\n\n%s\n\n", pd.SenderName, pd.SenderRole, pd.Message)
	for i, option := range pd.Options {
		fmt.Fprintf(&b, "%s. %s\n", string(rune('A'+i)), option.Text)
	}
	b.WriteString("\nAnswer with */a*, */b*, */c* or */d*, or */silence* to stay silent.")
	return b.String()
}
