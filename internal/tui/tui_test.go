package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/types"
)

type MockWorld struct {
	mock.Mock
}

func (m *MockWorld) Snapshot() types.Snapshot {
	args := m.Called()
	return args.Get(0).(types.Snapshot)
}

func (m *MockWorld) Enqueue(ctx context.Context, text string) error {
	return m.Called(text).Error(0)
}

func (m *MockWorld) Submit(ctx context.Context, command string) error {
	return m.Called(command).Error(0)
}

func (m *MockWorld) Decide(ctx context.Context, optionID *string) error {
	return m.Called(optionID).Error(0)
}

func (m *MockWorld) RevealSecret(ctx context.Context, personID, secretID string) error {
	return m.Called(personID, secretID).Error(0)
}

func (m *MockWorld) SetPlaying(playing bool) {
	m.Called(playing)
}

func (m *MockWorld) GeneratePortrait(ctx context.Context, personID string) error {
	return m.Called(personID).Error(0)
}

func (m *MockWorld) ArchiveAndReset(ctx context.Context) (*types.PastWorld, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PastWorld), args.Error(1)
}

func (m *MockWorld) ListArchives(ctx context.Context) ([]types.PastWorld, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.PastWorld), args.Error(1)
}

func (m *MockWorld) DecisionRemaining() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

func worldSnapshot() types.Snapshot {
	return types.Snapshot{
		Stats: types.WorldStats{Year: 42, Population: 7000, TechnologicalLevel: "Age of Myth"},
		Factions: []types.Faction{
			{Name: "Silent Watchers", Power: 30, Color: "#06B6D4"},
			{Name: "Aurean Holy See", Power: 45, Color: "#F59E0B"},
		},
		Logs: []types.LogEntry{
			{ID: "init", Year: 0, Type: types.LogSystem, Content: "The land split."},
			{ID: "l1", Year: 40, Type: types.LogChat, Content: "\"Let there be rain\""},
		},
		Phase:   types.PhaseIdle,
		Started: true,
		Playing: true,
	}
}

func typeText(m tea.Model, text string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func sized(t *testing.T, world *MockWorld) tea.Model {
	t.Helper()
	m, _ := NewModel(world).Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestEnterQueuesDecree(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())
	world.On("Enqueue", "Let there be light").Return(nil).Once()

	m := typeText(sized(t, world), "Let there be light")

	assert.Equal(t, "Decree queued.", m.(model).status)
	assert.Empty(t, m.(model).textInput.Value())
	world.AssertExpectations(t)
}

func TestEnqueueErrorIsShown(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())
	world.On("Enqueue", "hush").Return(game.ErrEmptyCommand).Once()

	m := typeText(sized(t, world), "hush")

	assert.ErrorIs(t, m.(model).err, game.ErrEmptyCommand)
}

func TestAnswerPetition(t *testing.T) {
	snap := worldSnapshot()
	snap.Phase = types.PhaseDecisionPending
	snap.PendingDecision = &types.PendingDecision{
		ID:         "dec-1",
		SenderName: "Astrologer Luna",
		SenderRole: "Oracle",
		Message:    "The stars fall. What shall we do?",
		Options:    []types.DecisionOption{{ID: "opt-1", Text: "Pray"}, {ID: "opt-2", Text: "Flee"}},
	}

	world := new(MockWorld)
	world.On("Snapshot").Return(snap)
	world.On("DecisionRemaining").Return(12 * time.Second)
	world.On("Decide", mock.MatchedBy(func(id *string) bool {
		return id != nil && *id == "opt-2"
	})).Return(nil).Once()

	m := sized(t, world)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/b")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = m.Update(cmd())
	assert.Equal(t, "Your will is done: Flee", m.(model).status)
	assert.NoError(t, m.(model).err)

	view := m.View()
	assert.Contains(t, view, "Astrologer Luna, Oracle")
	assert.Contains(t, view, "/b  Flee")
	assert.Contains(t, view, "Awaiting your answer (12s)")

	world.AssertExpectations(t)
}

func TestAnswerWithoutPetition(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())

	m := typeText(sized(t, world), "/silence")

	assert.ErrorIs(t, m.(model).err, game.ErrNoPendingDecision)
	world.AssertNotCalled(t, "Decide", mock.Anything)
}

func TestPauseToggle(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())
	world.On("SetPlaying", false).Once()
	world.On("SetPlaying", true).Once()

	m := sized(t, world)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.False(t, m.(model).snap.Playing)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.True(t, m.(model).snap.Playing)

	world.AssertExpectations(t)
}

func TestSnapshotRefreshRendersChronicle(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(types.Snapshot{})

	m := sized(t, world)
	m, cmd := m.Update(snapshotMsg{snap: worldSnapshot()})
	assert.NotNil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "Year 42")
	assert.Contains(t, view, "Let there be rain")
	assert.Contains(t, view, "Aurean Holy See")
	assert.Contains(t, view, "Population: 7000")
}

func TestRevealAndUnknownCommand(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())
	world.On("RevealSecret", "fig-ignatius", "sec-ignatius-1").Return(nil).Once()

	m := typeText(sized(t, world), "/reveal fig-ignatius sec-ignatius-1")
	assert.Equal(t, "A secret will come to light.", m.(model).status)

	m = typeText(m, "/smite")
	assert.EqualError(t, m.(model).err, "unknown command /smite")

	world.AssertExpectations(t)
}

func TestArchiveCommand(t *testing.T) {
	world := new(MockWorld)
	world.On("Snapshot").Return(worldSnapshot())
	world.On("ArchiveAndReset").Return(&types.PastWorld{ID: "w1", FinalYear: 42}, nil).Once()

	m := sized(t, world)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/archive")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.Equal(t, "The world ended in year 42. A new one begins.", m.(model).status)
	world.AssertExpectations(t)
}
