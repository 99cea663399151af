package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/interfaces"
	"github.com/user/silent-god/internal/types"
)

// World is what the terminal client drives
type World interface {
	interfaces.WorldManager
	DecisionRemaining() time.Duration
}

const refreshInterval = 200 * time.Millisecond

type model struct {
	world     World
	snap      types.Snapshot
	textInput textinput.Model
	viewport  viewport.Model
	clock     progress.Model
	status    string
	err       error
	logCount  int
	width     int
	height    int
	ready     bool
}

var (
	yearStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	entryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DC2626"))

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	petitionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 1)
)

// NewModel creates the terminal client for a running world
func NewModel(world World) model {
	ti := textinput.New()
	ti.Placeholder = "Speak to your people..."
	ti.Focus()
	ti.CharLimit = 280
	ti.Width = 60

	return model{
		world:     world,
		snap:      world.Snapshot(),
		textInput: ti,
		clock:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

type snapshotMsg struct {
	snap types.Snapshot
}

type actionDoneMsg struct {
	status string
	err    error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refresh())
}

func (m model) refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return snapshotMsg{snap: m.world.Snapshot()}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlP:
			m.snap.Playing = !m.snap.Playing
			m.world.SetPlaying(m.snap.Playing)
			if m.snap.Playing {
				m.status = "Time flows."
			} else {
				m.status = "Time is frozen."
			}
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.Reset()
			return m.handleInput(input)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logWidth := int(float64(msg.Width) * 0.7)
		if !m.ready {
			m.viewport = viewport.New(logWidth, msg.Height-8)
			m.ready = true
		} else {
			m.viewport.Width = logWidth
			m.viewport.Height = msg.Height - 8
		}
		m.clock.Width = logWidth - 4
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()

	case snapshotMsg:
		m.snap = msg.snap
		if len(m.snap.Logs) != m.logCount {
			m.logCount = len(m.snap.Logs)
			m.viewport.SetContent(m.renderLog())
			m.viewport.GotoBottom()
		}
		return m, m.refresh()

	case actionDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// handleInput queues plain text as a decree and runs slash commands
func (m model) handleInput(input string) (tea.Model, tea.Cmd) {
	m.err = nil
	if !strings.HasPrefix(input, "/") {
		if err := m.world.Enqueue(context.Background(), input); err != nil {
			m.err = err
			return m, nil
		}
		m.status = "Decree queued."
		return m, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "quit":
		return m, tea.Quit
	case "now":
		m.status = "The heavens stir..."
		return m, m.run(func(ctx context.Context) (string, error) {
			return "The age turns.", m.world.Submit(ctx, arg)
		})
	case "a", "b", "c", "d":
		return m.answer(int(strings.ToLower(name)[0] - 'a'))
	case "silence":
		return m.answer(-1)
	case "reveal":
		personID, secretID, _ := strings.Cut(arg, " ")
		if err := m.world.RevealSecret(context.Background(), personID, strings.TrimSpace(secretID)); err != nil {
			m.err = err
			return m, nil
		}
		m.status = "A secret will come to light."
		return m, nil
	case "portrait":
		m.status = "Painting " + arg + "..."
		return m, m.run(func(ctx context.Context) (string, error) {
			return "Portrait painted.", m.world.GeneratePortrait(ctx, arg)
		})
	case "archive":
		return m, m.run(func(ctx context.Context) (string, error) {
			world, err := m.world.ArchiveAndReset(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("The world ended in year %d. A new one begins.", world.FinalYear), nil
		})
	}

	m.err = fmt.Errorf("unknown command /%s", name)
	return m, nil
}

func (m model) answer(index int) (tea.Model, tea.Cmd) {
	pd := m.snap.PendingDecision
	if pd == nil {
		m.err = game.ErrNoPendingDecision
		return m, nil
	}

	var optionID *string
	status := "You kept silent."
	if index >= 0 {
		if index >= len(pd.Options) {
			m.err = game.ErrUnknownOption
			return m, nil
		}
		id := pd.Options[index].ID
		optionID = &id
		status = "Your will is done: " + pd.Options[index].Text
	}

	return m, m.run(func(ctx context.Context) (string, error) {
		return status, m.world.Decide(ctx, optionID)
	})
}

func (m model) run(action func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := action(context.Background())
		return actionDoneMsg{status: status, err: err}
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  Awakening the world...\n"
	}

	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		m.renderState(),
	)

	var footer []string
	footer = append(footer, m.renderClock())
	if pd := m.snap.PendingDecision; pd != nil {
		footer = append(footer, m.renderPetition(pd))
	}
	footer = append(footer, m.textInput.View())
	switch {
	case m.err != nil:
		footer = append(footer, errorStyle.Render("Error: "+describe(m.err)))
	case m.status != "":
		footer = append(footer, helpStyle.Render(m.status))
	}
	footer = append(footer, helpStyle.Render("Type a decree, or /now [words], /a../d, /silence, /reveal <person> <secret>, /archive, /quit. Ctrl+P pauses."))

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, append([]string{mainView}, footer...)...) + "\n"
}

func (m model) renderClock() string {
	label := "Idle"
	switch {
	case m.snap.Phase == types.PhaseTurnInFlight:
		label = "The oracle speaks..."
	case m.snap.Phase == types.PhaseDecisionPending:
		label = fmt.Sprintf("Awaiting your answer (%ds)", int(m.world.DecisionRemaining().Seconds()))
	case !m.snap.Playing:
		label = "Paused"
	}
	return fmt.Sprintf("Year %d  %s  %s", m.snap.Stats.Year, m.clock.ViewAs(m.snap.Progress/100), label)
}

func (m model) renderPetition(pd *types.PendingDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s:\n%s\n", pd.SenderName, pd.SenderRole, pd.Message)
	for i, option := range pd.Options {
		fmt.Fprintf(&b, "\n/%c  %s", 'a'+i, option.Text)
		if option.ConsequenceHint != "" {
			fmt.Fprintf(&b, "  (%s)", option.ConsequenceHint)
		}
	}
	b.WriteString("\n/silence")
	return petitionStyle.Width(int(float64(m.width) * 0.7)).Render(b.String())
}

func (m model) renderState() string {
	stats := m.snap.Stats

	world := titleStyle.Render("WORLD") + "\n" +
		fmt.Sprintf("Era: %s\nSpirit: %s\nFaith: %s\nPopulation: %d\n\n",
			stats.TechnologicalLevel, stats.CulturalVibe, stats.DominantReligion, stats.Population)

	factions := make([]types.Faction, len(m.snap.Factions))
	copy(factions, m.snap.Factions)
	sort.SliceStable(factions, func(i, j int) bool {
		return factions[i].Power > factions[j].Power
	})

	factionView := titleStyle.Render("FACTIONS") + "\n"
	for _, f := range factions {
		name := lipgloss.NewStyle().Foreground(lipgloss.Color(f.Color)).Render(f.Name)
		factionView += fmt.Sprintf("%s\n  power %d  devotion %+d\n", name, f.Power, f.Attitude)
	}

	queue := ""
	if len(m.snap.Queue) > 0 {
		queue = "\n" + titleStyle.Render("QUEUED") + "\n"
		for _, text := range m.snap.Queue {
			queue += "- " + text + "\n"
		}
	}

	stateWidth := int(float64(m.width) * 0.27)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(world + factionView + queue)
}

func (m model) renderLog() string {
	width := m.viewport.Width
	var b strings.Builder
	for _, entry := range m.snap.Logs {
		b.WriteString(yearStyle.Render(fmt.Sprintf("Year %d", entry.Year)))
		if entry.Flavor != "" {
			b.WriteString("  " + systemStyle.Render(entry.Flavor))
		}
		b.WriteString("\n")

		switch entry.Type {
		case types.LogChat, types.LogRevelation:
			b.WriteString(chatStyle.Width(width).Render("> " + entry.Content))
		case types.LogSystem:
			b.WriteString(systemStyle.Width(width).Render(entry.Content))
		default:
			b.WriteString(entryStyle.Width(width).Render(entry.Content))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func describe(err error) string {
	switch {
	case errors.Is(err, game.ErrTurnInFlight):
		return "the oracle is still speaking"
	case errors.Is(err, game.ErrNoPendingDecision):
		return "no petition awaits your answer"
	case errors.Is(err, game.ErrDecisionInProgress):
		return "an answer is already descending"
	}
	return err.Error()
}

// Run starts the terminal client and blocks until it quits
func Run(world World) error {
	p := tea.NewProgram(NewModel(world), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
