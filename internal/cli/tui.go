package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/careerpulse/internal/client"
	"github.com/raphaelgruber/careerpulse/internal/models"
)

// logLines is how many progress lines stay visible while streaming.
const logLines = 6

// Theme holds the color scheme for the insights view.
type Theme struct {
	Status   lipgloss.Color
	Success  lipgloss.Color
	Error    lipgloss.Color
	Hint     lipgloss.Color
	Selected lipgloss.Color
}

var defaultTheme = Theme{
	Status:   lipgloss.Color("#5FAFD7"), // light blue
	Success:  lipgloss.Color("#00D787"), // green
	Error:    lipgloss.Color("#FF005F"), // red
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
	Selected: lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) selectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Selected)
}

// progressMsg carries a snapshot after each received frame.
type progressMsg struct {
	progress client.Progress
}

// streamDoneMsg ends the stream phase.
type streamDoneMsg struct {
	result *client.Result
	err    error
}

// commitMsg carries the outcome of a save.
type commitMsg struct {
	view *models.ProfileView
	err  error
}

// insightsModel is the bubbletea model for one run: it renders progress
// while streaming and becomes a selection list once the run completes.
type insightsModel struct {
	client    *client.Client
	topic     string
	profileID string

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan tea.Msg

	progress progress.Model
	theme    Theme

	snap   client.Progress
	result *client.Result
	sel    *client.Selection
	cursor int
	notice string

	committing bool
	saved      *models.ProfileView
	commitErr  error

	err      error
	quitting bool
}

func newInsightsModel(ctx context.Context, c *client.Client, topic, profileID string) insightsModel {
	ctx, cancel := context.WithCancel(ctx)
	return insightsModel{
		client:    c,
		topic:     topic,
		profileID: profileID,
		ctx:       ctx,
		cancel:    cancel,
		updates:   make(chan tea.Msg, 64),
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

// Init starts the stream and the first wait for its messages.
func (m insightsModel) Init() tea.Cmd {
	return tea.Batch(
		m.stream(),
		waitForUpdate(m.updates),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m insightsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg.String())

	case progressMsg:
		m.snap = msg.progress
		return m, waitForUpdate(m.updates)

	case streamDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.snap.State = client.StateFailed
			return m, nil
		}
		sel, err := client.NewSelection(msg.result)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.result = msg.result
		m.sel = sel
		m.snap.State = client.StateComplete
		return m, nil

	case commitMsg:
		m.committing = false
		if msg.err != nil {
			m.commitErr = msg.err
			m.notice = "Save failed; your selection is kept, press enter to retry"
			return m, nil
		}
		m.commitErr = nil
		m.saved = msg.view
		m.notice = ""
		return m, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey applies one key press. Curation keys only act on a completed run.
func (m insightsModel) handleKey(key string) (insightsModel, tea.Cmd) {
	switch key {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	}

	if m.sel == nil || m.committing {
		return m, nil
	}

	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.result.Len()-1 {
			m.cursor++
		}
	case "space", " ", "x":
		if m.result.Len() == 0 {
			return m, nil
		}
		id := m.result.Insights()[m.cursor].ID
		switch m.sel.Toggle(id) {
		case client.LimitReached:
			m.notice = fmt.Sprintf("Limit reached: at most %d insights per profile", client.MaxSelection)
		default:
			m.notice = ""
		}
	case "enter", "s":
		switch {
		case m.profileID == "":
			m.notice = "No profile given; rerun with --profile to save"
		case !m.sel.CanCommit():
			m.notice = "Select at least one insight to save"
		default:
			m.committing = true
			m.notice = ""
			return m, m.commit()
		}
	}
	return m, nil
}

// View renders the insights view.
func (m insightsModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m insightsModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.snap.State)))
	fmt.Fprintf(&b, " %s %s\n\n", m.progress.ViewAs(progressFraction(m.snap)), m.topic)

	switch {
	case m.err != nil:
		m.renderLog(&b, len(m.snap.Log))
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Analysis failed: %s\n", m.err)))
		b.WriteString(m.theme.hintStyle().Render("Press q to quit") + "\n")
	case m.result != nil:
		m.renderSelection(&b)
	default:
		m.renderLog(&b, logLines)
		b.WriteString(m.theme.hintStyle().Render("Press q to cancel") + "\n")
	}
	return b.String()
}

func (m insightsModel) renderLog(b *strings.Builder, n int) {
	log := m.snap.Log
	if len(log) > n {
		log = log[len(log)-n:]
	}
	for _, line := range log {
		b.WriteString("  " + line + "\n")
	}
}

func (m insightsModel) renderSelection(b *strings.Builder) {
	s := m.result.Summary()
	b.WriteString(m.theme.completedStyle().Render(fmt.Sprintf("✓ %d insights", m.result.Len())) + "\n")
	fmt.Fprintf(b, "  %s\n\n", s.GeneralTrend)

	for i, rec := range m.result.Insights() {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		box := "[ ]"
		line := fmt.Sprintf("%d. %s (%s, %s)", rec.ID, rec.Title, rec.Category, rec.Relevance)
		if m.sel.Contains(rec.ID) {
			box = "[x]"
			line = m.theme.selectedStyle().Render(line)
		}
		fmt.Fprintf(b, "%s%s %s\n", cursor, box, line)
	}

	fmt.Fprintf(b, "\nSelected %d/%d\n", m.sel.Len(), client.MaxSelection)
	if m.notice != "" {
		style := m.theme.hintStyle()
		if m.commitErr != nil || strings.HasPrefix(m.notice, "Limit") {
			style = m.theme.errorStyle()
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}
	switch {
	case m.committing:
		b.WriteString(m.theme.statusStyle().Render("Saving...") + "\n")
	case m.saved != nil:
		b.WriteString(m.theme.completedStyle().Render(fmt.Sprintf("✓ Saved %d insights to %s", len(m.saved.Insights), m.saved.ID)) + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("↑/↓ move • space toggle • enter save • q quit") + "\n")
}

// progressFraction maps a run snapshot onto the progress bar: the first
// half covers the progress steps, the second half the insights.
func progressFraction(p client.Progress) float64 {
	switch {
	case p.State == client.StateComplete:
		return 1
	case p.Total > 0:
		return 0.5 + 0.5*float64(len(p.Insights))/float64(p.Total)
	case p.Steps > 0:
		return 0.5 * float64(p.Step) / float64(p.Steps)
	}
	return 0
}

// stream runs the push channel consumer and forwards its snapshots to the
// update channel. Sends stop once the view is closed.
func (m insightsModel) stream() tea.Cmd {
	return func() tea.Msg {
		result, err := m.client.StreamInsights(m.ctx, m.topic, func(p client.Progress) {
			m.send(progressMsg{progress: p})
		})
		m.send(streamDoneMsg{result: result, err: err})
		return nil
	}
}

func (m insightsModel) send(msg tea.Msg) {
	select {
	case m.updates <- msg:
	case <-m.ctx.Done():
	}
}

func (m insightsModel) commit() tea.Cmd {
	sel := m.sel
	return func() tea.Msg {
		view, err := m.client.CommitSelection(m.ctx, m.profileID, sel)
		return commitMsg{view: view, err: err}
	}
}

func waitForUpdate(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// RunInsightsView runs the interactive insights view for topic. Selected
// insights are saved to profileID when one is given.
func RunInsightsView(ctx context.Context, c *client.Client, topic, profileID string) error {
	model := newInsightsModel(ctx, c, topic, profileID)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("insights UI error: %w", err)
	}

	m, ok := finalModel.(insightsModel)
	if !ok {
		return nil
	}
	m.cancel()
	switch {
	case m.err != nil && !errors.Is(m.err, context.Canceled):
		return m.err
	case m.saved != nil:
		fmt.Printf("Saved %d insights to profile %s\n", len(m.saved.Insights), m.saved.ID)
	case m.commitErr != nil:
		return m.commitErr
	}
	return nil
}
