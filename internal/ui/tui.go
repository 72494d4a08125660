package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/offsearch/internal/bootstrap"
)

// TUIRenderer draws a live build board using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *buildModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a
// terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newBuildModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Track implements Renderer.
func (r *TUIRenderer) Track(names ...string) {
	r.tracker.Track(names...)
	r.send(refreshMsg{})
}

// BootstrapDidStart implements bootstrap.Listener.
func (r *TUIRenderer) BootstrapDidStart(idx bootstrap.Index) {
	r.tracker.Start(idx.Name())
	r.send(refreshMsg{})
}

// BootstrapDidFinish implements bootstrap.Listener.
func (r *TUIRenderer) BootstrapDidFinish(idx bootstrap.Index, err error) {
	r.tracker.Finish(idx.Name(), err)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

// buildModel is the bubbletea model for the build board.
type buildModel struct {
	tracker     *ProgressTracker
	title       string
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newBuildModel(tracker *ProgressTracker, title string) *buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &buildModel{
		tracker:     tracker,
		title:       title,
		width:       80,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *buildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-20, 20)

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *buildModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	contentWidth := max(m.width-4, 40)
	st := m.tracker.Stats()

	sections := []string{
		m.renderProgress(st),
		m.renderDivider(contentWidth),
		m.renderIndices(st, contentWidth),
	}
	if st.Done+st.Failed > 1 {
		sections = append(sections, m.renderDivider(contentWidth), m.renderSparkline(contentWidth))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(contentWidth).
		Render(strings.Join(sections, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(m.title), panel) + "\n" + m.renderStatusBar(st)
}

func (m *buildModel) renderProgress(st ProgressStats) string {
	if st.Total == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Dim.Render("Waiting for builds..."))
	}

	bar := m.progressBar.ViewAs(st.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", st.Progress*100))
	line := fmt.Sprintf("%d / %d indices", st.Done+st.Failed, st.Total)
	if st.ETA > 0 {
		line += "  •  ETA " + formatDuration(st.ETA)
	}
	return fmt.Sprintf("%s  %s\n%s", bar, pct, m.styles.Label.Render(line))
}

func (m *buildModel) renderIndices(st ProgressStats, width int) string {
	lines := make([]string, 0, len(st.Indices))
	for _, ip := range st.Indices {
		var icon string
		style := m.styles.Dim
		detail := ""
		switch ip.Stage {
		case StageBuilding:
			icon = m.spinner.View()
			style = m.styles.Active
			detail = formatDuration(time.Since(ip.Started))
		case StageDone:
			icon = "●"
			style = m.styles.Success
			detail = formatDuration(ip.Duration)
		case StageFailed:
			icon = "✗"
			style = m.styles.Error
			detail = truncateText(ip.Err.Error(), width-len(ip.Name)-8)
		default:
			icon = "○"
		}
		line := style.Render(icon + " " + ip.Name)
		if detail != "" {
			line += "  " + m.styles.Label.Render(detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *buildModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-16, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("build time")
}

func (m *buildModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *buildModel) renderStatusBar(st ProgressStats) string {
	if st.Failed == 0 {
		return m.styles.Dim.Render("q to quit")
	}
	failed := m.styles.Error.Render(fmt.Sprintf("✗ %d failed", st.Failed))
	return failed + m.styles.Dim.Render("  │  q to quit")
}

func (m *buildModel) renderComplete() string {
	var lines []string
	header := m.styles.Success.Render("✓ Build Complete")
	border := ColorLime
	if m.stats.Failed > 0 {
		header = m.styles.Warning.Render("⚠ Build Finished With Errors")
		border = ColorYellow
	}
	lines = append(lines, header, "")

	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", m.styles.Label.Render(fmt.Sprintf("%-10s", label)), m.styles.Active.Render(value))
	}
	lines = append(lines,
		row("Indices:", fmt.Sprintf("%d", m.stats.Indices)),
		row("Documents:", fmt.Sprintf("%d", m.stats.Documents)),
		row("Duration:", formatDuration(m.stats.Duration)),
	)
	if m.stats.Backend != "" {
		lines = append(lines, row("Backend:", m.stats.Backend))
	}
	for _, f := range m.tracker.Failures() {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %s: %v", f.Name, f.Err)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Width(max(m.width-4, 40)).
		Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncateText shortens s to at most n runes, marking the cut with "...".
func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-3]) + "..."
}

var _ Renderer = (*TUIRenderer)(nil)
