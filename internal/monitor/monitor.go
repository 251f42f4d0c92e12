// Package monitor is a live view over the one-shot aggregation pipeline:
// it re-gathers on a timer and whenever the transcript file changes, and
// shows the rendered statusline with progress bars for both rate-limit
// windows. It holds no state of its own beyond the last gather.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/tau/claude-statusline/internal/render"
	"github.com/tau/claude-statusline/internal/statusline"
)

const refreshEvery = 15 * time.Second

// messages

type dataMsg render.Data

type tickMsg time.Time

type transcriptChangedMsg struct{}

// styles

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Width(10).
			Foreground(lipgloss.Color("252"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)
)

// Model is the bubbletea model of the monitor view.
type Model struct {
	app   *statusline.App
	input *statusline.Input

	spinner  spinner.Model
	fiveBar  progress.Model
	sevenBar progress.Model

	watcher *fsnotify.Watcher

	data   render.Data
	loaded bool
	width  int
}

// New builds the monitor over an app and a parsed request document.
func New(app *statusline.App, in *statusline.Input) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	m := Model{
		app:      app,
		input:    in,
		spinner:  s,
		fiveBar:  newBar(30),
		sevenBar: newBar(30),
	}

	// Best-effort: without a watcher the timer alone drives refreshes.
	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(in.TranscriptPath); err == nil {
			m.watcher = w
		} else {
			w.Close()
		}
	}
	return m
}

func newBar(width int) progress.Model {
	return progress.New(
		progress.WithScaledGradient("#76EEC6", "#FF6347"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
}

// Run starts the monitor program and blocks until it quits.
func Run(app *statusline.App, in *statusline.Input) error {
	m := New(app, in)
	defer m.close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m Model) close() {
	if m.watcher != nil {
		m.watcher.Close()
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.gather(), tick()}
	if m.watcher != nil {
		cmds = append(cmds, m.awaitChange())
	}
	return tea.Batch(cmds...)
}

func (m Model) gather() tea.Cmd {
	return func() tea.Msg {
		return dataMsg(m.app.Gather(m.input))
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// awaitChange blocks on the watcher until the transcript grows.
func (m Model) awaitChange() tea.Cmd {
	return func() tea.Msg {
		for ev := range m.watcher.Events {
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				return transcriptChangedMsg{}
			}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.gather()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case dataMsg:
		m.data = render.Data(msg)
		m.loaded = true

	case tickMsg:
		return m, tea.Batch(m.gather(), tick())

	case transcriptChangedMsg:
		cmds := []tea.Cmd{m.gather()}
		if m.watcher != nil {
			cmds = append(cmds, m.awaitChange())
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	title := titleStyle.Render("claude-statusline monitor")

	if !m.loaded {
		return boxStyle.Render(title + "\n\n" + m.spinner.View() + " gathering…")
	}

	var body string
	body += title + "\n\n"
	if m.data.Usage != nil {
		body += labelStyle.Render("5h") + m.fiveBar.ViewAs(m.data.Usage.FiveHourPercent/100) + "\n"
		body += labelStyle.Render("7d") + m.sevenBar.ViewAs(m.data.Usage.SevenDayPercent/100) + "\n\n"
	} else {
		body += labelStyle.Render("limits") + "unavailable\n\n"
	}
	body += render.Statusline(m.data) + "\n\n"
	body += footerStyle.Render("r refresh · q quit")

	return boxStyle.Render(body)
}
