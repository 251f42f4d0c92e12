// Package render turns the gathered session state into the statusline
// text: one primary line of separator-joined segments plus a detail line
// per running agent. Rendering is pure; all inputs arrive in Data.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tau/claude-statusline/internal/transcript"
	"github.com/tau/claude-statusline/internal/usage"
)

const (
	separator = " | "

	maxAgentLines  = 5
	agentTypeWidth = 14
	maxDescription = 45
)

// Data carries every input of one render.
type Data struct {
	Usage          *usage.Snapshot // nil when unavailable
	State          transcript.State
	ContextPercent float64
	ModelLabel     string
	CurrentVersion string
	LatestVersion  string
	LinesAdded     int
	LinesRemoved   int
	Now            time.Time
}

// styles

var (
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	boldStyle   = lipgloss.NewStyle().Bold(true)

	badgeStyles = map[transcript.Model]lipgloss.Style{
		transcript.ModelOpus:    lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		transcript.ModelSonnet:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		transcript.ModelHaiku:   lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		transcript.ModelUnknown: dimStyle,
	}
)

// level is a threshold color bucket.
type level int

const (
	levelGreen level = iota
	levelYellow
	levelRed
)

func (l level) style() lipgloss.Style {
	switch l {
	case levelYellow:
		return yellowStyle
	case levelRed:
		return redStyle
	default:
		return greenStyle
	}
}

// rateLimitLevel buckets a rate-limit percentage: green below 60, yellow
// below 80, red from 80 up.
func rateLimitLevel(pct float64) level {
	switch {
	case pct >= 80:
		return levelRed
	case pct >= 60:
		return levelYellow
	default:
		return levelGreen
	}
}

// contextLevel buckets the context fill percentage: green below 70, yellow
// below 85, red from 85 up.
func contextLevel(pct float64) level {
	switch {
	case pct >= 85:
		return levelRed
	case pct >= 70:
		return levelYellow
	default:
		return levelGreen
	}
}

// Statusline renders the full output block.
func Statusline(d Data) string {
	lines := []string{primaryLine(d)}
	lines = append(lines, agentLines(d)...)
	return strings.Join(lines, "\n")
}

func primaryLine(d Data) string {
	var segs []string

	if d.Usage != nil {
		segs = append(segs,
			rateSegment("5h", d.Usage.FiveHourPercent),
			rateSegment("7d", d.Usage.SevenDayPercent),
		)
	} else {
		segs = append(segs, dimStyle.Render("5h unknown"), dimStyle.Render("7d unknown"))
	}

	segs = append(segs, contextLevel(d.ContextPercent).style().
		Render(fmt.Sprintf("ctx %.0f%%", d.ContextPercent)))

	segs = append(segs, greenStyle.Render(fmt.Sprintf("+%d", d.LinesAdded))+
		"/"+redStyle.Render(fmt.Sprintf("-%d", d.LinesRemoved)))

	if n := d.State.RunningCount(); n > 0 {
		noun := "agents"
		if n == 1 {
			noun = "agent"
		}
		segs = append(segs, fmt.Sprintf("%d %s", n, noun))
	}

	if len(d.State.Todos) > 0 {
		segs = append(segs, todoSegment(d.State.Todos))
	}

	if d.ModelLabel != "" {
		segs = append(segs, boldStyle.Render(d.ModelLabel))
	}

	if v := versionSegment(d.CurrentVersion, d.LatestVersion); v != "" {
		segs = append(segs, dimStyle.Render(v))
	}

	return strings.Join(segs, separator)
}

func rateSegment(label string, pct float64) string {
	return rateLimitLevel(pct).style().Render(fmt.Sprintf("%s %.0f%%", label, pct))
}

func todoSegment(todos []transcript.TodoItem) string {
	done := 0
	for _, t := range todos {
		if t.Status == "completed" {
			done++
		}
	}
	style := yellowStyle
	if done == len(todos) {
		style = greenStyle
	}
	return style.Render(fmt.Sprintf("todos %d/%d", done, len(todos)))
}

// versionSegment formats the tool version with its update indicator.
// Empty when neither version is known.
func versionSegment(current, latest string) string {
	switch {
	case current == "" && latest == "":
		return ""
	case current == "":
		return fmt.Sprintf("v%s (latest)", latest)
	case latest == "":
		return fmt.Sprintf("v%s", current)
	case current == latest:
		return fmt.Sprintf("v%s (latest)", current)
	default:
		return fmt.Sprintf("v%s (update avail)", current)
	}
}

func agentLines(d Data) []string {
	var lines []string
	for _, a := range d.State.Agents {
		if a.Status != transcript.StatusRunning {
			continue
		}
		if len(lines) >= maxAgentLines {
			break
		}
		badge := badgeStyles[a.Model].Render("●")
		lines = append(lines, fmt.Sprintf("%s %-*.*s %6s  %s",
			badge, agentTypeWidth, agentTypeWidth, a.Type,
			formatElapsed(d.Now.Sub(a.StartTime)),
			truncate(a.Description, maxDescription)))
	}
	return lines
}

// formatElapsed renders a wall-time duration compactly: 42s, 3m05s, 1h12m.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
