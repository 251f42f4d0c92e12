package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tau/claude-statusline/internal/transcript"
	"github.com/tau/claude-statusline/internal/usage"
)

var renderNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRateLimitLevels(t *testing.T) {
	cases := map[float64]level{
		0: levelGreen, 59: levelGreen,
		60: levelYellow, 79: levelYellow,
		80: levelRed, 100: levelRed,
	}
	for pct, want := range cases {
		assert.Equal(t, want, rateLimitLevel(pct), "rate limit %v%%", pct)
	}
}

func TestContextLevels(t *testing.T) {
	cases := map[float64]level{
		0: levelGreen, 69: levelGreen,
		70: levelYellow, 84: levelYellow,
		85: levelRed, 100: levelRed,
	}
	for pct, want := range cases {
		assert.Equal(t, want, contextLevel(pct), "context %v%%", pct)
	}
}

func TestPrimaryLineSegmentOrder(t *testing.T) {
	d := Data{
		Usage:          &usage.Snapshot{FiveHourPercent: 12, SevenDayPercent: 48},
		ContextPercent: 33,
		ModelLabel:     "Opus 4.5",
		CurrentVersion: "2.0.32",
		LatestVersion:  "2.0.33",
		LinesAdded:     12,
		LinesRemoved:   3,
		Now:            renderNow,
		State: transcript.State{
			Agents: []transcript.Agent{
				{ID: "a", Type: "explorer", Status: transcript.StatusRunning, StartTime: renderNow.Add(-2 * time.Minute)},
			},
			Todos: []transcript.TodoItem{
				{Content: "one", Status: "completed"},
				{Content: "two", Status: "pending"},
			},
		},
	}

	out := Statusline(d)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)

	first := lines[0]
	want := []string{"5h 12%", "7d 48%", "ctx 33%", "+12", "-3", "1 agent", "todos 1/2", "Opus 4.5", "v2.0.32 (update avail)"}
	last := -1
	for _, seg := range want {
		i := strings.Index(first, seg)
		require.GreaterOrEqual(t, i, 0, "segment %q missing from %q", seg, first)
		assert.Greater(t, i, last, "segment %q out of order in %q", seg, first)
		last = i
	}
	assert.Contains(t, first, separator)
}

func TestPrimaryLineUnavailableUsage(t *testing.T) {
	out := Statusline(Data{ContextPercent: 10, Now: renderNow})
	assert.Contains(t, out, "5h unknown")
	assert.Contains(t, out, "7d unknown")
	assert.NotContains(t, out, "agent")
	assert.NotContains(t, out, "todos")
}

func TestVersionSegment(t *testing.T) {
	assert.Equal(t, "", versionSegment("", ""))
	assert.Equal(t, "v2.0.0", versionSegment("2.0.0", ""))
	assert.Equal(t, "v2.1.0 (latest)", versionSegment("", "2.1.0"))
	assert.Equal(t, "v2.1.0 (latest)", versionSegment("2.1.0", "2.1.0"))
	assert.Equal(t, "v2.0.0 (update avail)", versionSegment("2.0.0", "2.1.0"))
}

func TestTodoSegmentColoring(t *testing.T) {
	allDone := []transcript.TodoItem{{Status: "completed"}, {Status: "completed"}}
	partial := []transcript.TodoItem{{Status: "completed"}, {Status: "in_progress"}}

	assert.Contains(t, todoSegment(allDone), "todos 2/2")
	assert.Contains(t, todoSegment(partial), "todos 1/2")
}

func TestAgentLinesCapAndLayout(t *testing.T) {
	var agents []transcript.Agent
	for i := 0; i < 7; i++ {
		agents = append(agents, transcript.Agent{
			ID:          string(rune('a' + i)),
			Type:        "a-very-long-subagent-type",
			Model:       transcript.ModelSonnet,
			Description: strings.Repeat("d", 60),
			Status:      transcript.StatusRunning,
			StartTime:   renderNow.Add(-90 * time.Second),
		})
	}
	agents = append(agents, transcript.Agent{
		ID: "done", Type: "worker", Status: transcript.StatusCompleted,
		StartTime: renderNow.Add(-time.Hour),
	})

	out := Statusline(Data{State: transcript.State{Agents: agents}, Now: renderNow})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 1+maxAgentLines, "at most five agent detail lines, running only")

	for _, line := range lines[1:] {
		assert.Contains(t, line, "a-very-long-su", "type is truncated to 14 columns")
		assert.NotContains(t, line, "a-very-long-sub")
		assert.Contains(t, line, "1m30s")
		assert.NotContains(t, line, strings.Repeat("d", 46), "description capped at 45 runes")
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0s", formatElapsed(-time.Second))
	assert.Equal(t, "42s", formatElapsed(42*time.Second))
	assert.Equal(t, "3m05s", formatElapsed(3*time.Minute+5*time.Second))
	assert.Equal(t, "1h12m", formatElapsed(time.Hour+12*time.Minute))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 45))
	long := strings.Repeat("x", 50)
	got := truncate(long, 45)
	assert.Equal(t, 45, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
