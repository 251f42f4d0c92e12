package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func stamp(offset time.Duration) string {
	return scanNow.Add(offset).Format(time.RFC3339Nano)
}

func launchLine(ts, id, agentType, model, desc string) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"content":[{"type":"tool_use","id":%q,"name":"Task","input":{"description":%q,"subagent_type":%q,"model":%q,"prompt":"go"}}]}}`,
		ts, id, desc, agentType, model)
}

func resultLine(ts, toolUseID, text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":%q,"message":{"content":[{"type":"tool_result","tool_use_id":%q,"content":%q}]}}`,
		ts, toolUseID, text)
}

func todoLine(ts string, todos string) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"content":[{"type":"tool_use","id":"todo-1","name":"TodoWrite","input":{"todos":%s}}]}}`,
		ts, todos)
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestScanMissingFile(t *testing.T) {
	state := Scan(filepath.Join(t.TempDir(), "nope.jsonl"), scanNow)
	assert.Nil(t, state.SessionStart)
	assert.Empty(t, state.Agents)
	assert.Empty(t, state.Todos)
}

func TestScanSingleLaunchStaysRunning(t *testing.T) {
	path := writeTranscript(t,
		launchLine(stamp(-5*time.Minute), "A", "explorer", "sonnet", "map the codebase"),
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 1)
	a := state.Agents[0]
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, StatusRunning, a.Status)
	assert.Equal(t, ModelSonnet, a.Model)
	assert.Equal(t, "explorer", a.Type)
	assert.Positive(t, scanNow.Sub(a.StartTime))
}

func TestScanDirectResultCompletes(t *testing.T) {
	path := writeTranscript(t,
		launchLine(stamp(-5*time.Minute), "A", "explorer", "opus", "dig"),
		resultLine(stamp(-time.Minute), "A", "found 3 call sites"),
	)

	state := Scan(path, scanNow)
	assert.Equal(t, 0, state.RunningCount())
	require.Len(t, state.Agents, 1)
	require.NotNil(t, state.Agents[0].EndTime)
	assert.Equal(t, StatusCompleted, state.Agents[0].Status)
}

func TestScanAsyncCompletionCorrelation(t *testing.T) {
	path := writeTranscript(t,
		launchLine(stamp(-10*time.Minute), "A", "builder", "haiku", "run the suite"),
		resultLine(stamp(-9*time.Minute), "A", "Agent launched in background.\nagentId: X"),
		resultLine(stamp(-time.Minute), "other-tool", "note: background agent X completed with no failures"),
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 1)
	assert.Equal(t, StatusCompleted, state.Agents[0].Status)
	require.NotNil(t, state.Agents[0].EndTime)
}

func TestScanAsyncAckLeavesAgentRunning(t *testing.T) {
	path := writeTranscript(t,
		launchLine(stamp(-10*time.Minute), "A", "builder", "haiku", "run the suite"),
		resultLine(stamp(-9*time.Minute), "A", "Agent launched in background.\nagentId: X"),
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 1)
	assert.Equal(t, StatusRunning, state.Agents[0].Status)
}

func TestScanStaleRunningReclassified(t *testing.T) {
	path := writeTranscript(t,
		launchLine(stamp(-31*time.Minute), "old", "explorer", "sonnet", "stale one"),
		launchLine(stamp(-5*time.Minute), "new", "explorer", "sonnet", "fresh one"),
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 2)
	byID := map[string]Agent{}
	for _, a := range state.Agents {
		byID[a.ID] = a
	}
	assert.Equal(t, StatusCompleted, byID["old"].Status)
	assert.Nil(t, byID["old"].EndTime, "staleness must not synthesize an end time")
	assert.Equal(t, StatusRunning, byID["new"].Status)
}

func TestScanOrderingRunningFirstCapTen(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("done-%d", i)
		lines = append(lines,
			launchLine(stamp(time.Duration(-20+i)*time.Minute), id, "worker", "haiku", "finished"),
			resultLine(stamp(time.Duration(-15+i)*time.Minute), id, "ok"),
		)
	}
	for i := 0; i < 4; i++ {
		lines = append(lines,
			launchLine(stamp(time.Duration(-4+i)*time.Minute), fmt.Sprintf("run-%d", i), "worker", "opus", "live"))
	}
	path := writeTranscript(t, lines...)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 10)
	for i := 0; i < 4; i++ {
		assert.Equal(t, fmt.Sprintf("run-%d", i), state.Agents[i].ID, "running agents come first in start order")
	}
	// Remainder: most recently completed first.
	assert.Equal(t, "done-7", state.Agents[4].ID)
	assert.Equal(t, "done-6", state.Agents[5].ID)
	for _, a := range state.Agents[4:] {
		assert.Equal(t, StatusCompleted, a.Status)
	}
}

func TestScanTodosReplacedWholesale(t *testing.T) {
	path := writeTranscript(t,
		todoLine(stamp(-10*time.Minute), `[{"content":"first","status":"completed"},{"content":"second","status":"pending"}]`),
		todoLine(stamp(-time.Minute), `[{"content":"third","status":"in_progress"}]`),
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Todos, 1)
	assert.Equal(t, "third", state.Todos[0].Content)
	assert.Equal(t, "in_progress", state.Todos[0].Status)
}

func TestScanSkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"summary"}`,
		"{broken json",
		launchLine(stamp(-2*time.Minute), "A", "worker", "sonnet", "keep going"),
		"",
	)

	state := Scan(path, scanNow)
	require.Len(t, state.Agents, 1)
	assert.Equal(t, "A", state.Agents[0].ID)
}

func TestScanSessionStartFromFirstLine(t *testing.T) {
	start := stamp(-2 * time.Hour)
	path := writeTranscript(t,
		fmt.Sprintf(`{"type":"user","timestamp":%q,"message":{"content":"hello"}}`, start),
		launchLine(stamp(-time.Minute), "A", "worker", "sonnet", "x"),
	)

	state := Scan(path, scanNow)
	require.NotNil(t, state.SessionStart)
	assert.Equal(t, scanNow.Add(-2*time.Hour), state.SessionStart.UTC())
}

func TestScanLargeFileTailWindow(t *testing.T) {
	start := stamp(-3 * time.Hour)
	first := fmt.Sprintf(`{"type":"user","timestamp":%q,"message":{"content":"session opens"}}`, start)

	// Pad well past the small-file threshold with filler records that are
	// individually valid but carry no events.
	filler := fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"content":"%s"}}`,
		stamp(-2*time.Hour), strings.Repeat("x", 1024))

	lines := []string{
		first,
		// An early launch outside the tail window is lost by design.
		launchLine(stamp(-150*time.Minute), "ancient", "worker", "opus", "lost to the window"),
	}
	for i := 0; i < 700; i++ {
		lines = append(lines, filler)
	}
	lines = append(lines, launchLine(stamp(-2*time.Minute), "recent", "worker", "sonnet", "visible"))
	path := writeTranscript(t, lines...)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(500*1024), "fixture must exceed the small-file threshold")

	state := Scan(path, scanNow)

	require.NotNil(t, state.SessionStart, "first-line session start must survive a tail scan")
	assert.Equal(t, scanNow.Add(-3*time.Hour), state.SessionStart.UTC())

	require.Len(t, state.Agents, 1)
	assert.Equal(t, "recent", state.Agents[0].ID)
}

func TestParseModel(t *testing.T) {
	assert.Equal(t, ModelOpus, ParseModel("claude-opus-4-5"))
	assert.Equal(t, ModelSonnet, ParseModel("sonnet"))
	assert.Equal(t, ModelHaiku, ParseModel("Claude-Haiku-3-5"))
	assert.Equal(t, ModelUnknown, ParseModel("gpt-4o"))
	assert.Equal(t, ModelUnknown, ParseModel(""))
}
