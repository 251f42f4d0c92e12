package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

const (
	// Files below this size are streamed line by line in full.
	smallFileBytes = 500 * 1024

	// Larger files get a bounded tail read: history before the window is
	// traded away for bounded memory and latency.
	tailWindowBytes = 256 * 1024

	// The first line alone is read to recover the session start; cap it so
	// a pathological file can't force an unbounded read.
	maxFirstLineBytes = 1 << 20

	maxLineBytes = 10 * 1024 * 1024

	maxTrackedAgents  = 100
	maxReportedAgents = 10

	// Running agents older than this are assumed to have finished without
	// a recorded result.
	staleAfter = 30 * time.Minute
)

// Scan reads the transcript at path and reconstructs its transient state.
// It is best-effort: an absent or unreadable file yields a zero state, and
// malformed lines are skipped.
func Scan(path string, now time.Time) State {
	f, err := os.Open(path)
	if err != nil {
		return State{}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return State{}
	}

	sc := &scanState{
		agents:    newAgentSet(maxTrackedAgents),
		secondary: make(map[string]string),
	}

	if info.Size() <= smallFileBytes {
		sc.processAll(f)
	} else {
		sc.processTail(f, info.Size())
	}

	return State{
		SessionStart: sc.sessionStart,
		Agents:       sc.agents.snapshot(now, staleAfter, maxReportedAgents),
		Todos:        sc.todos,
	}
}

type scanState struct {
	agents       *agentSet
	secondary    map[string]string // secondary correlation id -> tool_use id
	todos        []TodoItem
	sessionStart *time.Time
}

func (s *scanState) processAll(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		s.processLine(scanner.Bytes())
	}
}

// processTail recovers the session start from the first line, then extracts
// events from the trailing window only, dropping its first (possibly
// truncated) line.
func (s *scanState) processTail(f *os.File, size int64) {
	first, err := bufio.NewReader(io.LimitReader(f, maxFirstLineBytes)).ReadBytes('\n')
	if err == nil || err == io.EOF {
		if ts, ok := lineTimestamp(first); ok {
			s.sessionStart = &ts
		}
	}

	if _, err := f.Seek(size-tailWindowBytes, io.SeekStart); err != nil {
		return
	}
	tail, err := io.ReadAll(io.LimitReader(f, tailWindowBytes))
	if err != nil {
		return
	}
	if i := bytes.IndexByte(tail, '\n'); i >= 0 {
		tail = tail[i+1:]
	} else {
		return // one giant partial line, nothing usable
	}
	s.processAll(bytes.NewReader(tail))
}

// wire format of transcript lines

type logEntry struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Message   *logMessage `json:"message"`
}

type logMessage struct {
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Text      string          `json:"text"`
	Content   json.RawMessage `json:"content"`
}

type taskInput struct {
	Description  string `json:"description"`
	SubagentType string `json:"subagent_type"`
	Model        string `json:"model"`
}

type todoInput struct {
	Todos []TodoItem `json:"todos"`
}

func (s *scanState) processLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	var entry logEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return
	}

	ts, hasTS := parseTimestamp(entry.Timestamp)
	if hasTS && s.sessionStart == nil {
		s.sessionStart = &ts
	}

	if entry.Message == nil || len(entry.Message.Content) == 0 {
		return
	}
	var blocks []contentBlock
	if err := json.Unmarshal(entry.Message.Content, &blocks); err != nil {
		return // plain-string content carries no events
	}

	for _, b := range blocks {
		switch b.Type {
		case "tool_use":
			s.processToolUse(b, ts)
		case "tool_result":
			s.processToolResult(b, ts)
		}
	}
}

func (s *scanState) processToolUse(b contentBlock, ts time.Time) {
	switch b.Name {
	case "Task":
		if b.ID == "" {
			return
		}
		var in taskInput
		if len(b.Input) > 0 {
			json.Unmarshal(b.Input, &in)
		}
		agentType := in.SubagentType
		if agentType == "" {
			agentType = "task"
		}
		s.agents.insert(Agent{
			ID:          b.ID,
			Type:        agentType,
			Model:       ParseModel(in.Model),
			Description: in.Description,
			Status:      StatusRunning,
			StartTime:   ts,
		})
	case "TodoWrite":
		var in todoInput
		if err := json.Unmarshal(b.Input, &in); err != nil {
			return
		}
		// Each snapshot replaces the previous list wholesale.
		s.todos = in.Todos
	}
}

func (s *scanState) processToolResult(b contentBlock, ts time.Time) {
	text := resultText(b)

	if m, ok := ParseMarker(text); ok {
		switch m.Kind {
		case MarkerLaunchAck:
			// The launch is asynchronous: remember the secondary id and
			// leave the agent running.
			if _, tracked := s.agents.get(b.ToolUseID); tracked {
				s.secondary[m.AgentID] = b.ToolUseID
			}
			return
		case MarkerCompletion:
			if id, ok := s.secondary[m.AgentID]; ok {
				s.agents.complete(id, ts)
				return
			}
			// Unknown secondary id: treat as an ordinary result below.
		}
	}

	s.agents.complete(b.ToolUseID, ts)
}

// resultText flattens a tool_result payload, which is either a plain string
// or a list of text blocks.
func resultText(b contentBlock) string {
	if b.Text != "" {
		return b.Text
	}
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(b.Content, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, inner := range blocks {
		if inner.Text != "" {
			parts = append(parts, inner.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func lineTimestamp(line []byte) (time.Time, bool) {
	var entry logEntry
	if err := json.Unmarshal(bytes.TrimSpace(line), &entry); err != nil {
		return time.Time{}, false
	}
	return parseTimestamp(entry.Timestamp)
}
