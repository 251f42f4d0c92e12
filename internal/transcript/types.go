// Package transcript mines a session's append-only JSONL log for transient
// state: the session start, the live set of background agents, and the
// latest todo-list snapshot. Scans are bounded, so an arbitrarily large log
// costs at most one tail window of memory.
package transcript

import (
	"strings"
	"time"
)

// Model is the model family an agent runs on.
type Model string

const (
	ModelOpus    Model = "opus"
	ModelSonnet  Model = "sonnet"
	ModelHaiku   Model = "haiku"
	ModelUnknown Model = "unknown"
)

// ParseModel maps a model field ("sonnet", "claude-opus-4-5", ...) to a
// Model family.
func ParseModel(s string) Model {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "opus"):
		return ModelOpus
	case strings.Contains(s, "sonnet"):
		return ModelSonnet
	case strings.Contains(s, "haiku"):
		return ModelHaiku
	default:
		return ModelUnknown
	}
}

// Status is an agent's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Agent is one tracked background sub-task launched during the session.
type Agent struct {
	ID          string
	Type        string
	Model       Model
	Description string
	Status      Status
	StartTime   time.Time
	EndTime     *time.Time
}

// TodoItem is one entry of the latest task-list snapshot.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// State is the result of one scan.
type State struct {
	SessionStart *time.Time
	Agents       []Agent
	Todos        []TodoItem
}

// RunningCount returns how many reported agents are still running.
func (s State) RunningCount() int {
	n := 0
	for _, a := range s.Agents {
		if a.Status == StatusRunning {
			n++
		}
	}
	return n
}
