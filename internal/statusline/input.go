// Package statusline parses the one-shot request document and orchestrates
// the concurrent lookups feeding the renderer.
package statusline

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Placeholder is printed when no request document is available.
const Placeholder = "⏺ waiting for session data"

const maxInputBytes = 1 << 20

// Input is the request document received on stdin, consumed fields only.
type Input struct {
	Model          ModelInfo   `json:"model"`
	Version        string      `json:"version"`
	TranscriptPath string      `json:"transcript_path"`
	Cost           CostInfo    `json:"cost"`
	ContextWindow  ContextInfo `json:"context_window"`
}

// ModelInfo identifies the session's model.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// CostInfo carries the session's changed-line counters.
type CostInfo struct {
	TotalLinesAdded   int `json:"total_lines_added"`
	TotalLinesRemoved int `json:"total_lines_removed"`
}

// ContextInfo describes context-window fill, either as a precomputed
// percentage or as raw token counts.
type ContextInfo struct {
	UsedPercentage    float64      `json:"used_percentage"`
	ContextWindowSize int          `json:"context_window_size"`
	CurrentUsage      ContextUsage `json:"current_usage"`
}

// ContextUsage holds the token counts contributing to context fill.
type ContextUsage struct {
	InputTokens              int `json:"input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// ParseInput reads the request document. A missing or empty document is not
// an error to the caller's user; it returns (nil, err) and the caller falls
// back to the placeholder.
func ParseInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty request document")
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse request document: %w", err)
	}
	return &in, nil
}

// ContextPercent returns the context-window fill in [0,100], preferring the
// precomputed percentage and falling back to the token ratio.
func (in *Input) ContextPercent() float64 {
	pct := in.ContextWindow.UsedPercentage
	if pct == 0 && in.ContextWindow.ContextWindowSize > 0 {
		u := in.ContextWindow.CurrentUsage
		used := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
		pct = float64(used) / float64(in.ContextWindow.ContextWindowSize) * 100
	}
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

var modelIDRe = regexp.MustCompile(`(?i)(opus|sonnet|haiku)[-_](\d+)[-_](\d+)`)

// ModelLabel maps the model id or display name to a human label
// ("Opus 4.5"); anything that doesn't match the pattern passes through
// verbatim.
func (in *Input) ModelLabel() string {
	for _, s := range []string{in.Model.ID, in.Model.DisplayName} {
		if m := modelIDRe.FindStringSubmatch(s); m != nil {
			name := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
			return fmt.Sprintf("%s %s.%s", name, m[2], m[3])
		}
	}
	if in.Model.DisplayName != "" {
		return in.Model.DisplayName
	}
	return in.Model.ID
}
