package transcript

import "regexp"

// Background-agent correlation markers, lexicon v1.
//
// Asynchronously launched agents don't complete through the tool_result of
// their original invocation; the log instead carries two free-text marker
// shapes that this parser turns into typed events:
//
//	launch-ack:  "... launched in background ... agentId: <id>"
//	completion:  "... background agent <id> completed ..."
//
// The <id> in both shapes is the secondary correlation identifier, not the
// tool_use id of the original launch. Any change to these shapes upstream
// is a breaking change to this lexicon and needs a version bump here.

// MarkerKind discriminates the recognized marker shapes.
type MarkerKind int

const (
	MarkerLaunchAck MarkerKind = iota + 1
	MarkerCompletion
)

// Marker is one recognized correlation marker.
type Marker struct {
	Kind    MarkerKind
	AgentID string
}

var (
	launchAckRe  = regexp.MustCompile(`(?i)launched in background[\s\S]{0,200}?agentId:\s*([A-Za-z0-9_.-]+)`)
	completionRe = regexp.MustCompile(`(?i)background agent\s+([A-Za-z0-9_.-]+)\s+(?:has\s+)?(?:completed|finished)`)
)

// ParseMarker scans a tool-result text for a correlation marker. It returns
// false for text that matches neither shape.
func ParseMarker(text string) (Marker, bool) {
	if m := launchAckRe.FindStringSubmatch(text); m != nil {
		return Marker{Kind: MarkerLaunchAck, AgentID: m[1]}, true
	}
	if m := completionRe.FindStringSubmatch(text); m != nil {
		return Marker{Kind: MarkerCompletion, AgentID: m[1]}, true
	}
	return Marker{}, false
}
