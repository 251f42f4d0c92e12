package transcript

import (
	"sort"
	"time"
)

// agentSet is a fixed-capacity insertion-ordered map of tracked agents.
// When full, inserting evicts the oldest completed agent by start time;
// if every tracked agent is still running, the strictly oldest one is
// evicted regardless of status, so the newest launch is always tracked.
type agentSet struct {
	capacity int
	order    []string
	byID     map[string]*Agent
}

func newAgentSet(capacity int) *agentSet {
	return &agentSet{
		capacity: capacity,
		byID:     make(map[string]*Agent, capacity),
	}
}

func (s *agentSet) len() int { return len(s.order) }

func (s *agentSet) get(id string) (*Agent, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// insert adds a newly launched agent, evicting first if at capacity.
// Agent ids are unique per log; a duplicate id is ignored.
func (s *agentSet) insert(a Agent) {
	if _, ok := s.byID[a.ID]; ok {
		return
	}
	if len(s.order) >= s.capacity {
		s.evictOne()
	}
	s.order = append(s.order, a.ID)
	s.byID[a.ID] = &a
}

// complete marks a running agent completed. Returns false when the id is
// unknown or the agent already finished.
func (s *agentSet) complete(id string, end time.Time) bool {
	a, ok := s.byID[id]
	if !ok || a.Status != StatusRunning {
		return false
	}
	a.Status = StatusCompleted
	e := end
	a.EndTime = &e
	return true
}

func (s *agentSet) evictOne() {
	victim := ""
	var victimStart time.Time
	for _, id := range s.order {
		a := s.byID[id]
		if a.Status != StatusCompleted {
			continue
		}
		if victim == "" || a.StartTime.Before(victimStart) {
			victim, victimStart = id, a.StartTime
		}
	}
	if victim == "" {
		// None completed: drop the strictly oldest.
		for _, id := range s.order {
			a := s.byID[id]
			if victim == "" || a.StartTime.Before(victimStart) {
				victim, victimStart = id, a.StartTime
			}
		}
	}
	if victim != "" {
		s.remove(victim)
	}
}

func (s *agentSet) remove(id string) {
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// snapshot finalizes the scan: running agents older than staleAfter are
// reclassified completed (with no end time), then running agents are
// emitted first in start order, followed by the most recently completed
// ones, truncated to max entries.
func (s *agentSet) snapshot(now time.Time, staleAfter time.Duration, max int) []Agent {
	var running, completed []Agent
	for _, id := range s.order {
		a := *s.byID[id]
		if a.Status == StatusRunning && now.Sub(a.StartTime) > staleAfter {
			a.Status = StatusCompleted
		}
		if a.Status == StatusRunning {
			running = append(running, a)
		} else {
			completed = append(completed, a)
		}
	}

	sort.SliceStable(completed, func(i, j int) bool {
		return completedAt(completed[i]).After(completedAt(completed[j]))
	})

	out := running
	for _, a := range completed {
		if len(out) >= max {
			break
		}
		out = append(out, a)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// completedAt orders completed agents by recency; stale reclassifications
// have no end time, so start time stands in.
func completedAt(a Agent) time.Time {
	if a.EndTime != nil {
		return *a.EndTime
	}
	return a.StartTime
}
