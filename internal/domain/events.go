package domain

import "time"

// Event kinds emitted on the canonical stream. Upstream backends may emit
// further kinds; those pass through the gateway untouched.
const (
	EventText     = "text"
	EventComplete = "complete"
)

// Event is the single normalized event shape emitted to clients
// regardless of which upstream path produced it.
type Event struct {
	Type      string         `json:"type"`
	AgentID   string         `json:"agent_id"`
	AgentName string         `json:"agent_name"`
	Timestamp string         `json:"timestamp"`
	Content   string         `json:"content,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTextEvent builds a text event carrying reply content. The timestamp
// is taken at call time, never from upstream, so synthesized events always
// carry one even when the backend reply did not.
func NewTextEvent(agent AgentIdentity, content string) Event {
	return Event{
		Type:      EventText,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Content:   content,
	}
}

// NewCompleteEvent builds the terminal completion event with the given
// metadata map (session id, usage, model, tools, cost).
func NewCompleteEvent(agent AgentIdentity, metadata map[string]any) Event {
	return Event{
		Type:      EventComplete,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  metadata,
	}
}
