// Package domain holds the canonical types shared by the gateway:
// the inbound chat request, the canonical outgoing event, and the
// shapes an upstream agent backend can reply with.
package domain

import "encoding/json"

// ChatRequest is the inbound chat-invoke body. Clients may send the
// message under either "prompt" or "query"; exactly the same semantics.
type ChatRequest struct {
	Prompt    string `json:"prompt,omitempty"`
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Message returns the user message regardless of which field carried it.
// Prompt wins when both are present.
func (r *ChatRequest) Message() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	return r.Query
}

// ChatMessage is the normalized body sent to both upstream chat endpoints.
type ChatMessage struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// SyncReply is the synchronous-reply shape of an upstream batch response.
// Usage and ToolsCalled are kept loosely typed so whatever the backend
// reports is carried into completion metadata unmodified.
type SyncReply struct {
	Response    string   `json:"response"`
	SessionID   string   `json:"session_id,omitempty"`
	Usage       any      `json:"usage,omitempty"`
	Model       string   `json:"model,omitempty"`
	ToolsCalled []string `json:"tools_called,omitempty"`
	CostUSD     *float64 `json:"cost_usd,omitempty"`
}

// BatchReply is the batch shape of an upstream response: an ordered list
// of canonical-shaped events to replay. Elements stay raw so every field
// the backend sent survives re-encoding.
type BatchReply struct {
	StreamEvents []json.RawMessage `json:"stream_events"`
}

// AgentIdentity names the backend agent stamped onto synthesized events.
type AgentIdentity struct {
	ID   string
	Name string
}

// HealthStatus values reported by the health prober.
const (
	HealthHealthy     = "healthy"
	HealthUnhealthy   = "unhealthy"
	HealthUnreachable = "unreachable"
)

// HealthResult is the ternary outcome of one upstream reachability probe.
type HealthResult struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Reason  string `json:"error,omitempty"`
}
