// Package normalizer converts upstream reply shapes into the canonical
// outgoing event sequence. It is pure transformation: no sockets, no
// clocks beyond timestamping, no knowledge of which endpoint answered.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/agentbridge/gateway/internal/domain"
)

// ReplyKind tags the variant an upstream JSON body resolved to.
type ReplyKind int

const (
	// ReplyEvents is a batch body carrying ordered stream_events to replay.
	ReplyEvents ReplyKind = iota
	// ReplyDocument is a plain JSON body with no stream semantics; it is
	// handed back to the caller as a single document.
	ReplyDocument
)

// Reply is the resolved variant of a parsed upstream body. The three-way
// shape (raw stream / batch events / plain JSON) is decided once here so
// the dispatcher has one branch per variant instead of scattered checks.
type Reply struct {
	Kind     ReplyKind
	Events   []json.RawMessage
	Document json.RawMessage
}

// IsEventStream reports whether an upstream Content-Type declares a live
// event stream that must pass through byte-for-byte.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(contentType, "text/event-stream")
	}
	return mediaType == "text/event-stream"
}

// Resolve parses an upstream JSON body into its variant. Only a JSON object
// can carry stream markers; any other valid JSON value is a plain document.
// A body that is not valid JSON at all is an error; the dispatcher maps it
// to an internal-error signal before any stream is opened.
func Resolve(body []byte) (*Reply, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(body) {
			return nil, fmt.Errorf("parse upstream reply: invalid JSON")
		}
		return &Reply{Kind: ReplyDocument, Document: json.RawMessage(body)}, nil
	}

	var probe domain.BatchReply
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("parse upstream reply: %w", err)
	}

	if probe.StreamEvents != nil {
		return &Reply{Kind: ReplyEvents, Events: probe.StreamEvents}, nil
	}
	return &Reply{Kind: ReplyDocument, Document: json.RawMessage(body)}, nil
}

// UsageEstimator supplies a completion-token estimate when the upstream
// reply carried no usage block. May be nil.
type UsageEstimator interface {
	EstimateTokens(text string) (int, error)
}

// FromSyncReply synthesizes the two-event sequence a synchronous upstream
// reply presents as: one text event with the content, then one complete
// event with session/usage/model metadata. The upstream-echoed session id
// wins when present; otherwise the request-resolved id is echoed back.
func FromSyncReply(rep domain.SyncReply, sessionID string, agent domain.AgentIdentity, est UsageEstimator) []domain.Event {
	if rep.SessionID != "" {
		sessionID = rep.SessionID
	}

	metadata := map[string]any{
		"session_id": sessionID,
	}
	if rep.Usage != nil {
		metadata["usage"] = rep.Usage
	} else if est != nil {
		if n, err := est.EstimateTokens(rep.Response); err == nil {
			metadata["usage"] = map[string]any{
				"completion_tokens": n,
				"estimated":         true,
			}
		}
	}
	if rep.Model != "" {
		metadata["model"] = rep.Model
	}
	if rep.ToolsCalled != nil {
		metadata["tools_called"] = rep.ToolsCalled
	}
	if rep.CostUSD != nil {
		metadata["cost_usd"] = *rep.CostUSD
	}

	return []domain.Event{
		domain.NewTextEvent(agent, rep.Response),
		domain.NewCompleteEvent(agent, metadata),
	}
}

// Restamp re-encodes one batch event in the canonical wire representation:
// every upstream field survives verbatim and the timestamp is replaced with
// one generated now. Synthesized events are never trusted to carry their
// own clock.
func Restamp(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse batch event: %w", err)
	}
	// A JSON null decodes without error but leaves the map nil.
	if fields == nil {
		return nil, fmt.Errorf("parse batch event: null element")
	}

	fields["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode batch event: %w", err)
	}
	return out, nil
}

// WriteEvent emits one canonical event as an SSE data frame.
func WriteEvent(w io.Writer, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// WriteFrame emits pre-encoded JSON as an SSE data frame.
func WriteFrame(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
