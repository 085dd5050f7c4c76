// Package gateway owns the request control flow: endpoint order, fallback,
// normalization, and the mapping of upstream failures to client-visible
// errors.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentbridge/gateway/internal/domain"
	"github.com/agentbridge/gateway/internal/normalizer"
	"github.com/agentbridge/gateway/internal/server"
	"github.com/agentbridge/gateway/internal/upstream"
)

type Handler struct {
	client    *upstream.Client
	agent     domain.AgentIdentity
	estimator normalizer.UsageEstimator
}

func NewHandler(client *upstream.Client, agent domain.AgentIdentity, estimator normalizer.UsageEstimator) *Handler {
	return &Handler{
		client:    client,
		agent:     agent,
		estimator: estimator,
	}
}

// proxyTimeout bounds the non-streaming routes. Chat invocation is exempt:
// its response may be a long-lived event stream.
const proxyTimeout = 30 * time.Second

// Routes mounts the client-facing API surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/chat", h.HandleChat)
	r.Group(func(r chi.Router) {
		r.Use(server.TimeoutMiddleware(proxyTimeout))
		r.Get("/chat", h.HandleHealth)
		r.Group(func(r chi.Router) {
			r.Use(server.RequireBearer)
			r.Get("/documents", h.HandleListDocuments)
			r.Post("/documents/export", h.HandleExportDocument)
		})
	})
	return r
}

// HandleChat produces one canonical event stream per invocation. The
// streaming endpoint is preferred; a non-success status there triggers a
// single fallback to the batch endpoint, never more.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	logger := slog.Default()
	requestID, _ := r.Context().Value(server.RequestIDKey).(string)

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.AddError(r.Context(), err)
		server.WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := req.Message()
	if message == "" {
		server.WriteJSONError(w, http.StatusBadRequest, "either prompt or query is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	server.AddLogField(r.Context(), "session_id", sessionID)

	credential := server.BearerToken(r)
	msg := domain.ChatMessage{Message: message, SessionID: sessionID}

	reply, err := h.client.StreamChat(r.Context(), msg, credential)
	if err != nil {
		var unreach *domain.UnreachableError
		if errors.As(err, &unreach) {
			// Connection-level failure: the batch endpoint shares the same
			// backend, so falling back would only fail again.
			h.writeUnavailable(w, r, unreach)
			return
		}

		var status *domain.StatusError
		if errors.As(err, &status) {
			logger.Info("streaming endpoint refused, falling back to batch",
				slog.String("request_id", requestID),
				slog.Int("status", status.StatusCode),
			)
			h.fallbackBatch(w, r, msg, credential)
			return
		}

		server.AddError(r.Context(), err)
		server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer reply.Body.Close()

	if normalizer.IsEventStream(reply.ContentType) {
		h.relayStream(w, r, reply.Body)
		return
	}

	body, err := io.ReadAll(reply.Body)
	if err != nil {
		server.AddError(r.Context(), err)
		server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resolved, err := normalizer.Resolve(body)
	if err != nil {
		server.AddError(r.Context(), err)
		server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch resolved.Kind {
	case normalizer.ReplyEvents:
		h.replayEvents(w, r, resolved.Events)
	default:
		// No stream markers: degrade gracefully to a single JSON document
		// instead of forcing a stream shape onto it.
		w.Header().Set("Content-Type", "application/json")
		w.Write(resolved.Document)
	}
}

// fallbackBatch runs the single streaming-to-batch fallback. A synchronous
// reply must still present as a stream, so it is synthesized into exactly
// two events: text, then complete.
func (h *Handler) fallbackBatch(w http.ResponseWriter, r *http.Request, msg domain.ChatMessage, credential string) {
	raw, err := h.client.BatchChat(r.Context(), msg, credential)
	if err != nil {
		var unreach *domain.UnreachableError
		if errors.As(err, &unreach) {
			h.writeUnavailable(w, r, unreach)
			return
		}

		var status *domain.StatusError
		if errors.As(err, &status) {
			server.AddError(r.Context(), err)
			propagateStatus(w, status)
			return
		}

		server.AddError(r.Context(), err)
		server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var rep domain.SyncReply
	if err := json.Unmarshal(raw, &rep); err != nil {
		server.AddError(r.Context(), fmt.Errorf("parse batch reply: %w", err))
		server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	events := normalizer.FromSyncReply(rep, msg.SessionID, h.agent, h.estimator)

	flusher, ok := beginEventStream(w, r)
	if !ok {
		return
	}
	for _, event := range events {
		if err := normalizer.WriteEvent(w, event); err != nil {
			server.AddError(r.Context(), err)
			return
		}
		flusher.Flush()
	}
}

// relayStream forwards an already-canonical upstream stream byte-for-byte,
// incrementally, without reframing. Client disconnects cancel the request
// context, which tears down the upstream connection.
func (h *Handler) relayStream(w http.ResponseWriter, r *http.Request, body io.Reader) {
	flusher, ok := beginEventStream(w, r)
	if !ok {
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				server.AddError(r.Context(), werr)
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				server.AddError(r.Context(), err)
			}
			return
		}
	}
}

// replayEvents re-emits batched events in upstream order as SSE frames.
// Every event is restamped before the stream is opened so a malformed
// element can never leave a half-written stream behind.
func (h *Handler) replayEvents(w http.ResponseWriter, r *http.Request, events []json.RawMessage) {
	frames := make([]json.RawMessage, 0, len(events))
	for _, raw := range events {
		restamped, err := normalizer.Restamp(raw)
		if err != nil {
			server.AddError(r.Context(), err)
			server.WriteJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		frames = append(frames, restamped)
	}

	flusher, ok := beginEventStream(w, r)
	if !ok {
		return
	}
	for _, frame := range frames {
		if err := normalizer.WriteFrame(w, frame); err != nil {
			server.AddError(r.Context(), err)
			return
		}
		flusher.Flush()
	}
}

func (h *Handler) writeUnavailable(w http.ResponseWriter, r *http.Request, unreach *domain.UnreachableError) {
	server.AddError(r.Context(), unreach)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "agent backend unavailable",
		"hint":  unreach.Hint(),
	})
}

func beginEventStream(w http.ResponseWriter, r *http.Request) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		server.AddError(r.Context(), fmt.Errorf("streaming not supported"))
		server.WriteJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// propagateStatus relays an upstream application error to the caller
// verbatim: its status code and its error body.
func propagateStatus(w http.ResponseWriter, status *domain.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status.StatusCode)
	w.Write(status.Body)
}
