package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/agentbridge/gateway/internal/domain"
	"github.com/agentbridge/gateway/internal/server"
)

// exportHeaders are the only response headers the proxy reads. Each is
// copied verbatim when upstream set it and omitted when it did not; no
// defaults are fabricated.
var exportHeaders = []string{"Content-Type", "Content-Disposition", "Content-Length"}

// HandleListDocuments forwards the query string verbatim and relays the
// upstream JSON unmodified.
func (h *Handler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	credential := server.BearerToken(r)

	body, err := h.client.ListDocuments(r.Context(), r.URL.RawQuery, credential)
	if err != nil {
		h.writeProxyError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// HandleExportDocument forwards an opaque export request and streams the
// upstream bytes back incrementally. Large exports are never buffered
// wholesale.
func (h *Handler) HandleExportDocument(w http.ResponseWriter, r *http.Request) {
	credential := server.BearerToken(r)

	reply, err := h.client.ExportDocument(r.Context(), r.Body, credential)
	if err != nil {
		h.writeProxyError(w, r, err)
		return
	}
	defer reply.Body.Close()

	for _, name := range exportHeaders {
		if v := reply.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	if _, err := io.Copy(w, reply.Body); err != nil {
		// Headers are already on the wire; closing the connection is all
		// that is left to signal the truncation.
		server.AddError(r.Context(), err)
	}
}

func (h *Handler) writeProxyError(w http.ResponseWriter, r *http.Request, err error) {
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
}
