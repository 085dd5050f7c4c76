package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentbridge/gateway/internal/domain"
	"github.com/agentbridge/gateway/internal/testutil"
)

func TestStreamChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/stream" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("expected forwarded bearer credential, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"content\":\"hi\"}\n\n")
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	reply, err := c.StreamChat(context.Background(), domain.ChatMessage{Message: "hi", SessionID: "s1"}, "tok-123")
	if err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	defer reply.Body.Close()

	if !strings.HasPrefix(reply.ContentType, "text/event-stream") {
		t.Errorf("content type = %q, want text/event-stream", reply.ContentType)
	}

	body, err := io.ReadAll(reply.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "data: {\"type\":\"text\",\"content\":\"hi\"}\n\n" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestStreamChatStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"model overloaded"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	_, err := c.StreamChat(context.Background(), domain.ChatMessage{Message: "hi"}, "")

	var status *domain.StatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if status.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status.StatusCode)
	}
	if !strings.Contains(string(status.Body), "model overloaded") {
		t.Errorf("error body not preserved: %s", status.Body)
	}
}

func TestStreamChatUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening anymore

	c := NewClient(ts.URL)

	_, err := c.StreamChat(context.Background(), domain.ChatMessage{Message: "hi"}, "")

	var unreach *domain.UnreachableError
	if !errors.As(err, &unreach) {
		t.Fatalf("expected UnreachableError, got %v", err)
	}
	if unreach.Backend != ts.URL {
		t.Errorf("backend = %q, want %q", unreach.Backend, ts.URL)
	}
}

func TestBatchChatReplaysCassette(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "batch_chat")
	defer cleanup()

	c := NewClient("http://agent-backend.local:8000", WithHTTPClient(testutil.VCRHTTPClient(r)))

	body, err := c.BatchChat(context.Background(), domain.ChatMessage{Message: "what is the deadline?", SessionID: "s1"}, "tok-123")
	if err != nil {
		t.Fatalf("BatchChat returned error: %v", err)
	}

	if !strings.Contains(string(body), `"response":"March 1"`) {
		t.Errorf("unexpected reply body: %s", body)
	}
}

func TestListDocumentsForwardsQuery(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"documents":[]}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	body, err := c.ListDocuments(context.Background(), "folder=reports&limit=10", "tok")
	if err != nil {
		t.Fatalf("ListDocuments returned error: %v", err)
	}
	if gotQuery != "folder=reports&limit=10" {
		t.Errorf("query = %q, want folder=reports&limit=10", gotQuery)
	}
	if string(body) != `{"documents":[]}` {
		t.Errorf("body not relayed unmodified: %s", body)
	}
}

func TestExportDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/export" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		w.Write([]byte("%PDF-1.7 fake bytes"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	reply, err := c.ExportDocument(context.Background(), strings.NewReader(`{"document_id":"d1"}`), "tok")
	if err != nil {
		t.Fatalf("ExportDocument returned error: %v", err)
	}
	defer reply.Body.Close()

	if got := reply.Header.Get("Content-Disposition"); got != `attachment; filename="report.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	body, _ := io.ReadAll(reply.Body)
	if string(body) != "%PDF-1.7 fake bytes" {
		t.Errorf("body = %q", body)
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"status":"ok"}`)
		}))
		defer ts.Close()

		result := NewClient(ts.URL).CheckHealth(context.Background())

		if result.Status != domain.HealthHealthy {
			t.Errorf("status = %q, want healthy", result.Status)
		}
		if result.Backend != ts.URL {
			t.Errorf("backend = %q, want %q", result.Backend, ts.URL)
		}
	})

	t.Run("unhealthy with reason", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "db down", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		result := NewClient(ts.URL).CheckHealth(context.Background())

		if result.Status != domain.HealthUnhealthy {
			t.Errorf("status = %q, want unhealthy", result.Status)
		}
		if !strings.Contains(result.Reason, "db down") {
			t.Errorf("reason = %q, want upstream detail", result.Reason)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		result := NewClient(ts.URL).CheckHealth(context.Background())

		if result.Status != domain.HealthUnreachable {
			t.Errorf("status = %q, want unreachable", result.Status)
		}
	})

	t.Run("timeout abandons the probe", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer func() {
			close(release)
			ts.Close()
		}()

		c := NewClient(ts.URL, WithHealthTimeout(50*time.Millisecond))

		start := time.Now()
		result := c.CheckHealth(context.Background())

		if result.Status != domain.HealthUnreachable {
			t.Errorf("status = %q, want unreachable", result.Status)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("probe not abandoned promptly, took %v", elapsed)
		}
	})
}
