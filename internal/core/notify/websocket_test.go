package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/seckatie/echoes/internal/core/store"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), opts)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestServeWS(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, srv, nil)
	defer a.CloseNow()
	b := dial(t, ctx, srv, nil)
	defer b.CloseNow()
	waitFor(t, func() bool { return h.Subscribers() == 2 })

	// client messages are ignored
	if err := a.Write(ctx, websocket.MessageText, []byte(`{"hello":"ghost"}`)); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	h.Publish(ResurrectionComplete(store.Record{ID: "ghost_1", Status: "complete"}))

	for _, conn := range []*websocket.Conn{a, b} {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if typ != websocket.MessageText {
			t.Errorf("expected text frame, got %v", typ)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("failed to decode %s: %v", data, err)
		}
		if string(raw["type"]) != `"resurrection_complete"` {
			t.Errorf("expected resurrection_complete type, got %s", raw["type"])
		}
		var rec store.Record
		if err := json.Unmarshal(raw["data"], &rec); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
		if rec.ID != "ghost_1" {
			t.Errorf("expected ghost_1, got %s", rec.ID)
		}
	}

	if err := a.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Errorf("failed to close: %v", err)
	}
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	h.Publish(ResurrectionComplete(store.Record{ID: "ghost_2"}))
	_, data, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !strings.Contains(string(data), "ghost_2") {
		t.Errorf("expected ghost_2 event, got %s", data)
	}
}

func TestServeWSHubClose(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv, nil)
	defer conn.CloseNow()
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	h.Close()

	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
		t.Errorf("expected going away close, got %v (%v)", status, err)
	}
}

func TestServeWSOriginPatterns(t *testing.T) {
	h := NewHub(WithOriginPatterns("*.amplifyapp.com"))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	allowed := dial(t, ctx, srv, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://main.d1abc.amplifyapp.com"}},
	})
	allowed.CloseNow()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	if err == nil {
		t.Fatal("expected cross-origin dial to be rejected")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}
