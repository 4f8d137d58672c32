package wayback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seckatie/echoes/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.Endpoint = srv.URL + "/cdx/search/cdx"
	if opts.SnapshotBaseURL == "" {
		opts.SnapshotBaseURL = "http://web.archive.org/web"
	}
	return New(opts)
}

func serve(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

// TestQuery tests parsing of index payloads.
func TestQuery(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantErr   bool
	}{
		{
			name: "header row is dropped",
			body: `[["timestamp","original","statuscode","mimetype"],
				["20050301000000","http://myspace.com/","200","text/html"],
				["20060301000000","http://myspace.com/","301","text/html"]]`,
			wantCount: 2,
		},
		{name: "empty body", body: "", wantCount: 0},
		{name: "whitespace body", body: "  \n", wantCount: 0},
		{name: "empty array", body: "[]", wantCount: 0},
		{name: "header only", body: `[["timestamp","original","statuscode","mimetype"]]`, wantCount: 0},
		{name: "malformed JSON", body: `[["timestamp"`, wantErr: true},
		{name: "not a table", body: `{"error":"nope"}`, wantErr: true},
		{
			name: "short row",
			body: `[["timestamp","original","statuscode","mimetype"],
				["20050301000000","http://myspace.com/"]]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, serve(tt.body), Options{})

			snaps, err := c.Query(context.Background(), "myspace.com")
			if tt.wantErr {
				if !errors.Is(err, core.ErrUpstream) {
					t.Errorf("expected ErrUpstream, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query returned error: %v", err)
			}
			if snaps == nil {
				t.Error("expected a non-nil slice")
			}
			if len(snaps) != tt.wantCount {
				t.Errorf("expected %d snapshots, got %d", tt.wantCount, len(snaps))
			}
		})
	}
}

// TestQueryFields tests the mapping of row columns.
func TestQueryFields(t *testing.T) {
	body := `[["timestamp","original","statuscode","mimetype"],
		["20050301000000","http://myspace.com/","200","text/html"]]`

	tests := []struct {
		variant string
		want    string
	}{
		{core.VariantWrapped, "http://web.archive.org/web/20050301000000/http://myspace.com/"},
		{core.VariantIdentity, "http://web.archive.org/web/20050301000000id_/http://myspace.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			c := newTestClient(t, serve(body), Options{Variant: tt.variant})

			snaps, err := c.Query(context.Background(), "myspace.com")
			if err != nil {
				t.Fatalf("Query returned error: %v", err)
			}
			if len(snaps) != 1 {
				t.Fatalf("expected 1 snapshot, got %d", len(snaps))
			}
			s := snaps[0]
			if s.CapturedAt != "20050301000000" || s.OriginalURL != "http://myspace.com/" ||
				s.StatusCode != "200" || s.MimeType != "text/html" {
				t.Errorf("unexpected snapshot %+v", s)
			}
			if s.ArchiveURL != tt.want {
				t.Errorf("expected archive url %s, got %s", tt.want, s.ArchiveURL)
			}
		})
	}
}

// TestQueryRequest tests the request sent to the index.
func TestQueryRequest(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = io.WriteString(w, "[]")
	}, Options{Limit: 3})

	if _, err := c.Query(context.Background(), "http://geocities.com/area51"); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if got.URL.Path != "/cdx/search/cdx" {
		t.Errorf("expected path /cdx/search/cdx, got %s", got.URL.Path)
	}
	q := got.URL.Query()
	expected := map[string]string{
		"url":    "http://geocities.com/area51",
		"output": "json",
		"limit":  "3",
		"fl":     "timestamp,original,statuscode,mimetype",
	}
	for k, v := range expected {
		if q.Get(k) != v {
			t.Errorf("expected %s=%q, got %q", k, v, q.Get(k))
		}
	}
	if ua := got.Header.Get("User-Agent"); ua != core.UserAgent {
		t.Errorf("expected User-Agent %q, got %q", core.UserAgent, ua)
	}
}

// TestQueryUpstreamFailures tests transport and status failures.
func TestQueryUpstreamFailures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, Options{})

		_, err := c.Query(context.Background(), "myspace.com")
		if !errors.Is(err, core.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		var cerr *core.Error
		if !errors.As(err, &cerr) {
			t.Fatalf("expected *core.Error, got %T", err)
		}
		if !strings.Contains(cerr.Detail(), "500") {
			t.Errorf("expected detail to mention 500, got %q", cerr.Detail())
		}
		if cerr.Message != core.MsgUpstreamFailure {
			t.Errorf("expected message %q, got %q", core.MsgUpstreamFailure, cerr.Message)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, Options{Timeout: 50 * time.Millisecond})

		_, err := c.Query(context.Background(), "myspace.com")
		if !errors.Is(err, core.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(serve("[]"))
		endpoint := srv.URL
		srv.Close()

		c := New(Options{Endpoint: endpoint})
		_, err := c.Query(context.Background(), "myspace.com")
		if !errors.Is(err, core.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})
}

func TestArchiveURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		variant string
		want    string
	}{
		{"wrapped", "http://web.archive.org/web", core.VariantWrapped, "http://web.archive.org/web/2005/myspace.com"},
		{"identity", "http://web.archive.org/web", core.VariantIdentity, "http://web.archive.org/web/2005id_/myspace.com"},
		{"trailing slash on base", "http://web.archive.org/web/", core.VariantWrapped, "http://web.archive.org/web/2005/myspace.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArchiveURL(tt.base, tt.variant, "2005", "myspace.com"); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
