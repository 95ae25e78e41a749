package www

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeHub struct {
	clients int
}

func (f *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (f *fakeHub) Clients(context.Context) int {
	return f.clients
}

func newTestServer(t *testing.T, opts Options, hub Clients) *httptest.Server {
	t.Helper()
	s, err := New(opts, hub, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, Options{}, &fakeHub{clients: 2})

	t.Run("index", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
		}
		if !strings.Contains(body, `id="subtitle"`) || !strings.Contains(body, "container-bottom") {
			t.Errorf("index page missing caption container")
		}
	})

	t.Run("static assets", func(t *testing.T) {
		for _, path := range []string{"/static/js/main.js", "/static/css/style.css"} {
			resp, body := get(t, srv.URL+path)
			if resp.StatusCode != http.StatusOK || body == "" {
				t.Errorf("%s: status %d, %d bytes", path, resp.StatusCode, len(body))
			}
		}
		resp, _ := get(t, srv.URL+"/static/nope.js")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("missing asset status = %d", resp.StatusCode)
		}
	})

	t.Run("display script handles both events", func(t *testing.T) {
		_, body := get(t, srv.URL+"/static/js/main.js")
		for _, want := range []string{"subtitleUpdate", "moveSubtitle", "container-top", "3000"} {
			if !strings.Contains(body, want) {
				t.Errorf("main.js missing %q", want)
			}
		}
	})

	t.Run("healthz", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/healthz")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var health struct {
			Status  string `json:"status"`
			Clients int    `json:"clients"`
		}
		if err := json.Unmarshal([]byte(body), &health); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if health.Status != "ok" || health.Clients != 2 {
			t.Errorf("health = %+v", health)
		}
	})

	t.Run("ws goes to the hub", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/ws")
		if resp.StatusCode != http.StatusTeapot {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, Options{}, &fakeHub{})
	resp, _ := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics without a handler: status %d", resp.StatusCode)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "subtitles_clients 0\n")
	})
	srv = newTestServer(t, Options{Metrics: metrics}, &fakeHub{})
	_, body := get(t, srv.URL+"/metrics")
	if body != "subtitles_clients 0\n" {
		t.Errorf("metrics body = %q", body)
	}
}

func TestStaticDirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>custom</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, Options{StaticDir: dir}, &fakeHub{})
	_, body := get(t, srv.URL+"/")
	if body != "<p>custom</p>" {
		t.Errorf("index = %q", body)
	}

	if _, err := New(Options{StaticDir: filepath.Join(dir, "missing")}, &fakeHub{}, log.New(io.Discard)); err == nil {
		t.Error("expected error for missing static dir")
	}
}

func TestRunShutsDown(t *testing.T) {
	s, err := New(Options{Addr: "127.0.0.1:0"}, &fakeHub{}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
