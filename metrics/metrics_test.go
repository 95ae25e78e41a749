package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(func() float64 { return 3 })

	m.Transcript(false)
	m.Transcript(false)
	m.Transcript(true)
	m.Restart(4)
	m.Restart(2)
	m.Anchor.Set(1)

	if got := testutil.ToFloat64(m.Transcripts.WithLabelValues("false")); got != 2 {
		t.Errorf("interim transcripts = %v", got)
	}
	if got := testutil.ToFloat64(m.Transcripts.WithLabelValues("true")); got != 1 {
		t.Errorf("final transcripts = %v", got)
	}
	if got := testutil.ToFloat64(m.Restarts); got != 2 {
		t.Errorf("restarts = %v", got)
	}
	if got := testutil.ToFloat64(m.ReplayedChunks); got != 6 {
		t.Errorf("replayed = %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New(func() float64 { return 5 })
	m.Restart(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"subtitles_clients 5", "subtitles_session_restarts_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
