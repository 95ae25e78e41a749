package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestArgs(t *testing.T) {
	t.Run("rec keeps silence", func(t *testing.T) {
		cfg := DefaultConfig()
		got := strings.Join(Args(cfg), " ")
		want := "-q -r 16000 -c 1 -e signed-integer -b 16 -t raw -"
		if got != want {
			t.Errorf("Args = %q, want %q", got, want)
		}
	})

	t.Run("sox trims silence", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Program = "sox"
		cfg.SampleRate = 44100
		cfg.KeepSilence = false
		cfg.Threshold = 3
		cfg.Silence = 1500 * time.Millisecond
		got := strings.Join(Args(cfg), " ")
		want := "-d -q -r 44100 -c 1 -e signed-integer -b 16 -t raw - silence 1 0.1 3% 1 1.5 3%"
		if got != want {
			t.Errorf("Args = %q, want %q", got, want)
		}
	})

	t.Run("arecord", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Program = "arecord"
		got := strings.Join(Args(cfg), " ")
		want := "-q -r 16000 -c 1 -t raw -f S16_LE -"
		if got != want {
			t.Errorf("Args = %q, want %q", got, want)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.Program = "ffmpeg" },
		func(c *Config) { c.SampleRate = 100 },
		func(c *Config) { c.Threshold = 120 },
		func(c *Config) { c.ChunkSize = 1023 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

// TestHelperProcess stands in for the recorder binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	n := 0
	fmt.Sscan(os.Getenv("HELPER_BYTES"), &n)
	os.Stdout.Write(bytes.Repeat([]byte{0x7f}, n))
	if os.Getenv("HELPER_FAIL") == "1" {
		os.Exit(3)
	}
	os.Exit(0)
}

func helperCommand(bytesOut int, fail bool, calls *atomic.Int32) CommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls.Add(1)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("HELPER_BYTES=%d", bytesOut),
		)
		if fail {
			cmd.Env = append(cmd.Env, "HELPER_FAIL=1")
		}
		return cmd
	}
}

func testSource(cfg Config, command CommandFunc) *Source {
	s := NewSource(cfg, log.New(io.Discard))
	s.command = command
	return s
}

func TestSourceChunksOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	cfg.RestartInitial = time.Hour
	cfg.RestartMax = time.Hour

	var calls atomic.Int32
	s := testSource(cfg, helperCommand(2500, false, &calls))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var sizes []int
	for len(sizes) < 3 {
		select {
		case chunk := <-s.Chunks():
			sizes = append(sizes, len(chunk))
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got chunks %v", sizes)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int{1024, 1024, 452}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk %d size = %d, want %d", i, sizes[i], want[i])
		}
	}

	if _, ok := <-s.Chunks(); ok {
		t.Error("chunk channel should be closed after Run returns")
	}
}

func TestSourceRestartsFailedRecorder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 64
	cfg.RestartInitial = time.Millisecond
	cfg.RestartMax = 5 * time.Millisecond

	var calls atomic.Int32
	s := testSource(cfg, helperCommand(64, true, &calls))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	received := 0
	for received < 3 {
		select {
		case <-s.Chunks():
			received++
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out after %d chunks", received)
		}
	}

	cancel()
	for range s.Chunks() {
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if calls.Load() < 3 {
		t.Errorf("recorder started %d times, want at least 3", calls.Load())
	}
}
