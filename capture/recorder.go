package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
)

type Config struct {
	Program    string
	SampleRate int
	// Threshold is the silence threshold in percent.
	Threshold   float64
	Silence     time.Duration
	KeepSilence bool
	ChunkSize   int

	RestartInitial time.Duration
	RestartMax     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Program:        "rec",
		SampleRate:     16000,
		Threshold:      0,
		Silence:        time.Second,
		KeepSilence:    true,
		ChunkSize:      4096,
		RestartInitial: 500 * time.Millisecond,
		RestartMax:     30 * time.Second,
	}
}

func (c *Config) Validate() error {
	switch c.Program {
	case "rec", "sox", "arecord":
	default:
		return fmt.Errorf("recorder must be one of [rec, sox, arecord], got %q", c.Program)
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000 Hz, got %d", c.SampleRate)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("silence threshold must be between 0 and 100 percent, got %v", c.Threshold)
	}
	if c.ChunkSize < 2 || c.ChunkSize%2 != 0 {
		return fmt.Errorf("chunk size must be a positive even number of bytes, got %d", c.ChunkSize)
	}
	return nil
}

// Args builds the recorder command line for raw mono signed 16-bit PCM
// on stdout.
func Args(cfg Config) []string {
	rate := strconv.Itoa(cfg.SampleRate)

	if cfg.Program == "arecord" {
		return []string{"-q", "-r", rate, "-c", "1", "-t", "raw", "-f", "S16_LE", "-"}
	}

	var args []string
	if cfg.Program == "sox" {
		args = append(args, "-d")
	}
	args = append(args,
		"-q",
		"-r", rate,
		"-c", "1",
		"-e", "signed-integer",
		"-b", "16",
		"-t", "raw",
		"-",
	)

	if !cfg.KeepSilence {
		threshold := strconv.FormatFloat(cfg.Threshold, 'f', -1, 64) + "%"
		silence := strconv.FormatFloat(cfg.Silence.Seconds(), 'f', -1, 64)
		args = append(args, "silence", "1", "0.1", threshold, "1", silence, threshold)
	}

	return args
}

// CommandFunc creates the recorder process. Tests swap it out.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type Source struct {
	cfg     Config
	command CommandFunc
	chunks  chan []byte
	logger  *log.Logger
}

func NewSource(cfg Config, logger *log.Logger) *Source {
	return &Source{
		cfg:     cfg,
		command: exec.CommandContext,
		chunks:  make(chan []byte, 64),
		logger:  logger,
	}
}

func (s *Source) Chunks() <-chan []byte {
	return s.chunks
}

// Run keeps a recorder process alive until ctx is done, restarting it
// with exponential backoff whenever it exits. The chunk channel is closed
// when Run returns.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.chunks)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RestartInitial
	b.MaxInterval = s.cfg.RestartMax

	_, err := backoff.Retry(
		ctx,
		func() (struct{}, error) {
			started := time.Now()
			err := s.record(ctx)
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			// A recorder that ran for a while is considered healthy.
			if time.Since(started) > s.cfg.RestartMax {
				b.Reset()
			}
			if err == nil {
				err = errors.New("recorder exited")
			}
			return struct{}{}, err
		},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Error("Audio recording error", "error", err, "retry_in", next)
		}),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Source) record(ctx context.Context) error {
	args := Args(s.cfg)
	cmd := s.command(ctx, s.cfg.Program, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recorder stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.Program, err)
	}
	s.logger.Info("recording", "program", s.cfg.Program, "rate", s.cfg.SampleRate)

	readErr := s.pump(ctx, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("%s exited: %w", s.cfg.Program, waitErr)
	}
	return nil
}

func (s *Source) pump(ctx context.Context, r io.Reader) error {
	for {
		chunk := make([]byte, s.cfg.ChunkSize)
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			select {
			case s.chunks <- chunk[:n]:
			case <-ctx.Done():
				return nil
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}
}
