package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"node.town/subtitles/stt"
)

type State int32

const (
	NoSession State = iota
	Streaming
	Restarting
	Stopped
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "NO_SESSION"
	case Streaming:
		return "STREAMING"
	case Restarting:
		return "RESTARTING"
	case Stopped:
		return "STOPPED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Transcript is a recognition result with its end time corrected for
// every restart that happened before it.
type Transcript struct {
	Text          string
	IsFinal       bool
	ResultEndTime int64
	CorrectedTime int64
	Restart       int
}

type Restart struct {
	Number         int
	Previous       int
	Replayed       int
	BridgingOffset int64
}

type Config struct {
	StreamingLimit time.Duration
	OnTranscript   func(Transcript)
	OnRestart      func(Restart)

	// Expiry replaces the internal per-session timer when set.
	Expiry <-chan time.Time
}

var restartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

// Bridge keeps one recognition session open at a time and rotates it when
// the streaming limit expires. All fields below are owned by the Run
// goroutine.
type Bridge struct {
	recognition stt.SpeechRecognition
	cfg         Config
	logger      *log.Logger

	state    atomic.Int32
	requests chan struct{}
	timer    *time.Timer

	session stt.SpeechRecognizer
	results <-chan stt.Result
	errs    <-chan error
	dead    bool

	audioInput     [][]byte
	lastAudioInput [][]byte
	rs             RestartState
}

func New(
	recognition stt.SpeechRecognition,
	cfg Config,
	logger *log.Logger,
) *Bridge {
	return &Bridge{
		recognition: recognition,
		cfg:         cfg,
		logger:      logger,
		requests:    make(chan struct{}, 1),
	}
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	prev := State(b.state.Swap(int32(s)))
	if prev != s {
		b.logger.Debug("state", "from", prev, "to", s)
	}
}

// RequestRestart asks the Run loop to rotate the session as soon as it
// can. Safe to call from any goroutine.
func (b *Bridge) RequestRestart() {
	select {
	case b.requests <- struct{}{}:
	default:
	}
}

func (b *Bridge) limitMs() int64 {
	return b.cfg.StreamingLimit.Milliseconds()
}

// Run forwards chunks to the active session until ctx is done or chunks
// is closed.
func (b *Bridge) Run(ctx context.Context, chunks <-chan []byte) error {
	if b.cfg.StreamingLimit <= 0 {
		return fmt.Errorf("streaming limit must be positive, got %v", b.cfg.StreamingLimit)
	}

	if b.cfg.Expiry == nil {
		b.timer = time.NewTimer(b.cfg.StreamingLimit)
		defer b.timer.Stop()
	}

	// A failed open is logged and retried at the next restart.
	b.open(ctx)
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			b.pushAudio(chunk)

		case <-b.expiry():
			b.restart(ctx)

		case <-b.requests:
			b.restart(ctx)

		case result, ok := <-b.results:
			if !ok {
				b.results = nil
				b.dead = true
				b.logger.Info("session closed by server")
				continue
			}
			b.handleResult(result)

		case err := <-b.errs:
			b.handleError(ctx, err)
		}
	}
}

func (b *Bridge) expiry() <-chan time.Time {
	if b.cfg.Expiry != nil {
		return b.cfg.Expiry
	}
	return b.timer.C
}

func (b *Bridge) resetTimer() {
	if b.timer == nil {
		return
	}
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.timer.Reset(b.cfg.StreamingLimit)
}

func (b *Bridge) open(ctx context.Context) error {
	b.resetTimer()

	session, err := b.recognition.Start(ctx)
	if err != nil {
		b.logger.Error("failed to open recognition session", "error", err)
		b.setState(NoSession)
		return err
	}

	b.session = session
	b.results = session.Results()
	b.errs = session.Errors()
	b.dead = false
	b.setState(Streaming)
	return nil
}

func (b *Bridge) close() {
	if b.session == nil {
		return
	}
	if err := b.session.Stop(); err != nil {
		b.logger.Warn("failed to stop recognition session", "error", err)
	}
	b.session = nil
	b.results = nil
	b.errs = nil
}

func (b *Bridge) shutdown() {
	b.close()
	b.setState(Stopped)
}

func (b *Bridge) pushAudio(chunk []byte) {
	b.audioInput = append(b.audioInput, chunk)

	if b.session == nil || b.dead {
		return
	}
	b.send(chunk)
}

func (b *Bridge) send(chunk []byte) bool {
	if err := b.session.SendAudio(chunk); err != nil {
		b.dead = true
		if errors.Is(err, stt.ErrSessionExpired) {
			b.logger.Info("session expired while sending", "error", err)
			b.RequestRestart()
		} else {
			b.logger.Error("failed to send audio", "error", err)
		}
		return false
	}
	return true
}

func (b *Bridge) restart(ctx context.Context) {
	// A pending request belongs to the session being replaced.
	select {
	case <-b.requests:
	default:
	}

	b.setState(Restarting)
	b.close()

	if b.rs.ResultEndTime > 0 {
		b.rs.FinalRequestEndTime = b.rs.IsFinalEndTime
	}
	b.rs.ResultEndTime = 0

	b.lastAudioInput = b.audioInput
	b.audioInput = nil

	b.rs.RestartCounter++

	b.logger.Info(restartStyle.Render(
		fmt.Sprintf("%d: RESTARTING REQUEST", b.limitMs()*int64(b.rs.RestartCounter)),
	), "final", b.rs.LastWasFinal)

	event := Restart{
		Number:   b.rs.RestartCounter,
		Previous: len(b.lastAudioInput),
	}

	if err := b.open(ctx); err == nil {
		event.Replayed = b.replay()
	}
	event.BridgingOffset = b.rs.BridgingOffset

	if b.cfg.OnRestart != nil {
		b.cfg.OnRestart(event)
	}
}

// replay sends the tail of the previous buffer that the last finalized
// transcript did not cover. It runs before any live chunk reaches the new
// session.
func (b *Bridge) replay() int {
	plan, ok := PlanReplay(
		b.limitMs(),
		len(b.lastAudioInput),
		b.rs.FinalRequestEndTime,
		b.rs.BridgingOffset,
	)
	if !ok {
		return 0
	}
	b.rs.BridgingOffset = plan.BridgingOffset

	replayed := 0
	for _, chunk := range b.lastAudioInput[plan.From:] {
		if !b.send(chunk) {
			break
		}
		replayed++
	}

	b.logger.Debug(
		"replay",
		"from", plan.From,
		"chunks", replayed,
		"chunk_ms", plan.ChunkTime,
		"offset", plan.BridgingOffset,
	)
	return replayed
}

func (b *Bridge) handleResult(result stt.Result) {
	b.rs.ResultEndTime = result.EndTimeMillis()
	corrected := b.rs.Corrected(b.rs.ResultEndTime, b.limitMs())

	if result.IsFinal {
		b.rs.IsFinalEndTime = b.rs.ResultEndTime
		b.rs.LastWasFinal = true
		b.logger.Info("hear", "txt", result.Text, "at", corrected)
	} else {
		b.rs.LastWasFinal = false
		b.logger.Debug("hear", "tmp", result.Text, "at", corrected)
	}

	if b.cfg.OnTranscript != nil {
		b.cfg.OnTranscript(Transcript{
			Text:          result.Text,
			IsFinal:       result.IsFinal,
			ResultEndTime: b.rs.ResultEndTime,
			CorrectedTime: corrected,
			Restart:       b.rs.RestartCounter,
		})
	}
}

func (b *Bridge) handleError(ctx context.Context, err error) {
	if errors.Is(err, stt.ErrSessionExpired) {
		b.logger.Info("session expired", "error", err)
		b.restart(ctx)
		return
	}

	b.logger.Error("API request error", "error", err)
	b.dead = true
	b.errs = nil
}
