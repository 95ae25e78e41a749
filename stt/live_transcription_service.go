package stt

import (
	"context"
	"errors"
	"time"
)

// ErrSessionExpired marks a session the service ended on its own, either
// because it hit the maximum stream duration or because it was cancelled.
// Callers are expected to open a replacement session.
var ErrSessionExpired = errors.New("recognition session expired")

type Result struct {
	Text       string
	IsFinal    bool
	EndTime    time.Duration
	Confidence float64
	Stability  float64
}

// EndTimeMillis converts the result end time the way the service reports
// it (seconds plus nanoseconds) into whole milliseconds, rounding the
// nanosecond part.
func (r Result) EndTimeMillis() int64 {
	secs := int64(r.EndTime / time.Second)
	nanos := int64(r.EndTime % time.Second)
	return secs*1000 + (nanos+500_000)/1_000_000
}

type SpeechRecognizer interface {
	Stop() error
	SendAudio(data []byte) error
	Results() <-chan Result
	Errors() <-chan error
}

type SpeechRecognition interface {
	Start(ctx context.Context) (SpeechRecognizer, error)
}
