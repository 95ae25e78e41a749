package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type GoogleConfig struct {
	CredentialsFile string
	Encoding        string
	SampleRateHertz int
	LanguageCode    string
	Model           string
	Punctuation     bool
}

var encodings = map[string]speechpb.RecognitionConfig_AudioEncoding{
	"LINEAR16":               speechpb.RecognitionConfig_LINEAR16,
	"FLAC":                   speechpb.RecognitionConfig_FLAC,
	"MULAW":                  speechpb.RecognitionConfig_MULAW,
	"AMR":                    speechpb.RecognitionConfig_AMR,
	"AMR_WB":                 speechpb.RecognitionConfig_AMR_WB,
	"OGG_OPUS":               speechpb.RecognitionConfig_OGG_OPUS,
	"SPEEX_WITH_HEADER_BYTE": speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE,
	"WEBM_OPUS":              speechpb.RecognitionConfig_WEBM_OPUS,
}

// ParseEncoding maps an encoding name such as "LINEAR16" to its
// protobuf enum value.
func ParseEncoding(name string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	enc, ok := encodings[strings.ToUpper(name)]
	if !ok {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("unsupported audio encoding %q", name)
	}
	return enc, nil
}

type GoogleClient struct {
	client *speech.Client
	config *speechpb.StreamingRecognitionConfig
	logger *log.Logger
}

func NewGoogleClient(
	ctx context.Context,
	cfg GoogleConfig,
	logger *log.Logger,
) (*GoogleClient, error) {
	streamingConfig, err := streamingConfig(cfg)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	return &GoogleClient{
		client: client,
		config: streamingConfig,
		logger: logger,
	}, nil
}

func streamingConfig(cfg GoogleConfig) (*speechpb.StreamingRecognitionConfig, error) {
	enc, err := ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            int32(cfg.SampleRateHertz),
			LanguageCode:               cfg.LanguageCode,
			Model:                      cfg.Model,
			EnableAutomaticPunctuation: cfg.Punctuation,
		},
		InterimResults: true,
	}, nil
}

func (c *GoogleClient) Close() error {
	return c.client.Close()
}

func (c *GoogleClient) Start(ctx context.Context) (SpeechRecognizer, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := c.client.StreamingRecognize(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: c.config,
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	session := &GoogleSession{
		stream:  stream,
		cancel:  cancel,
		results: make(chan Result, 16),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
		logger:  c.logger,
	}

	go session.receive(ctx)

	c.logger.Info("open", "kind", "google", "language", c.config.Config.LanguageCode)
	return session, nil
}

type GoogleSession struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool

	results chan Result
	errors  chan error
	done    chan struct{}
	logger  *log.Logger
}

func (s *GoogleSession) SendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("send audio: session stopped")
	}

	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	})
	if err != nil {
		return fmt.Errorf("send audio: %w", classify(err))
	}
	return nil
}

func (s *GoogleSession) Results() <-chan Result {
	return s.results
}

func (s *GoogleSession) Errors() <-chan error {
	return s.errors
}

// Stop half-closes the stream, cancels the session context and waits for
// the receive loop to exit. Nothing is delivered on Results after Stop
// returns.
func (s *GoogleSession) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	err := s.stream.CloseSend()
	s.mu.Unlock()

	s.cancel()
	<-s.done

	if err != nil {
		return fmt.Errorf("close send: %w", err)
	}
	return nil
}

func (s *GoogleSession) receive(ctx context.Context) {
	defer close(s.done)
	defer close(s.results)

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(classify(err))
			return
		}

		if st := resp.GetError(); st != nil {
			s.fail(classify(status.ErrorProto(st)))
			return
		}

		result, ok := TopResult(resp)
		if !ok {
			continue
		}

		select {
		case s.results <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (s *GoogleSession) fail(err error) {
	select {
	case s.errors <- err:
	default:
		s.logger.Error("dropped session error", "error", err)
	}
}

// TopResult extracts the first alternative of the first result in a
// streaming response.
func TopResult(resp *speechpb.StreamingRecognizeResponse) (Result, bool) {
	results := resp.GetResults()
	if len(results) == 0 {
		return Result{}, false
	}

	top := results[0]
	alternatives := top.GetAlternatives()
	if len(alternatives) == 0 {
		return Result{}, false
	}

	return Result{
		Text:       alternatives[0].GetTranscript(),
		IsFinal:    top.GetIsFinal(),
		EndTime:    top.GetResultEndTime().AsDuration(),
		Confidence: float64(alternatives[0].GetConfidence()),
		Stability:  float64(top.GetStability()),
	}, true
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.OutOfRange, codes.Canceled:
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}
