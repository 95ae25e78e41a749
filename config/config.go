package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"node.town/subtitles/capture"
	"node.town/subtitles/stt"
)

const EnvPrefix = "SUBTITLES"

type Speech struct {
	Encoding       string
	SampleRate     int
	LanguageCode   string
	StreamingLimit time.Duration
	Credentials    string
	Model          string
	Punctuation    bool
}

type Server struct {
	Port      int
	StaticDir string
}

type Pointer struct {
	Mode         string
	Percent      float64
	MoveInterval time.Duration
}

type Archive struct {
	DatabaseURL string
}

func (a Archive) Enabled() bool {
	return a.DatabaseURL != ""
}

type Log struct {
	Level log.Level
}

type Config struct {
	Speech  Speech
	Capture capture.Config
	Server  Server
	Pointer Pointer
	Archive Archive
	Log     Log
}

// SetDefaults registers every key the serve command reads.
func SetDefaults(v *viper.Viper) {
	d := capture.DefaultConfig()

	v.SetDefault("encoding", "LINEAR16")
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("language_code", "en-US")
	v.SetDefault("streaming_limit", 290000)
	v.SetDefault("credentials", "")
	v.SetDefault("model", "")
	v.SetDefault("punctuation", false)

	v.SetDefault("recorder", d.Program)
	v.SetDefault("silence_threshold", d.Threshold)
	v.SetDefault("silence_duration", d.Silence)
	v.SetDefault("keep_silence", d.KeepSilence)
	v.SetDefault("chunk_size", d.ChunkSize)

	v.SetDefault("port", 3000)
	v.SetDefault("static_dir", "")

	v.SetDefault("pointer", "robot")
	v.SetDefault("subtitle_move_percent", 25)
	v.SetDefault("move_interval", 150*time.Millisecond)

	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
}

// Init points v at ./config.yaml and SUBTITLES_* variables. A missing
// config file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load builds a Config from v, then applies the positional serve
// arguments: encoding, sampleRate, languageCode, streamingLimit (ms) and
// subtitleMovePercent, each optional.
func Load(v *viper.Viper, args []string) (Config, error) {
	level, err := log.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return Config{}, fmt.Errorf("log_level: %w", err)
	}

	cfg := Config{
		Speech: Speech{
			Encoding:       v.GetString("encoding"),
			SampleRate:     v.GetInt("sample_rate"),
			LanguageCode:   v.GetString("language_code"),
			StreamingLimit: time.Duration(v.GetInt64("streaming_limit")) * time.Millisecond,
			Credentials:    v.GetString("credentials"),
			Model:          v.GetString("model"),
			Punctuation:    v.GetBool("punctuation"),
		},
		Capture: capture.DefaultConfig(),
		Server: Server{
			Port:      v.GetInt("port"),
			StaticDir: v.GetString("static_dir"),
		},
		Pointer: Pointer{
			Mode:         v.GetString("pointer"),
			Percent:      v.GetFloat64("subtitle_move_percent"),
			MoveInterval: v.GetDuration("move_interval"),
		},
		Archive: Archive{DatabaseURL: v.GetString("database_url")},
		Log:     Log{Level: level},
	}

	cfg.Capture.Program = v.GetString("recorder")
	cfg.Capture.Threshold = v.GetFloat64("silence_threshold")
	cfg.Capture.Silence = v.GetDuration("silence_duration")
	cfg.Capture.KeepSilence = v.GetBool("keep_silence")
	cfg.Capture.ChunkSize = v.GetInt("chunk_size")

	if err := cfg.applyArgs(args); err != nil {
		return Config{}, err
	}
	cfg.Capture.SampleRate = cfg.Speech.SampleRate

	return cfg, nil
}

func (c *Config) applyArgs(args []string) error {
	if len(args) > 5 {
		return fmt.Errorf("expected at most 5 arguments, got %d", len(args))
	}
	for i, arg := range args {
		switch i {
		case 0:
			c.Speech.Encoding = arg
		case 1:
			rate, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("sampleRate %q: %w", arg, err)
			}
			c.Speech.SampleRate = rate
		case 2:
			c.Speech.LanguageCode = arg
		case 3:
			ms, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("streamingLimit %q: %w", arg, err)
			}
			c.Speech.StreamingLimit = time.Duration(ms) * time.Millisecond
		case 4:
			percent, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("subtitleMovePercent %q: %w", arg, err)
			}
			c.Pointer.Percent = percent
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Pointer.Validate(); err != nil {
		return fmt.Errorf("pointer: %w", err)
	}
	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

func (s *Speech) Validate() error {
	if _, err := stt.ParseEncoding(s.Encoding); err != nil {
		return err
	}
	if s.SampleRate < 8000 || s.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000 Hz, got %d", s.SampleRate)
	}
	if strings.TrimSpace(s.LanguageCode) == "" {
		return errors.New("language code is required")
	}
	if s.StreamingLimit < time.Second {
		return fmt.Errorf("streaming limit must be at least 1000 ms, got %d ms", s.StreamingLimit.Milliseconds())
	}
	return nil
}

// GoogleConfig is the recognizer configuration for this section.
func (s *Speech) GoogleConfig() stt.GoogleConfig {
	return stt.GoogleConfig{
		CredentialsFile: s.Credentials,
		Encoding:        s.Encoding,
		SampleRateHertz: s.SampleRate,
		LanguageCode:    s.LanguageCode,
		Model:           s.Model,
		Punctuation:     s.Punctuation,
	}
}

func (s *Server) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

func (s *Server) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func (p *Pointer) Validate() error {
	switch p.Mode {
	case "robot", "none":
	default:
		return fmt.Errorf("pointer must be robot or none, got %q", p.Mode)
	}
	if p.Percent < 0 || p.Percent > 100 {
		return fmt.Errorf("subtitle move percent must be between 0 and 100, got %v", p.Percent)
	}
	if p.MoveInterval <= 0 {
		return fmt.Errorf("move interval must be positive, got %s", p.MoveInterval)
	}
	return nil
}

func (a *Archive) Validate() error {
	if a.DatabaseURL == "" {
		return nil
	}
	if !strings.HasPrefix(a.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(a.DatabaseURL, "postgresql://") {
		return fmt.Errorf("database url must be a postgres:// url")
	}
	return nil
}
