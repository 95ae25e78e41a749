package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"node.town/subtitles/bridge"
	"node.town/subtitles/capture"
	"node.town/subtitles/config"
	"node.town/subtitles/db"
	"node.town/subtitles/etc"
	"node.town/subtitles/hub"
	"node.town/subtitles/metrics"
	"node.town/subtitles/pointer"
	"node.town/subtitles/stt"
	"node.town/subtitles/www"
)

var serveCmd = &cobra.Command{
	Use:   "serve [encoding] [sampleRate] [languageCode] [streamingLimit] [subtitleMovePercent]",
	Short: "Capture audio and serve live captions",
	Long: `Records from the microphone, streams the audio to Google Speech-to-Text
and broadcasts captions to every page connected at /ws.

Defaults: LINEAR16 16000 en-US 290000 25`,
	Args: cobra.MaximumNArgs(5),
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.IntP("port", "p", 3000, "HTTP port")
	flags.String("credentials", "", "Google service account JSON file")
	flags.String("recorder", "rec", "Recorder program (rec, sox, arecord)")
	flags.String("static-dir", "", "Serve the display page from this directory")
	flags.String("pointer", "robot", "Pointer tracking (robot, none)")
	flags.Duration("move-interval", 150*time.Millisecond, "How often to recompute the caption position")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("credentials", flags.Lookup("credentials"))
	viper.BindPFlag("recorder", flags.Lookup("recorder"))
	viper.BindPFlag("static_dir", flags.Lookup("static-dir"))
	viper.BindPFlag("pointer", flags.Lookup("pointer"))
	viper.BindPFlag("move_interval", flags.Lookup("move-interval"))
}

// publisher is the caption side of the hub.
type publisher interface {
	SubtitleUpdate(text string) error
	MoveSubtitle(flag int) error
}

type captionStore interface {
	Store(restart int, text string, resultEndMs, correctedEndMs int64)
}

// transcriptHandler pushes every transcript to the page and archives the
// final ones when store is set.
func transcriptHandler(pub publisher, store captionStore, m *metrics.Metrics, logger *log.Logger) func(bridge.Transcript) {
	return func(t bridge.Transcript) {
		m.Transcript(t.IsFinal)
		if err := pub.SubtitleUpdate(t.Text); err != nil {
			logger.Warn("publish caption", "error", err)
		}
		if t.IsFinal && store != nil {
			store.Store(t.Restart, t.Text, t.ResultEndTime, t.CorrectedTime)
		}
	}
}

func anchorPublisher(pub publisher, m *metrics.Metrics, logger *log.Logger) func(pointer.Anchor) {
	return func(a pointer.Anchor) {
		m.Anchor.Set(float64(a))
		if err := pub.MoveSubtitle(int(a)); err != nil {
			logger.Debug("publish anchor", "error", err)
		}
	}
}

// parked is the pointer position reported when tracking is off: the top
// edge, which keeps the caption at the bottom.
var parked = pointer.StaticTracker{Y: 0, Height: 1}

func tracker(mode string) pointer.Tracker {
	if mode == "robot" {
		return pointer.RobotTracker{}
	}
	return parked
}

// quiet treats cancellation as a clean exit.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper(), args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mainLogger, micLogger, hearLogger, wwwLogger, dataLogger := createLoggers(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recognition, err := stt.NewGoogleClient(ctx, cfg.Speech.GoogleConfig(), hearLogger)
	if err != nil {
		return err
	}
	defer recognition.Close()

	h := hub.New(wwwLogger)
	m := metrics.New(func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return float64(h.Clients(ctx))
	})

	server, err := www.New(www.Options{
		Addr:      cfg.Server.Addr(),
		StaticDir: cfg.Server.StaticDir,
		Metrics:   m.Handler(),
	}, h, wwwLogger)
	if err != nil {
		return err
	}

	source := capture.NewSource(cfg.Capture, micLogger)

	var archive *db.Archive
	var store captionStore
	if cfg.Archive.Enabled() {
		pool, queries, err := db.OpenDatabase(ctx, cfg.Archive.DatabaseURL)
		if err != nil {
			dataLogger.Error("caption archive disabled", "error", err)
		} else {
			defer pool.Close()
			archive = db.NewArchive(queries, etc.NewFreshID(), cfg.Speech.LanguageCode, dataLogger)
			store = archive
			dataLogger.Info("archiving captions", "run", archive.RunID())
		}
	}

	b := bridge.New(recognition, bridge.Config{
		StreamingLimit: cfg.Speech.StreamingLimit,
		OnTranscript:   transcriptHandler(h, store, m, hearLogger),
		OnRestart: func(r bridge.Restart) {
			m.Restart(r.Replayed)
		},
	}, hearLogger)

	mainLogger.Info(
		"starting",
		"encoding", cfg.Speech.Encoding,
		"sample_rate", cfg.Speech.SampleRate,
		"language", cfg.Speech.LanguageCode,
		"streaming_limit", cfg.Speech.StreamingLimit,
		"move_percent", cfg.Pointer.Percent,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		return source.Run(ctx)
	})
	g.Go(func() error {
		return quiet(b.Run(ctx, source.Chunks()))
	})

	g.Go(func() error {
		pointer.Watch(ctx, tracker(cfg.Pointer.Mode), cfg.Pointer.Percent, cfg.Pointer.MoveInterval, anchorPublisher(h, m, wwwLogger), wwwLogger)
		return nil
	})

	if archive != nil {
		g.Go(func() error {
			return archive.Run(ctx)
		})
	}

	err = g.Wait()
	mainLogger.Info("stopped")
	return err
}
