package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/subtitles/config"
)

var logger = log.New(os.Stderr)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL for the caption archive")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(setupCmd)
}

func initConfig() {
	if err := config.Init(viper.GetViper()); err != nil {
		logger.Warn("config", "error", err)
	}
}

var rootCmd = &cobra.Command{
	Use:           "subtitles",
	Short:         "Live speech-to-text captions for a screen overlay",
	Long:          `Streams microphone audio to Google Speech-to-Text and pushes live captions to a browser overlay that keeps out of the way of the mouse pointer.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("subtitles", "error", err)
		os.Exit(1)
	}
}

// logLevel reads log_level, falling back to info.
func logLevel() log.Level {
	level, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func createLoggers(level log.Level) (mainLogger, micLogger, hearLogger, wwwLogger, dataLogger *log.Logger) {
	logger.SetLevel(level)
	logger.SetReportCaller(true)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(24)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	mainLogger = logger.With().WithPrefix("main")
	micLogger = logger.With().WithPrefix("mic")
	hearLogger = logger.With().WithPrefix("hear")
	wwwLogger = logger.With().WithPrefix("www")
	dataLogger = logger.With().WithPrefix("data")

	return
}
