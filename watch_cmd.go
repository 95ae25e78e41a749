package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/subtitles/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live captions in the terminal",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("url", "", "Websocket URL (default ws://localhost:<port>/ws)")
}

func watchURL(cmd *cobra.Command) string {
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		return url
	}
	return fmt.Sprintf("ws://localhost:%d/ws", viper.GetInt("port"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := make(chan tea.Msg, 64)

	// Connection errors show up in the log view; a logger on the
	// terminal would tear the UI.
	go watch.Listen(ctx, watchURL(cmd), events, log.New(io.Discard))

	p := tea.NewProgram(
		watch.NewModel(events),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
