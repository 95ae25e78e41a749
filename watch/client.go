package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"node.town/subtitles/hub"
)

const reconnectDelay = time.Second

type CaptionMsg struct {
	Text string
}

type AnchorMsg struct {
	Flag int
}

type StatusMsg struct {
	Connected bool
	Err       error
}

// Decode turns one websocket envelope into a tea message. Unknown events
// decode to nil.
func Decode(payload []byte) (tea.Msg, error) {
	var msg hub.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch msg.Event {
	case hub.EventSubtitleUpdate:
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		return CaptionMsg{Text: text}, nil

	case hub.EventMoveSubtitle:
		var flag int
		if err := json.Unmarshal(msg.Data, &flag); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		return AnchorMsg{Flag: flag}, nil
	}
	return nil, nil
}

// Listen dials url and forwards decoded events to out, redialling after
// a second whenever the connection drops. It returns when ctx is done.
func Listen(ctx context.Context, url string, out chan<- tea.Msg, logger *log.Logger) {
	for {
		err := listenOnce(ctx, url, out, logger)
		if ctx.Err() != nil {
			return
		}
		send(ctx, out, StatusMsg{Connected: false, Err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func listenOnce(ctx context.Context, url string, out chan<- tea.Msg, logger *log.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	send(ctx, out, StatusMsg{Connected: true})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg, err := Decode(payload)
		if err != nil {
			logger.Warn("bad message", "error", err)
			continue
		}
		if msg != nil {
			send(ctx, out, msg)
		}
	}
}

func send(ctx context.Context, out chan<- tea.Msg, msg tea.Msg) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
