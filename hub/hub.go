package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	EventSubtitleUpdate = "subtitleUpdate"
	EventMoveSubtitle   = "moveSubtitle"

	PingInterval = 30 * time.Second
	PongTimeout  = 60 * time.Second
	WriteTimeout = 10 * time.Second

	sendQueue = 64
)

var ErrClosed = errors.New("hub closed")

type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans every published event out to all connected websocket clients
// in publish order. The client set is owned by Run.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}

	upgrader websocket.Upgrader
	logger   *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendQueue),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})

	defer func() {
		for c := range clients {
			close(c.send)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.logger.Info("client connected", "remote", c.conn.RemoteAddr(), "clients", len(clients))

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.logger.Info("client disconnected", "remote", c.conn.RemoteAddr(), "clients", len(clients))
			}

		case payload := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					delete(clients, c)
					close(c.send)
					h.logger.Warn("dropping slow client", "remote", c.conn.RemoteAddr())
				}
			}

		case reply := <-h.count:
			reply <- len(clients)
		}
	}
}

// Clients reports how many clients are connected.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
}

func (h *Hub) Publish(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	payload, err := json.Marshal(Message{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", event, err)
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

func (h *Hub) SubtitleUpdate(text string) error {
	return h.Publish(EventSubtitleUpdate, text)
}

func (h *Hub) MoveSubtitle(flag int) error {
	return h.Publish(EventMoveSubtitle, flag)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueue)}

	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client input; it exists to notice closed sockets and
// answer pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Error("websocket write", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				h.logger.Error("Failed to send ping", "error", err)
				return
			}
		}
	}
}
