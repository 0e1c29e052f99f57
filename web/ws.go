// ABOUTME: Websocket channel: streams board events to a client and feeds its pointer and dial input to the session.
// ABOUTME: Pointer ids are scoped per connection, and a dropped connection cancels its pointers.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/drag"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	wsMaxMessage  = 8 << 10
	wsOutboundCap = 256
)

var connSeq atomic.Uint64

// ClientMessage is input sent by a board client.
type ClientMessage struct {
	Type    string  `json:"type"`
	Pointer string  `json:"pointer,omitempty"`
	CardID  string  `json:"card_id,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Region  string  `json:"region,omitempty"`
	Angle   float64 `json:"angle,omitempty"`
}

// ServerMessage is output sent to a board client.
type ServerMessage struct {
	Type    string           `json:"type"`
	Event   *core.Event      `json:"event,omitempty"`
	Board   *BoardSnapshot   `json:"board,omitempty"`
	CardID  string           `json:"card_id,omitempty"`
	Release *drag.Release    `json:"release,omitempty"`
	Dial    *board.DialState `json:"dial,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type wsClient struct {
	id       string
	conn     *websocket.Conn
	out      chan ServerMessage
	pointers map[drag.PointerID]bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("component", "web.ws"), slog.Any("err", err))
		return
	}
	c := &wsClient{
		id:       strconv.FormatUint(connSeq.Add(1), 10),
		conn:     conn,
		out:      make(chan ServerMessage, wsOutboundCap),
		pointers: make(map[drag.PointerID]bool),
	}
	s.logger.Info("websocket connected", slog.String("component", "web.ws"), slog.String("conn", c.id))

	// Subscribe before the snapshot so no event falls between them; clients
	// skip events whose seq the snapshot already covers.
	events := s.session.Subscribe()
	if snap, err := s.snapshot(); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteJSON(ServerMessage{Type: "hello", Board: &snap})
	}
	done := make(chan struct{})
	go s.wsWriter(c, events, done)
	s.wsReader(c)

	close(done)
	s.session.Unsubscribe(events)
	for p := range c.pointers {
		_, _ = s.session.PointerCancel(p)
	}
	s.logger.Info("websocket closed", slog.String("component", "web.ws"), slog.String("conn", c.id))
}

func (c *wsClient) send(msg ServerMessage) {
	select {
	case c.out <- msg:
	default:
	}
}

func (s *Server) wsReader(c *wsClient) {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(ServerMessage{Type: "error", Error: "malformed message"})
			continue
		}
		if err := s.dispatchClient(c, msg); err != nil {
			c.send(ServerMessage{Type: "error", Error: err.Error(), CardID: msg.CardID})
		}
	}
}

func (s *Server) dispatchClient(c *wsClient, msg ClientMessage) error {
	pointer := drag.PointerID(c.id + ":" + msg.Pointer)
	at := core.Point{X: msg.X, Y: msg.Y}

	switch msg.Type {
	case "pointer_down":
		id, err := ulid.Parse(msg.CardID)
		if err != nil {
			return fmt.Errorf("card id: %w", err)
		}
		region, err := drag.ParseRegion(msg.Region)
		if err != nil {
			return err
		}
		if err := s.session.PointerDown(pointer, id, at, region); err != nil {
			return err
		}
		c.pointers[pointer] = true
	case "pointer_move":
		return s.session.PointerMove(pointer, at)
	case "pointer_up", "pointer_cancel":
		delete(c.pointers, pointer)
		var rel drag.Release
		var err error
		if msg.Type == "pointer_up" {
			rel, err = s.session.PointerUp(pointer)
		} else {
			rel, err = s.session.PointerCancel(pointer)
		}
		if err != nil {
			return err
		}
		if rel.OpenEdit {
			c.send(ServerMessage{Type: "edit_open", CardID: rel.CardID.String(), Release: &rel})
		}
	case "dial_begin":
		return s.session.DialBegin(msg.Angle)
	case "dial_move":
		return s.session.DialMove(msg.Angle)
	case "dial_end":
		st, err := s.session.DialEnd()
		if err != nil {
			return err
		}
		c.send(ServerMessage{Type: "dial", Dial: &st})
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (s *Server) wsWriter(c *wsClient, events <-chan core.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	write := func(msg ServerMessage) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return c.conn.WriteJSON(msg) == nil
	}
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "board closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if !write(ServerMessage{Type: "event", Event: &ev}) {
				return
			}
		case msg := <-c.out:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
