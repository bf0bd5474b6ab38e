package sse

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// Board is what a websocket client can see and do.
type Board interface {
	View() application.BoardView
	Move(ctx context.Context, recordID, target string) (board.DropResult, error)
}

// Request is a client command.
type Request struct {
	Action   string `json:"action"`
	RecordID string `json:"record_id,omitempty"`
	Target   string `json:"target,omitempty"`
}

// Frame is everything the server sends besides forwarded events.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// MoveReply reports the outcome of a move request.
type MoveReply struct {
	RecordID string `json:"record_id"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

const (
	FrameSnapshot   = "board.snapshot"
	FrameMoveResult = "move.result"
	FrameError      = "error"
)

// snapshotAfter lists the events after which a fresh snapshot is pushed.
var snapshotAfter = map[string]bool{
	events.EventTypeMoveApplied:    true,
	events.EventTypeMoveFailed:     true,
	events.EventTypeMoveStalled:    true,
	events.EventTypeBoardRefreshed: true,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves an interactive board over a websocket: a snapshot on
// connect and after every board change, forwarded events, and move
// requests.
type WSHandler struct {
	hub    *Hub
	board  Board
	logger *slog.Logger
}

// NewWSHandler creates a handler for b streaming from hub.
func NewWSHandler(hub *Hub, b Board, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{hub: hub, board: b, logger: logger}
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// ServeHTTP upgrades the connection and serves it until the client leaves.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	conn := &wsConn{conn: ws}
	filter := ParseTypeFilter(r.URL.Query().Get("types"))

	ch, detach := h.hub.Attach()
	defer detach()

	if err := conn.send(Frame{Type: FrameSnapshot, Data: h.board.View()}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.readLoop(ctx, conn)
	}()

	h.writeLoop(ctx, conn, ch, filter)
	// Unblock the reader.
	_ = ws.Close()
	wg.Wait()
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *wsConn, ch <-chan *events.BaseEvent, filter TypeFilter) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if filter.Allows(event.Type) {
				if err := conn.send(NewMessage(event)); err != nil {
					return
				}
			}
			if snapshotAfter[event.Type] {
				if err := conn.send(Frame{Type: FrameSnapshot, Data: h.board.View()}); err != nil {
					return
				}
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *wsConn) {
	for {
		var req Request
		if err := conn.conn.ReadJSON(&req); err != nil {
			h.logger.Debug("websocket client disconnected", "error", err)
			return
		}

		var reply any
		switch req.Action {
		case "move":
			reply = Frame{Type: FrameMoveResult, Data: h.move(ctx, req)}
		case "snapshot":
			reply = Frame{Type: FrameSnapshot, Data: h.board.View()}
		default:
			reply = Frame{Type: FrameError, Data: "unknown action " + req.Action}
		}
		if err := conn.send(reply); err != nil {
			return
		}
	}
}

func (h *WSHandler) move(ctx context.Context, req Request) MoveReply {
	reply := MoveReply{RecordID: req.RecordID}
	res, err := h.board.Move(ctx, req.RecordID, req.Target)
	if err != nil {
		reply.Outcome = board.OutcomeInvalid.String()
		reply.Error = err.Error()
		return reply
	}
	reply.Outcome = res.Outcome.String()
	if res.Err != nil {
		reply.Error = res.Err.Error()
	}
	return reply
}
