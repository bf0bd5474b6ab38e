package sse_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/sse"
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

type fakeBoard struct {
	mu    sync.Mutex
	moves []string
}

func (b *fakeBoard) View() application.BoardView {
	return application.BoardView{
		Field:   board.FieldStatus,
		Columns: []application.ColumnView{{Key: board.UnassignedKey, Label: board.UnassignedLabel, Cards: []application.CardView{}}},
	}
}

func (b *fakeBoard) Move(_ context.Context, recordID, target string) (board.DropResult, error) {
	b.mu.Lock()
	b.moves = append(b.moves, recordID+"->"+target)
	b.mu.Unlock()
	if target == "nowhere" {
		return board.DropResult{Outcome: board.OutcomeInvalid, Err: board.ErrUnknownColumn}, nil
	}
	return board.DropResult{Outcome: board.OutcomeApplied}, nil
}

type frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func TestWSHandler_SnapshotAndMoves(t *testing.T) {
	publisher := storage.NewInMemoryEventPublisher(nil)
	hub := sse.NewHub(publisher)
	defer hub.Close()
	b := &fakeBoard{}

	server := httptest.NewServer(sse.NewWSHandler(hub, b, nil))
	defer server.Close()

	ws := dial(t, server.URL)
	defer ws.Close()

	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != sse.FrameSnapshot || f.Data["field"] != "status" {
		t.Errorf("expected an initial snapshot, got %+v", f)
	}

	if err := ws.WriteJSON(sse.Request{Action: "move", RecordID: "t1", Target: "nowhere"}); err != nil {
		t.Fatal(err)
	}
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != sse.FrameMoveResult || f.Data["outcome"] != "invalid" || f.Data["error"] != board.ErrUnknownColumn.Error() {
		t.Errorf("unexpected move reply %+v", f)
	}

	if err := ws.WriteJSON(sse.Request{Action: "dance"}); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := ws.ReadJSON(&raw); err != nil {
		t.Fatal(err)
	}
	if raw["type"] != sse.FrameError {
		t.Errorf("expected an error frame, got %v", raw)
	}
}

func TestWSHandler_ForwardsEventsWithSnapshot(t *testing.T) {
	publisher := storage.NewInMemoryEventPublisher(nil)
	hub := sse.NewHub(publisher)
	defer hub.Close()

	server := httptest.NewServer(sse.NewWSHandler(hub, &fakeBoard{}, nil))
	defer server.Close()

	ws := dial(t, server.URL)
	defer ws.Close()

	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	// The hub attaches before the first snapshot is written.
	_ = publisher.Publish(applied("t7"))

	var msg sse.Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "move.applied" || msg.AggregateID != "t7" {
		t.Errorf("unexpected forwarded event %+v", msg)
	}
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != sse.FrameSnapshot {
		t.Errorf("expected a snapshot after a move event, got %s", f.Type)
	}
}
