package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

func bundle() board.MetadataBundle {
	return board.MetadataBundle{
		Statuses: []board.MetadataEntry{
			{ID: "5", Name: "Todo", Color: "gray", Order: 1},
			{ID: "98", Name: "In Progress", Color: "amber", Order: 2, ParentID: "1"},
			{ID: "99", Name: "In Progress", Color: "orange", Order: 2, ParentID: "2"},
			{ID: "10", Name: "Done", Color: "green", Order: 3, ParentID: "1"},
			{ID: "20", Name: "Done", Color: "teal", Order: 3, ParentID: "2"},
		},
		Users:    []board.MetadataEntry{{ID: "u1", Name: "Ada"}},
		Projects: []board.MetadataEntry{{ID: "1", Name: "Apollo"}, {ID: "2", Name: "Gemini"}, {ID: "3", Name: "Mercury"}},
	}
}

var (
	todoKey       = board.DedupKey("Todo", []string{"5"})
	inProgressKey = board.DedupKey("In Progress", []string{"98", "99"})
	doneKey       = board.DedupKey("Done", []string{"10", "20"})
)

// fakeBackend serves records and metadata from memory and applies writes the
// way a real backend would, unless frozen.
type fakeBackend struct {
	mu      sync.Mutex
	records map[string]board.Record
	order   []string
	meta    board.MetadataBundle

	// frozen makes writes succeed without ever showing up in fetches.
	frozen  bool
	failure error
	release chan struct{}
	// gates hold writes of a given value until closed.
	gates   map[string]chan struct{}
	updates []board.FieldUpdate
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{records: make(map[string]board.Record), meta: bundle()}
	for _, r := range []board.Record{
		{ID: "t1", Title: "Ship release", ProjectID: "1", StatusID: "10", StatusName: "Done"},
		{ID: "t2", Title: "Write docs", ProjectID: "2", StatusID: "99", StatusName: "In Progress", AssigneeID: "u1"},
		{ID: "t3", Title: "Plan roadmap", ProjectID: "3", StatusID: "5", StatusName: "Todo"},
	} {
		b.records[r.ID] = r
		b.order = append(b.order, r.ID)
	}
	return b
}

func (b *fakeBackend) FetchRecords(_ context.Context, _ board.Query) (*board.Batch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]board.Record, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.records[id])
	}
	return &board.Batch{RecordsByGroup: map[string][]board.Record{"all": out}, Metadata: b.meta}, nil
}

func (b *fakeBackend) FetchMetadata(_ context.Context) (board.MetadataBundle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta, nil
}

func (b *fakeBackend) UpdateField(ctx context.Context, id string, u board.FieldUpdate) error {
	b.mu.Lock()
	release := b.release
	gate := b.gates[u.Value]
	b.mu.Unlock()
	for _, ch := range []chan struct{}{release, gate} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, u)
	if b.failure != nil {
		return b.failure
	}
	if b.frozen {
		return nil
	}
	f, ok := board.FieldForBacking(u.Field)
	if !ok {
		return board.ErrUnknownField
	}
	rec, ok := b.records[id]
	if !ok {
		return board.ErrRecordNotFound
	}
	b.records[id] = rec.Apply(board.NewPatch(board.NewMetadataStore(b.meta), f, u.Value))
	return nil
}

func (b *fakeBackend) set(r board.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[r.ID] = r
}

func (b *fakeBackend) writes() []board.FieldUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]board.FieldUpdate(nil), b.updates...)
}

// recorder collects dispatched event types.
type recorder struct {
	mu    sync.Mutex
	types []string
	ch    chan string
}

func (r *recorder) handle(_ context.Context, e events.DomainEvent) error {
	r.mu.Lock()
	r.types = append(r.types, e.EventType())
	r.mu.Unlock()
	select {
	case r.ch <- e.EventType():
	default:
	}
	return nil
}

func (r *recorder) seen(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func (r *recorder) await(t *testing.T, eventType string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.ch:
			if got == eventType {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func newService(t *testing.T, backend *fakeBackend, opts application.Options) (*application.BoardService, *recorder) {
	t.Helper()
	rec := &recorder{ch: make(chan string, 64)}
	d := events.NewEventDispatcher()
	d.RegisterWildcard("recorder", rec.handle)

	store := application.NewStore(board.NewState(board.FieldStatus, nil))
	svc, err := application.NewBoardService(store, backend, backend, backend, d, opts)
	if err != nil {
		t.Fatalf("NewBoardService failed: %v", err)
	}
	t.Cleanup(svc.Close)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return svc, rec
}

func columnOf(t *testing.T, svc *application.BoardService, id string) string {
	t.Helper()
	key, ok := svc.State().View().ColumnOf(id)
	if !ok {
		t.Fatalf("record %s is not on the board", id)
	}
	return key
}

func TestBoardService_LoadGroupsRecords(t *testing.T) {
	svc, rec := newService(t, newFakeBackend(), application.Options{})

	if got := columnOf(t, svc, "t2"); got != inProgressKey {
		t.Errorf("Expected t2 in %s, got %s", inProgressKey, got)
	}
	if got := columnOf(t, svc, "t3"); got != todoKey {
		t.Errorf("Expected t3 in %s, got %s", todoKey, got)
	}
	if !rec.seen(events.EventTypeBoardRefreshed) {
		t.Error("Expected board.refreshed after load")
	}
}

func TestBoardService_MoveIsVisibleBeforePersistence(t *testing.T) {
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	svc, rec := newService(t, backend, application.Options{})

	res, err := svc.Move(context.Background(), "t2", "done")
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if res.Outcome != board.OutcomeApplied {
		t.Fatalf("Expected applied, got %s (%v)", res.Outcome, res.Err)
	}

	state := svc.State()
	if got := columnOf(t, svc, "t2"); got != doneKey {
		t.Errorf("Expected t2 in Done before the write lands, got %s", got)
	}
	if !state.IsPending("t2") {
		t.Error("Expected t2 to be pending")
	}
	if r, _ := state.ViewRecord("t2"); r.StatusID != "20" || r.StatusName != "Done" || r.StatusColor != "teal" {
		t.Errorf("Expected Gemini's Done with display fields, got %+v", r)
	}
	if r, _ := state.Record("t2"); r.StatusID != "99" {
		t.Errorf("authoritative record must be untouched, got %+v", r)
	}

	close(backend.release)
	svc.Wait()

	if svc.State().IsPending("t2") {
		t.Error("Expected the refetch to settle the move")
	}
	if got := columnOf(t, svc, "t2"); got != doneKey {
		t.Errorf("Expected t2 to stay in Done, got %s", got)
	}
	if w := backend.writes(); len(w) != 1 || w[0] != (board.FieldUpdate{Field: "status_id", Value: "20"}) {
		t.Errorf("Expected a single backing-field write, got %v", w)
	}
	for _, et := range []string{events.EventTypeMoveApplied, events.EventTypeMoveSettled} {
		if !rec.seen(et) {
			t.Errorf("Expected %s", et)
		}
	}
}

func TestBoardService_FailedMoveRollsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.failure = errors.New("permission denied")

	var mu sync.Mutex
	var reported error
	svc, rec := newService(t, backend, application.Options{
		OnFailure: func(_ board.PendingMove, err error) {
			mu.Lock()
			reported = err
			mu.Unlock()
		},
	})
	before := svc.State()

	if _, err := svc.Move(context.Background(), "t2", doneKey); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	svc.Wait()

	after := svc.State()
	if after.IsPending("t2") || after.Overlay != nil {
		t.Error("Expected the overlay to be gone after rollback")
	}
	if got := columnOf(t, svc, "t2"); got != inProgressKey {
		t.Errorf("Expected t2 back in In Progress, got %s", got)
	}
	if len(after.Records) != len(before.Records) {
		t.Error("rollback must not change the record set")
	}

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(reported, board.ErrPersistence) {
		t.Errorf("Expected a persistence error, got %v", reported)
	}
	var perr *board.PersistenceError
	if !errors.As(reported, &perr) || perr.Field != "status_id" || perr.RecordID != "t2" {
		t.Errorf("unexpected error detail %v", reported)
	}
	if !rec.seen(events.EventTypeMoveFailed) {
		t.Error("Expected move.failed")
	}
}

func TestBoardService_UnconfirmedMoveIsAbandoned(t *testing.T) {
	backend := newFakeBackend()
	backend.frozen = true
	svc, rec := newService(t, backend, application.Options{ReconcileTimeout: 20 * time.Millisecond})

	if _, err := svc.Move(context.Background(), "t2", doneKey); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	rec.await(t, events.EventTypeMoveStalled)

	if svc.State().IsPending("t2") {
		t.Error("Expected the stalled move to be dropped")
	}
	if got := columnOf(t, svc, "t2"); got != inProgressKey {
		t.Errorf("authoritative data must win, got t2 in %s", got)
	}
}

func TestBoardService_LateWriteKeepsNewerBackstop(t *testing.T) {
	backend := newFakeBackend()
	backend.frozen = true
	backend.gates = map[string]chan struct{}{"20": make(chan struct{}), "5": make(chan struct{})}
	svc, rec := newService(t, backend, application.Options{ReconcileTimeout: 150 * time.Millisecond})
	ctx := context.Background()

	if _, err := svc.Move(ctx, "t2", doneKey); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := svc.Move(ctx, "t2", todoKey); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	latest := svc.State().Pending["t2"].Seq

	// The newer write lands first, then the older one.
	close(backend.gates["5"])
	deadline := time.Now().Add(2 * time.Second)
	for len(backend.writes()) < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(backend.gates["20"])

	rec.await(t, events.EventTypeMoveStalled)
	if svc.State().IsPending("t2") {
		t.Errorf("newer move %d must be abandoned by its own backstop", latest)
	}
	if got := columnOf(t, svc, "t2"); got != inProgressKey {
		t.Errorf("authoritative data must win, got t2 in %s", got)
	}
}

func TestBoardService_InvalidDrops(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newService(t, backend, application.Options{})
	ctx := context.Background()
	before := svc.State()

	res, err := svc.Move(ctx, "t3", doneKey)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if res.Outcome != board.OutcomeInvalid || !errors.Is(res.Err, board.ErrNoParentMatch) {
		t.Errorf("Expected no-parent-match rejection, got %s (%v)", res.Outcome, res.Err)
	}

	res, _ = svc.Move(ctx, "t3", "Nowhere")
	if res.Outcome != board.OutcomeInvalid || !errors.Is(res.Err, board.ErrUnknownColumn) {
		t.Errorf("Expected unknown column, got %s (%v)", res.Outcome, res.Err)
	}

	res, _ = svc.Move(ctx, "t3", todoKey)
	if res.Outcome != board.OutcomeNoop {
		t.Errorf("Expected noop for the current column, got %s", res.Outcome)
	}

	if _, err := svc.Move(ctx, "missing", todoKey); !errors.Is(err, board.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}

	svc.Wait()
	if len(backend.writes()) != 0 {
		t.Error("rejected drops must not reach the gateway")
	}
	if svc.State().Overlay != nil || len(svc.State().Records) != len(before.Records) {
		t.Error("rejected drops must not change the board")
	}
}

func TestBoardService_DragGesture(t *testing.T) {
	svc, _ := newService(t, newFakeBackend(), application.Options{})
	ctx := context.Background()

	if err := svc.BeginDrag("t1"); err != nil {
		t.Fatalf("BeginDrag failed: %v", err)
	}
	if err := svc.BeginDrag("t2"); !errors.Is(err, board.ErrDragInProgress) {
		t.Errorf("Expected ErrDragInProgress, got %v", err)
	}
	if err := svc.Hover(todoKey); err != nil {
		t.Fatal(err)
	}
	if g, ok := svc.Gesture(); !ok || g.HoverKey != todoKey || g.FromKey != doneKey {
		t.Errorf("unexpected gesture %+v", g)
	}

	res, err := svc.Drop(ctx, "")
	if err != nil || res.Outcome != board.OutcomeCancelled {
		t.Errorf("Expected a drop outside every column to cancel, got %s (%v)", res.Outcome, err)
	}
	if _, ok := svc.Gesture(); ok {
		t.Error("gesture must end on drop")
	}

	if err := svc.BeginDrag("t1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.CancelDrag(); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Drop(ctx, todoKey); !errors.Is(err, board.ErrDragNotActive) {
		t.Errorf("Expected ErrDragNotActive, got %v", err)
	}
}

func TestBoardService_HandleChangeRefetches(t *testing.T) {
	backend := newFakeBackend()
	svc, _ := newService(t, backend, application.Options{})

	backend.set(board.Record{ID: "t1", Title: "Ship release", ProjectID: "1", StatusID: "5", StatusName: "Todo"})
	if err := svc.HandleChange(events.NewRecordChangedEvent("t1", "test")); err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	if got := columnOf(t, svc, "t1"); got != todoKey {
		t.Errorf("Expected the pushed change to move t1 to Todo, got %s", got)
	}
}

func TestBoardService_SetGrouping(t *testing.T) {
	svc, _ := newService(t, newFakeBackend(), application.Options{})
	ctx := context.Background()

	if err := svc.SetGrouping(ctx, board.Field("priority")); !errors.Is(err, board.ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
	if err := svc.SetGrouping(ctx, board.FieldAssignee); err != nil {
		t.Fatalf("SetGrouping failed: %v", err)
	}
	if svc.State().Field != board.FieldAssignee {
		t.Errorf("Expected assignee grouping, got %s", svc.State().Field)
	}
	if got := columnOf(t, svc, "t2"); got != "u1" {
		t.Errorf("Expected t2 under u1, got %s", got)
	}
	if got := columnOf(t, svc, "t1"); got != board.UnassignedKey {
		t.Errorf("Expected t1 unassigned, got %s", got)
	}
}

func TestBoardService_Detail(t *testing.T) {
	svc, _ := newService(t, newFakeBackend(), application.Options{})

	r, err := svc.OpenDetail("t2")
	if err != nil || r.Title != "Write docs" {
		t.Errorf("unexpected detail %+v (%v)", r, err)
	}
	if _, err := svc.OpenDetail("missing"); !errors.Is(err, board.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
	svc.CloseDetail("t2")
	if len(svc.State().Details) != 0 {
		t.Error("Expected an empty detail cache")
	}
}

func TestBoardService_Closed(t *testing.T) {
	svc, _ := newService(t, newFakeBackend(), application.Options{})
	svc.Close()

	if _, err := svc.Move(context.Background(), "t2", doneKey); !errors.Is(err, application.ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
}

func TestBoardService_View(t *testing.T) {
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	defer close(backend.release)
	svc, _ := newService(t, backend, application.Options{})

	if _, err := svc.Move(context.Background(), "t3", board.UnassignedKey); err != nil {
		t.Fatal(err)
	}

	v := svc.View()
	labels := make([]string, 0, len(v.Columns))
	for _, c := range v.Columns {
		labels = append(labels, c.Label)
	}
	want := []string{"Unassigned", "Todo", "In Progress", "Done"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	col, ok := v.Column(board.UnassignedKey)
	if !ok || len(col.Cards) != 1 || !col.Cards[0].Pending || col.Cards[0].ID != "t3" {
		t.Errorf("Expected the pending card in Unassigned, got %+v", col)
	}
	if v.Pending != 1 {
		t.Errorf("Expected 1 pending move, got %d", v.Pending)
	}
}
