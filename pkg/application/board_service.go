package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// ErrServiceClosed is returned by operations on a closed BoardService.
var ErrServiceClosed = errors.New("board service closed")

// Options tunes a BoardService.
type Options struct {
	// Query is the initial record query. Its Field is ignored; the store's
	// grouping field always wins.
	Query board.Query

	// GatewayTimeout bounds each persistence call. Zero means 5s.
	GatewayTimeout time.Duration

	// ReconcileTimeout is how long a persisted move may stay unconfirmed
	// before the board refetches once and then gives up on it. Zero disables
	// the backstop.
	ReconcileTimeout time.Duration

	// Actor is recorded on move events.
	Actor string

	Logger *slog.Logger

	// OnFailure is called after a rejected move has been rolled back.
	OnFailure func(board.PendingMove, error)
}

type backstop struct {
	seq   int
	timer *time.Timer
}

// BoardService drives the board: synchronous gestures in front, the
// asynchronous persist/refetch/reconcile pipeline behind.
type BoardService struct {
	store      *Store
	records    board.RecordSource
	metadata   board.MetadataSource
	gateway    board.PersistenceGateway
	dispatcher *events.EventDispatcher
	logger     *slog.Logger
	opts       Options
	retry      retry.Config

	dragMu sync.Mutex
	drag   *board.DragController

	// fetchMu keeps batches from being applied out of order.
	fetchMu sync.Mutex

	mu         sync.Mutex
	query      board.Query
	timers     map[string]backstop
	closed     bool
	refreshing bool
	needMeta   bool
	needFetch  bool

	wg sync.WaitGroup
}

// NewBoardService wires the pipeline. dispatcher may be nil.
func NewBoardService(store *Store, records board.RecordSource, metadata board.MetadataSource, gateway board.PersistenceGateway, dispatcher *events.EventDispatcher, opts Options) (*BoardService, error) {
	drag, err := board.NewDragController()
	if err != nil {
		return nil, fmt.Errorf("drag controller: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 5 * time.Second
	}
	return &BoardService{
		store:      store,
		records:    records,
		metadata:   metadata,
		gateway:    gateway,
		dispatcher: dispatcher,
		logger:     opts.Logger,
		opts:       opts,
		retry: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		drag:   drag,
		query:  opts.Query,
		timers: make(map[string]backstop),
	}, nil
}

// State returns the current board snapshot.
func (s *BoardService) State() board.State {
	return s.store.State()
}

// View returns the board as it should be rendered.
func (s *BoardService) View() BoardView {
	return NewBoardView(s.store.State())
}

// Store returns the state container.
func (s *BoardService) Store() *Store {
	return s.store
}

// Load fetches metadata, then records.
func (s *BoardService) Load(ctx context.Context) error {
	if err := s.RefreshMetadata(ctx); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh fetches an authoritative batch and reconciles it. Pending moves the
// batch confirms settle; the rest keep their overlay.
func (s *BoardService) Refresh(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	q := s.currentQuery()
	batch, err := retry.New[*board.Batch](s.retry).Do(ctx, func(ctx context.Context) (*board.Batch, error) {
		return s.records.FetchRecords(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}

	if batch != nil && hasMetadata(batch.Metadata) {
		meta := board.NewMetadataStore(batch.Metadata)
		if !meta.Equal(s.store.State().Meta) {
			s.store.Dispatch(board.MetadataLoaded{Meta: meta})
		}
	}

	before, after := s.store.Update(board.RecordsLoaded{Records: batch.Flatten()})
	for _, p := range board.Settled(before, after) {
		s.disarm(p.RecordID, p.Seq)
		s.logger.Debug("move settled", "record_id", p.RecordID, "field", string(p.Patch.Field), "column", p.TargetKey)
		s.emit(ctx, events.NewMoveEvent(events.EventTypeMoveSettled, p, s.opts.Actor))
	}
	s.prune(after)
	s.emit(ctx, events.NewBoardRefreshedEvent(after.Field, len(after.Records), len(after.Pending)))
	return nil
}

// RefreshMetadata fetches the metadata snapshot and regroups.
func (s *BoardService) RefreshMetadata(ctx context.Context) error {
	if s.metadata == nil {
		return nil
	}
	bundle, err := retry.New[board.MetadataBundle](s.retry).Do(ctx, func(ctx context.Context) (board.MetadataBundle, error) {
		return s.metadata.FetchMetadata(ctx)
	})
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	s.store.Dispatch(board.MetadataLoaded{Meta: board.NewMetadataStore(bundle)})
	return nil
}

// SetGrouping switches the grouping field and refetches for it.
func (s *BoardService) SetGrouping(ctx context.Context, f board.Field) error {
	if !f.IsValid() {
		return fmt.Errorf("%w: %q", board.ErrUnknownField, f)
	}
	s.store.Dispatch(board.GroupingChanged{Field: f})
	return s.Refresh(ctx)
}

// SetQuery replaces search and filters and refetches.
func (s *BoardService) SetQuery(ctx context.Context, search string, filters map[string][]string) error {
	s.mu.Lock()
	s.query.Search = search
	s.query.Filters = filters
	s.mu.Unlock()
	return s.Refresh(ctx)
}

func (s *BoardService) currentQuery() board.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.query
	q.Field = s.store.State().Field
	return q
}

// BeginDrag picks a record up.
func (s *BoardService) BeginDrag(recordID string) error {
	s.dragMu.Lock()
	defer s.dragMu.Unlock()
	return s.drag.Start(s.store.State(), recordID)
}

// Hover records the column under the dragged card.
func (s *BoardService) Hover(columnKey string) error {
	s.dragMu.Lock()
	defer s.dragMu.Unlock()
	return s.drag.Hover(columnKey)
}

// CancelDrag aborts the gesture without touching board state.
func (s *BoardService) CancelDrag() error {
	s.dragMu.Lock()
	defer s.dragMu.Unlock()
	return s.drag.Cancel()
}

// Gesture returns the drag in progress, if any.
func (s *BoardService) Gesture() (board.Gesture, bool) {
	s.dragMu.Lock()
	defer s.dragMu.Unlock()
	return s.drag.Gesture()
}

// Drop ends the gesture on columnKey. An empty key drops outside every
// column. A valid move is applied at once and persisted in the background.
func (s *BoardService) Drop(ctx context.Context, columnKey string) (board.DropResult, error) {
	if s.isClosed() {
		return board.DropResult{}, ErrServiceClosed
	}
	s.dragMu.Lock()
	res, err := s.drag.Drop(s.store.State(), columnKey)
	s.dragMu.Unlock()
	if err != nil {
		return res, err
	}
	s.finish(ctx, res)
	return res, nil
}

// Move runs a complete gesture for callers without a pointer: the record is
// picked up and dropped on the column whose key or label matches target.
func (s *BoardService) Move(ctx context.Context, recordID, target string) (board.DropResult, error) {
	if s.isClosed() {
		return board.DropResult{}, ErrServiceClosed
	}

	s.dragMu.Lock()
	state := s.store.State()
	key := target
	if col, ok := state.View().FindColumn(target); ok {
		key = col.Key
	}
	if err := s.drag.Start(state, recordID); err != nil {
		s.dragMu.Unlock()
		return board.DropResult{}, err
	}
	res, err := s.drag.Drop(state, key)
	s.dragMu.Unlock()
	if err != nil {
		return res, err
	}
	s.finish(ctx, res)
	return res, nil
}

func (s *BoardService) finish(ctx context.Context, res board.DropResult) {
	switch res.Outcome {
	case board.OutcomeApplied:
		s.commit(ctx, res.Move)
	case board.OutcomeInvalid:
		s.logger.Info("drop rejected", "record_id", res.Move.RecordID, "error", res.Err)
	}
}

// commit applies the move optimistically and hands it to the gateway.
func (s *BoardService) commit(ctx context.Context, m board.Move) {
	_, after := s.store.Update(board.MoveApplied{Move: m})
	p, ok := after.Pending[m.RecordID]
	if !ok {
		return
	}
	s.logger.Debug("move applied", "record_id", p.RecordID, "field", string(p.Patch.Field), "column", p.TargetKey)
	s.emit(ctx, events.NewMoveEvent(events.EventTypeMoveApplied, p, s.opts.Actor))

	s.wg.Add(1)
	go s.persist(context.WithoutCancel(ctx), p)
}

// persist writes the backing field only. Failure rolls back at once and is
// not retried; success arms the backstop and refetches.
func (s *BoardService) persist(ctx context.Context, p board.PendingMove) {
	defer s.wg.Done()

	t := timeout.New[struct{}](timeout.Config{DefaultTimeout: s.opts.GatewayTimeout})
	_, err := t.Execute(ctx, s.opts.GatewayTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.gateway.UpdateField(ctx, p.RecordID, p.Patch.Update())
	})
	if err != nil {
		perr := &board.PersistenceError{RecordID: p.RecordID, Field: p.Patch.Field.BackingField(), Err: err}
		s.store.Dispatch(board.MoveFailed{RecordID: p.RecordID, Seq: p.Seq})
		s.logger.Error("move rejected by gateway", "record_id", p.RecordID, "field", string(p.Patch.Field), "error", err)
		s.emit(ctx, events.NewMoveFailedEvent(p, s.opts.Actor, perr))
		if s.opts.OnFailure != nil {
			s.opts.OnFailure(p, perr)
		}
		return
	}

	s.arm(p)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refetch after move failed", "record_id", p.RecordID, "error", err)
	}
}

func (s *BoardService) arm(p board.PendingMove) {
	if s.opts.ReconcileTimeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// A newer move of the record owns the backstop.
	if cur, ok := s.store.State().Pending[p.RecordID]; !ok || cur.Seq != p.Seq {
		return
	}
	if old, ok := s.timers[p.RecordID]; ok {
		old.timer.Stop()
	}
	s.timers[p.RecordID] = backstop{
		seq:   p.Seq,
		timer: time.AfterFunc(s.opts.ReconcileTimeout, func() { s.expire(p) }),
	}
}

func (s *BoardService) disarm(recordID string, seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.timers[recordID]; ok && b.seq == seq {
		b.timer.Stop()
		delete(s.timers, recordID)
	}
}

// prune stops backstops whose move is no longer the pending one, such as
// moves of records that vanished from the data.
func (s *BoardService) prune(state board.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.timers {
		if cur, ok := state.Pending[id]; !ok || cur.Seq != b.seq {
			b.timer.Stop()
			delete(s.timers, id)
		}
	}
}

// expire is the reconciliation backstop: one last refetch, then the
// authoritative data wins.
func (s *BoardService) expire(p board.PendingMove) {
	s.mu.Lock()
	b, ok := s.timers[p.RecordID]
	if s.closed || !ok || b.seq != p.Seq {
		s.mu.Unlock()
		return
	}
	delete(s.timers, p.RecordID)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("backstop refetch failed", "record_id", p.RecordID, "error", err)
	}
	if cur, ok := s.store.State().Pending[p.RecordID]; !ok || cur.Seq != p.Seq {
		return
	}

	s.store.Dispatch(board.MoveAbandoned{RecordID: p.RecordID, Seq: p.Seq})
	s.logger.Warn("move abandoned", "record_id", p.RecordID, "field", string(p.Patch.Field), "column", p.TargetKey, "error", board.ErrReconcileStalled)
	s.emit(ctx, events.NewMoveEvent(events.EventTypeMoveStalled, p, s.opts.Actor))
}

// HandleChange reacts to push notifications by refetching. Notifications are
// coalesced: a burst triggers at most one fetch after the one in flight.
func (s *BoardService) HandleChange(e *events.BaseEvent) error {
	switch e.Type {
	case events.EventTypeRecordChanged:
		s.requestRefresh(false)
	case events.EventTypeMetadataChanged:
		s.requestRefresh(true)
	}
	return nil
}

func (s *BoardService) requestRefresh(metadata bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.needFetch = true
	s.needMeta = s.needMeta || metadata
	if s.refreshing {
		return
	}
	s.refreshing = true
	s.wg.Add(1)
	go s.refreshLoop()
}

func (s *BoardService) refreshLoop() {
	defer s.wg.Done()
	ctx := context.Background()
	for {
		s.mu.Lock()
		if !s.needFetch || s.closed {
			s.refreshing = false
			s.mu.Unlock()
			return
		}
		meta := s.needMeta
		s.needFetch, s.needMeta = false, false
		s.mu.Unlock()

		if meta {
			if err := s.RefreshMetadata(ctx); err != nil {
				s.logger.Warn("metadata refresh failed", "error", err)
			}
		}
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn("push refetch failed", "error", err)
		}
	}
}

// OpenDetail caches a record for a detail view and returns it as rendered.
func (s *BoardService) OpenDetail(recordID string) (board.Record, error) {
	state := s.store.Dispatch(board.DetailOpened{RecordID: recordID})
	r, ok := state.Details[recordID]
	if !ok {
		return board.Record{}, fmt.Errorf("%w: %s", board.ErrRecordNotFound, recordID)
	}
	return r, nil
}

// CloseDetail evicts a record from the detail cache.
func (s *BoardService) CloseDetail(recordID string) {
	s.store.Dispatch(board.DetailClosed{RecordID: recordID})
}

// Wait blocks until in-flight persistence calls and push refetches finish.
func (s *BoardService) Wait() {
	s.wg.Wait()
}

// Close stops the backstop timers and waits for in-flight work.
func (s *BoardService) Close() {
	s.mu.Lock()
	s.closed = true
	for id, b := range s.timers {
		b.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *BoardService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *BoardService) emit(ctx context.Context, e *events.BaseEvent) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, e); err != nil {
		s.logger.Warn("event handler failed", "event_type", e.Type, "error", err)
	}
}

func hasMetadata(b board.MetadataBundle) bool {
	return len(b.Statuses)+len(b.Users)+len(b.Projects) > 0
}
