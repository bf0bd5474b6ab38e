package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// FileEventStore is the move audit log: one JSON event per line, each
// chained to its predecessor by hash.
type FileEventStore struct {
	mu       sync.RWMutex
	path     string
	basePath string
	lastHash string
}

// NewFileEventStore opens the log in basePath. The directory is created on
// first write.
func NewFileEventStore(basePath string) (*FileEventStore, error) {
	s := &FileEventStore{path: filepath.Join(basePath, EventsFile), basePath: basePath}

	evts, err := s.loadEvents()
	if err != nil {
		return nil, err
	}
	if n := len(evts); n > 0 {
		s.lastHash = evts[n-1].Hash
	}
	return s, nil
}

// Append assigns an id and timestamp when missing, chains the event and
// writes it.
func (s *FileEventStore) Append(event *events.BaseEvent) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(s.basePath, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	event.PrevHash = s.lastHash
	event.Hash = event.CalculateHash()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close events file: %w", cerr)
		}
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.lastHash = event.Hash
	return nil
}

// LoadAll returns all events in append order.
func (s *FileEventStore) LoadAll() ([]*events.BaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEvents()
}

// LoadByAggregate returns the events of one aggregate.
func (s *FileEventStore) LoadByAggregate(aggregateType, aggregateID string) ([]*events.BaseEvent, error) {
	return s.filter(func(e *events.BaseEvent) bool {
		return e.AggregateType_ == aggregateType && e.AggregateID_ == aggregateID
	})
}

// LoadByType returns events of one type.
func (s *FileEventStore) LoadByType(eventType string) ([]*events.BaseEvent, error) {
	return s.filter(func(e *events.BaseEvent) bool { return e.Type == eventType })
}

// Count returns the number of events.
func (s *FileEventStore) Count() (int, error) {
	all, err := s.LoadAll()
	return len(all), err
}

// VerifyIntegrity walks the hash chain and reports every broken link.
func (s *FileEventStore) VerifyIntegrity() ([]string, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	var violations []string
	prev := ""
	for i, e := range all {
		if e.PrevHash != prev {
			violations = append(violations, fmt.Sprintf("event %d (%s): prev_hash mismatch", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("event %d (%s): hash mismatch", i, e.ID))
		}
		prev = e.Hash
	}
	return violations, nil
}

func (s *FileEventStore) filter(keep func(*events.BaseEvent) bool) ([]*events.BaseEvent, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []*events.BaseEvent
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *FileEventStore) loadEvents() ([]*events.BaseEvent, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var out []*events.BaseEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e events.BaseEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

// InMemoryEventPublisher fans events out to in-process subscribers.
type InMemoryEventPublisher struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]events.EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventPublisher creates a publisher with no subscribers.
func NewInMemoryEventPublisher(logger *slog.Logger) *InMemoryEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventPublisher{handlers: make(map[int]events.EventHandler), logger: logger}
}

// Publish calls every subscriber in subscription order. A failing subscriber
// is logged and skipped.
func (p *InMemoryEventPublisher) Publish(event *events.BaseEvent) error {
	p.mu.RLock()
	ids := make([]int, 0, len(p.handlers))
	for id := range p.handlers {
		ids = append(ids, id)
	}
	handlers := make(map[int]events.EventHandler, len(p.handlers))
	for id, h := range p.handlers {
		handlers[id] = h
	}
	p.mu.RUnlock()

	sort.Ints(ids)
	for _, id := range ids {
		if err := handlers[id](event); err != nil {
			p.logger.Warn("subscriber failed", "event_type", event.Type, "error", err)
		}
	}
	return nil
}

// Subscribe registers a handler and returns its removal function.
func (p *InMemoryEventPublisher) Subscribe(handler events.EventHandler) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.handlers[id] = handler
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers, id)
	}
}
