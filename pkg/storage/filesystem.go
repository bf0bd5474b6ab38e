package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

const SwimlaneDir = ".swimlane"
const RecordsFile = "records.json"
const MetadataFile = "metadata.yaml"
const ConfigFile = "config.yaml"
const EventsFile = "events.jsonl"
const DeadLettersFile = "deadletters.jsonl"

// FilesystemRepository keeps a board workspace in a .swimlane directory. It
// is the record source, metadata source and persistence gateway of the CLI.
type FilesystemRepository struct {
	root        string
	retryConfig retry.Config
	publisher   events.EventPublisher
	logger      *slog.Logger

	// writes serialises read-modify-write cycles on records.json.
	writes sync.Mutex
}

// Option configures a FilesystemRepository.
type Option func(*FilesystemRepository)

// WithPublisher sends a record.changed notification after every write.
func WithPublisher(p events.EventPublisher) Option {
	return func(r *FilesystemRepository) { r.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *FilesystemRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewFilesystemRepository(root string, opts ...Option) *FilesystemRepository {
	r := &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// Dir returns the .swimlane directory.
func (r *FilesystemRepository) Dir() string {
	return filepath.Join(r.root, SwimlaneDir)
}

// ResolvePath ensures the path is a direct child of the .swimlane directory.
func (r *FilesystemRepository) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := r.Dir()
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))
	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return cleanPath, nil
}

func (r *FilesystemRepository) Initialize() error {
	if err := os.MkdirAll(r.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", SwimlaneDir, err)
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(r.Dir())
	return err == nil
}

// LoadRecords reads records.json. A missing file is an empty board.
func (r *FilesystemRepository) LoadRecords(ctx context.Context) ([]board.Record, error) {
	retryer := retry.New[[]board.Record](r.retryConfig)

	return retryer.Do(ctx, func(ctx context.Context) ([]board.Record, error) {
		path, err := r.ResolvePath(RecordsFile)
		if err != nil {
			return nil, err
		}

		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read records file: %w", err)
		}

		records, issues, err := decodeRecords(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		for _, issue := range issues {
			r.logger.Warn("record sanitized", "record_id", issue.RecordID, "field", issue.Field, "reason", issue.Reason)
		}
		return records, nil
	})
}

// SaveRecords replaces records.json.
func (r *FilesystemRepository) SaveRecords(records []board.Record) error {
	path, err := r.ResolvePath(RecordsFile)
	if err != nil {
		return err
	}
	if records == nil {
		records = []board.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return writeAtomic(path, data)
}

// CreateRecord appends a record with a fresh id and returns it.
func (r *FilesystemRepository) CreateRecord(ctx context.Context, rec board.Record) (board.Record, error) {
	r.writes.Lock()
	defer r.writes.Unlock()

	records, err := r.LoadRecords(ctx)
	if err != nil {
		return board.Record{}, err
	}
	meta, err := r.LoadMetadata(ctx)
	if err != nil {
		return board.Record{}, err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	for _, existing := range records {
		if existing.ID == rec.ID {
			return board.Record{}, fmt.Errorf("record %s already exists", rec.ID)
		}
	}
	rec = denormalize(rec, board.NewMetadataStore(meta))
	if err := r.SaveRecords(append(records, rec)); err != nil {
		return board.Record{}, err
	}
	r.notify(events.NewRecordChangedEvent(rec.ID, "create"))
	return rec, nil
}

// LoadMetadata reads metadata.yaml. A missing file is an empty bundle.
func (r *FilesystemRepository) LoadMetadata(ctx context.Context) (board.MetadataBundle, error) {
	retryer := retry.New[board.MetadataBundle](r.retryConfig)

	return retryer.Do(ctx, func(ctx context.Context) (board.MetadataBundle, error) {
		path, err := r.ResolvePath(MetadataFile)
		if err != nil {
			return board.MetadataBundle{}, err
		}

		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return board.MetadataBundle{}, nil
		}
		if err != nil {
			return board.MetadataBundle{}, fmt.Errorf("failed to read metadata file: %w", err)
		}

		var b board.MetadataBundle
		if err := yaml.Unmarshal(data, &b); err != nil {
			return board.MetadataBundle{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		return b, nil
	})
}

func (r *FilesystemRepository) SaveMetadata(b board.MetadataBundle) error {
	path, err := r.ResolvePath(MetadataFile)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return writeAtomic(path, data)
}

// FetchRecords serves a board query: records matching the search and
// filters, grouped by the raw backing value of the query field, at most
// PageSize records per group.
func (r *FilesystemRepository) FetchRecords(ctx context.Context, q board.Query) (*board.Batch, error) {
	records, err := r.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := r.LoadMetadata(ctx)
	if err != nil {
		return nil, err
	}

	batch := &board.Batch{RecordsByGroup: make(map[string][]board.Record), Metadata: meta}
	for _, rec := range records {
		if !matchesSearch(rec, q.Search) || !matchesFilters(rec, q.Filters) {
			continue
		}
		key := rec.Value(q.Field)
		if q.Field.Class() == board.ClassTemporal {
			if t, ok := board.ParseDate(key); ok {
				key = board.MonthKey(t)
			} else {
				key = ""
			}
		}
		if key == "" {
			key = board.UnassignedKey
		}
		if q.PageSize > 0 && len(batch.RecordsByGroup[key]) >= q.PageSize {
			continue
		}
		batch.RecordsByGroup[key] = append(batch.RecordsByGroup[key], rec)
	}
	return batch, nil
}

// FetchMetadata implements board.MetadataSource.
func (r *FilesystemRepository) FetchMetadata(ctx context.Context) (board.MetadataBundle, error) {
	return r.LoadMetadata(ctx)
}

// UpdateField writes one backing field. Display copies are re-derived from
// metadata here, so whatever the client sent, the stored record stays
// consistent with its identifiers.
func (r *FilesystemRepository) UpdateField(ctx context.Context, recordID string, u board.FieldUpdate) error {
	f, ok := board.FieldForBacking(u.Field)
	if !ok {
		return fmt.Errorf("%w: %q", board.ErrUnknownField, u.Field)
	}

	r.writes.Lock()
	defer r.writes.Unlock()

	records, err := r.LoadRecords(ctx)
	if err != nil {
		return err
	}
	meta, err := r.LoadMetadata(ctx)
	if err != nil {
		return err
	}
	store := board.NewMetadataStore(meta)

	idx := -1
	for i, rec := range records {
		if rec.ID == recordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", board.ErrRecordNotFound, recordID)
	}

	records[idx] = records[idx].Apply(board.NewPatch(store, f, strings.TrimSpace(u.Value)))
	if err := r.SaveRecords(records); err != nil {
		return err
	}

	r.logger.Debug("record updated", "record_id", recordID, "field", u.Field)
	r.notify(events.NewRecordChangedEvent(recordID, "gateway"))
	return nil
}

func (r *FilesystemRepository) notify(e *events.BaseEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(e); err != nil {
		r.logger.Warn("failed to publish change", "event_type", e.Type, "error", err)
	}
}

// denormalize fills display copies of every identifier from metadata.
func denormalize(rec board.Record, meta *board.MetadataStore) board.Record {
	for _, f := range []board.Field{board.FieldStatus, board.FieldAssignee, board.FieldProject} {
		if v := rec.Value(f); v != "" {
			if d := board.DisplayFor(meta, f, v); d.Name != "" {
				rec = rec.Apply(board.Patch{Field: f, Value: v, Display: d})
			}
		}
	}
	return rec
}

func matchesSearch(rec board.Record, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Title), search) ||
		strings.Contains(strings.ToLower(rec.Description), search)
}

func matchesFilters(rec board.Record, filters map[string][]string) bool {
	for backing, allowed := range filters {
		if len(allowed) == 0 {
			continue
		}
		f, ok := board.FieldForBacking(backing)
		if !ok {
			if parsed, err := board.ParseField(backing); err == nil {
				f = parsed
			} else {
				continue
			}
		}
		v := rec.Value(f)
		match := false
		for _, a := range allowed {
			if strings.TrimSpace(a) == v {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// writeAtomic writes through a temp file so watchers never see a torn file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
