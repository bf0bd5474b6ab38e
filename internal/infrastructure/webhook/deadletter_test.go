package webhook

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDeadLetterStore_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletters.jsonl")
	store := NewDeadLetterStore(path)

	dl := DeadLetter{
		Timestamp:   time.Now(),
		WebhookName: "test",
		URL:         "https://example.com/hook",
		EventType:   "move.failed",
		Payload:     `{"event_type":"move.failed"}`,
		Error:       "connection refused",
		Attempts:    3,
	}

	for i := 0; i < 2; i++ {
		if err := store.Append(dl); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].WebhookName != "test" {
		t.Errorf("expected webhook name test, got %s", entries[0].WebhookName)
	}
}

func TestDeadLetterStore_ReadAll_MissingFile(t *testing.T) {
	store := NewDeadLetterStore(filepath.Join(t.TempDir(), "nonexistent.jsonl"))

	entries, err := store.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for missing file, got %v", entries)
	}
}

func TestDeadLetterStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deadletters.jsonl")
	doc := `{"webhook_name":"a"}` + "\n{oops\n\n" + `{"webhook_name":"b","attempts":3}` + "\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	entries, err := NewDeadLetterStore(path).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].WebhookName != "a" || entries[1].WebhookName != "b" {
		t.Errorf("entries after a corrupt line must survive, got %+v", entries)
	}
	if entries[1].Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", entries[1].Attempts)
	}
}
