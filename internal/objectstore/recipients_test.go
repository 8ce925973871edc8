package objectstore

import (
	"context"
	"io"
	"strings"
	"testing"
)

type memStore struct {
	objects map[string]string
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestStreamRecipientsDedupesAndLowercases(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"list.csv": "Username,Email\nJane,Jane@Example.com\nBob,bob@example.com\nDup,JANE@example.com\n",
	}}

	emails, err := StreamRecipients(context.Background(), store, "list.csv")
	if err != nil {
		t.Fatalf("StreamRecipients: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 unique emails, got %v", emails)
	}
	if emails[0] != "jane@example.com" || emails[1] != "bob@example.com" {
		t.Errorf("unexpected emails: %v", emails)
	}
}

func TestStreamRecipientsMissingEmailColumn(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"bad.csv": "Name,Phone\nJane,555-1234\n",
	}}
	if _, err := StreamRecipients(context.Background(), store, "bad.csv"); err == nil {
		t.Error("expected error for missing email column")
	}
}

func TestStreamUnsubscribesMissingObjectIsEmptySet(t *testing.T) {
	store := &memStore{objects: map[string]string{}}
	set, err := StreamUnsubscribes(context.Background(), store, "unsub.csv")
	if err != nil {
		t.Fatalf("StreamUnsubscribes: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
}

func TestStreamUnsubscribesParsesValidTimestamps(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"unsub.csv": "alice@example.com,1700000000\nbob@example.com,99999999999\n",
	}}
	set, err := StreamUnsubscribes(context.Background(), store, "unsub.csv")
	if err != nil {
		t.Fatalf("StreamUnsubscribes: %v", err)
	}
	if _, ok := set["alice@example.com"]; !ok {
		t.Error("expected alice@example.com in set")
	}
	if _, ok := set["bob@example.com"]; !ok {
		t.Error("expected bob@example.com in set even with out-of-range timestamp (falls back to now)")
	}
}
