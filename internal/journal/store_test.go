package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T, collection string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path, collection)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func TestAppendAndEntries(t *testing.T) {
	s, _ := openTemp(t, "")
	defer s.Close()
	ctx := context.Background()

	if got, err := s.Entries(ctx); err != nil || len(got) != 0 {
		t.Fatalf("Entries() on empty = %v, %v", got, err)
	}

	first := time.Date(2025, 3, 14, 8, 0, 0, 123456789, time.UTC)
	if err := s.Append(ctx, Entry{Text: "journal this: first", Timestamp: first}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, Entry{Text: "journal this: second"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(got))
	}
	if got[0].Text != "journal this: first" || !got[0].Timestamp.Equal(first) {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Text != "journal this: second" || got[1].Timestamp.IsZero() {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestFailedWriteKeepsEarlierEntries(t *testing.T) {
	s, path := openTemp(t, "")
	ctx := context.Background()

	if err := s.Append(ctx, Entry{Text: "kept"}); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Append(cancelled, Entry{Text: "lost"}); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Append(cancelled) error = %v, want ErrWriteFailed", err)
	}
	s.Close()

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "kept" {
		t.Errorf("Entries() = %+v, want only the kept entry", got)
	}
}

func TestCollectionsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	a, err := Open(path, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Open(path, "b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	a.Append(ctx, Entry{Text: "in a"})
	b.Append(ctx, Entry{Text: "in b"})

	got, err := a.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "in a" {
		t.Errorf("collection a = %+v", got)
	}
}
