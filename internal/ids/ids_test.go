package ids

import (
	"testing"
	"time"
)

func TestNewAtIsSortable(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := NewAt(base)
	second := NewAt(base.Add(time.Second))
	if first >= second {
		t.Fatalf("expected %s < %s", first, second)
	}
	got, err := CreatedAt(first)
	if err != nil {
		t.Fatalf("CreatedAt: %v", err)
	}
	if !got.Equal(base) {
		t.Fatalf("unexpected timestamp: %v", got)
	}
}

func TestNewAtSameMillisecondStaysOrdered(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := NewAt(at)
	for i := 0; i < 50; i++ {
		next := NewAt(at)
		if next <= prev {
			t.Fatalf("expected monotonic ids within a millisecond: %s <= %s", next, prev)
		}
		prev = next
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := New()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestCreatedAtRejectsGarbage(t *testing.T) {
	if _, err := CreatedAt("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
