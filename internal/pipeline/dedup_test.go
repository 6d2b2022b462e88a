package pipeline

import (
	"strconv"
	"testing"
)

func TestDedupSeen(t *testing.T) {
	dedup := NewDedup(0)
	if dedup.Seen("ch-1", "m-1") {
		t.Fatal("first observation reported as seen")
	}
	if !dedup.Seen("ch-1", "m-1") {
		t.Fatal("redelivery not reported as seen")
	}
	if dedup.Seen("ch-2", "m-1") {
		t.Fatal("ids must be scoped per channel")
	}
}

func TestDedupBlankIDNeverDeduped(t *testing.T) {
	dedup := NewDedup(0)
	for i := 0; i < 3; i++ {
		if dedup.Seen("ch-1", "  ") {
			t.Fatal("blank id must never be deduplicated")
		}
	}
}

func TestDedupForget(t *testing.T) {
	dedup := NewDedup(0)
	dedup.Seen("ch-1", "m-1")
	dedup.Forget("ch-1", "m-1")
	if dedup.Seen("ch-1", "m-1") {
		t.Fatal("forgotten id must be processed again")
	}
	// Forgetting an unknown id is a no-op.
	dedup.Forget("ch-1", "m-unknown")
	dedup.Forget("ch-2", "m-1")
	if !dedup.Seen("ch-1", "m-1") {
		t.Fatal("re-recorded id lost")
	}
}

func TestDedupEvictsOldest(t *testing.T) {
	dedup := NewDedup(3)
	for i := 0; i < 4; i++ {
		dedup.Seen("ch-1", "m-"+strconv.Itoa(i))
	}
	if dedup.Seen("ch-1", "m-0") {
		t.Fatal("oldest id should have been evicted")
	}
	if !dedup.Seen("ch-1", "m-3") {
		t.Fatal("newest id should still be remembered")
	}
}
