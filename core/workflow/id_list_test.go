package workflow

import (
	"slices"
	"testing"
)

func TestIDList(t *testing.T) {
	l := NewIDList()
	if l.Len() != 0 || l.First() != Sentinel || l.Last() != Sentinel {
		t.Fatal("Expected an empty list")
	}
	for _, id := range []uint64{1, 2, 3} {
		if !l.Add(id) {
			t.Fatalf("Expected Add(%d) to succeed", id)
		}
	}
	if l.Add(2) {
		t.Error("Expected duplicate Add to fail")
	}
	if l.Add(Sentinel) {
		t.Error("Expected Add(Sentinel) to fail")
	}
	if got := l.IDs(); !slices.Equal(got, []uint64{1, 2, 3}) {
		t.Errorf("Expected [1 2 3] but got %v", got)
	}

	t.Run("Remove with wrong predecessor", func(t *testing.T) {
		if l.Remove(Sentinel, 2) {
			t.Error("Expected Remove to fail")
		}
		if l.Len() != 3 {
			t.Errorf("Expected 3 ids but got %d", l.Len())
		}
	})

	t.Run("Remove middle", func(t *testing.T) {
		if !l.Remove(1, 2) {
			t.Fatal("Expected Remove to succeed")
		}
		if got := l.IDs(); !slices.Equal(got, []uint64{1, 3}) {
			t.Errorf("Expected [1 3] but got %v", got)
		}
		if prev, _ := l.Previous(3); prev != 1 {
			t.Errorf("Expected predecessor 1 but got %d", prev)
		}
	})

	t.Run("Remove head and tail", func(t *testing.T) {
		if !l.Remove(Sentinel, 1) || !l.Remove(Sentinel, 3) {
			t.Fatal("Expected Remove to succeed")
		}
		if l.Len() != 0 || l.Next(Sentinel) != Sentinel {
			t.Error("Expected an empty list")
		}
	})
}
