package idset

import (
	"reflect"
	"testing"
)

// ─── Insert / Contains ─────────────────────────────────────────────────────

func TestSet_InsertMonotonic(t *testing.T) {
	s := New()
	for _, id := range []uint32{1, 2, 3, 4} {
		s.Insert(id)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []uint32{1, 2, 3, 4}) {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestSet_InsertOutOfOrderAndDuplicate(t *testing.T) {
	s := New()
	for _, id := range []uint32{5, 1, 3, 1, 5} {
		s.Insert(id)
	}
	want := []uint32{1, 3, 5}
	if got := s.IDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSet_Contains(t *testing.T) {
	s := New()
	for _, id := range []uint32{2, 4, 6, 8} {
		s.Insert(id)
	}
	for _, id := range []uint32{2, 4, 6, 8} {
		if !s.Contains(id) {
			t.Errorf("expected set to contain %d", id)
		}
	}
	for _, id := range []uint32{0, 1, 3, 9} {
		if s.Contains(id) {
			t.Errorf("expected set not to contain %d", id)
		}
	}
}

// ─── Set algebra ───────────────────────────────────────────────────────────

func TestUnion(t *testing.T) {
	a := FromSlice([]uint32{1, 2, 3})
	b := FromSlice([]uint32{2, 3, 4})
	got := Union(a, b).IDs()
	want := []uint32{1, 2, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestIntersect(t *testing.T) {
	a := FromSlice([]uint32{1, 2, 3, 4})
	b := FromSlice([]uint32{2, 4, 6})
	got := Intersect(a, b).IDs()
	want := []uint32{2, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestIntersect_SecondListLonger(t *testing.T) {
	// Regression for the reference source's "i < list->num" transcription
	// bug (DESIGN.md open question 2): a shorter first list must not
	// truncate the scan of a longer second list.
	a := FromSlice([]uint32{10})
	b := FromSlice([]uint32{1, 2, 3, 10, 20, 30})
	got := Intersect(a, b).IDs()
	want := []uint32{10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDifference(t *testing.T) {
	a := FromSlice([]uint32{1, 2, 3, 4})
	b := FromSlice([]uint32{2, 4})
	got := Difference(a, b).IDs()
	want := []uint32{1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestClone_Independent(t *testing.T) {
	a := FromSlice([]uint32{1, 2, 3})
	b := a.Clone()
	b.Insert(4)
	if a.Len() != 3 {
		t.Fatalf("expected clone to be independent, original mutated: %v", a.IDs())
	}
	if b.Len() != 4 {
		t.Fatalf("expected clone to have the new id, got %v", b.IDs())
	}
}

// ─── Avail ──────────────────────────────────────────────────────────────────

func TestAvail_IsPositive(t *testing.T) {
	s := New()
	s.Insert(1)
	// SPEC_FULL.md §4.2: Avail must be cap-len, never its negation.
	if got := s.Avail(); got < 0 {
		t.Fatalf("expected non-negative avail, got %d", got)
	}
}
