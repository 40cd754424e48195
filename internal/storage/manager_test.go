package storage

import (
	"context"
	"os"
	"testing"

	"ncollectd-mdb/internal/diskstore"
	"ncollectd-mdb/internal/mdberr"
)

func TestManager_NewEntryAssignsDenseHandles(t *testing.T) {
	m := NewManager(6)
	h0 := m.NewEntry(0)
	h1 := m.NewEntry(0)
	if h0 != 0 || h1 != 1 {
		t.Fatalf("expected dense handles 0,1, got %d,%d", h0, h1)
	}
	if m.Count() != 2 {
		t.Fatalf("expected Count()=2, got %d", m.Count())
	}
}

func TestManager_WriteFetchRange(t *testing.T) {
	m := NewManager(6)
	h := m.NewEntry(0)

	for i := 1; i <= 3; i++ {
		if _, err := m.Write(h, Timestamp(i*10), GaugeF64(float64(i))); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	p, ok, err := m.Fetch(h, 25)
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}
	if p.Time != 20 || p.Value != 2 {
		t.Fatalf("expected (20,2), got (%d,%v)", p.Time, p.Value)
	}

	points, err := m.Range(h, 0, 40, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
}

func TestManager_WriteReportsOverwrite(t *testing.T) {
	m := NewManager(2)
	h := m.NewEntry(0)

	overwrote, err := m.Write(h, 1, GaugeF64(1))
	if err != nil || overwrote {
		t.Fatalf("expected first write not to overwrite, got overwrote=%v err=%v", overwrote, err)
	}
	overwrote, err = m.Write(h, 2, GaugeF64(2))
	if err != nil || overwrote {
		t.Fatalf("expected second write not to overwrite, got overwrote=%v err=%v", overwrote, err)
	}
	overwrote, err = m.Write(h, 3, GaugeF64(3))
	if err != nil || !overwrote {
		t.Fatalf("expected third write to overwrite (capacity 2), got overwrote=%v err=%v", overwrote, err)
	}
}

func TestManager_UnknownHandle(t *testing.T) {
	m := NewManager(6)
	if _, _, err := m.Fetch(99, 0); err == nil {
		t.Fatal("expected an error for an unknown handle")
	}
	if _, err := m.Range(99, 0, 10, 0); err == nil {
		t.Fatal("expected an error for an unknown handle")
	}
	if _, err := m.Write(99, 0, GaugeF64(0)); err == nil {
		t.Fatal("expected an error for an unknown handle")
	}
}

func TestManager_NewDiskEntryUnsupported(t *testing.T) {
	m := NewManager(6)
	if _, err := m.NewDiskEntry(); err == nil {
		t.Fatal("expected NewDiskEntry to be unsupported")
	}
}

// TestManager_NewDiskEntryWiredStore dials a real disk backend and routes
// NewDiskEntry through it, requiring MDB_TEST_DISK_DSN (skipped otherwise,
// same as the teacher's DATABASE_URL-gated tests).
func TestManager_NewDiskEntryWiredStore(t *testing.T) {
	dsn := os.Getenv("MDB_TEST_DISK_DSN")
	if dsn == "" {
		t.Skip("MDB_TEST_DISK_DSN not set, skipping disk-backed integration test")
	}

	cfg := diskstore.DefaultConfig()
	cfg.DSN = dsn
	store, err := diskstore.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer store.Close()

	m := NewManager(6)
	m.SetDiskStore(store)
	if _, err := m.NewDiskEntry(); !mdberr.Is(err, mdberr.Unsupported) {
		t.Fatalf("expected Unsupported from the wired store's stub, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
