package storage

import (
	"context"

	"ncollectd-mdb/internal/diskstore"
	"ncollectd-mdb/internal/mdberr"
)

// Handle identifies a series' storage entry. It is a dense index assigned
// by the forward index at series-creation time — the same value as the
// series id — never a pointer, per the spec's value-only cross-subsystem
// reference rule.
type Handle uint32

// Manager owns every series' ring buffer. It performs no locking of its
// own: the mdb facade serializes access through its lock_storage mutex, the
// innermost lock in the documented lock order.
type Manager struct {
	defaultCapacity int
	entries         []*Entry
	disk            *diskstore.Store
}

// NewManager creates a Manager whose entries use ringCapacity slots unless
// ringCapacity <= 0, in which case DefaultCapacity is used.
func NewManager(ringCapacity int) *Manager {
	if ringCapacity <= 0 {
		ringCapacity = DefaultCapacity
	}
	return &Manager{defaultCapacity: ringCapacity}
}

// SetDiskStore wires a connected disk backend into the manager for the
// disk Backend enum variant. A nil store (the default) leaves NewDiskEntry
// returning Unsupported without ever touching diskstore.
func (m *Manager) SetDiskStore(s *diskstore.Store) {
	m.disk = s
}

// Close releases the disk backend's connection pool, if one is wired.
func (m *Manager) Close() error {
	if m.disk == nil {
		return nil
	}
	return m.disk.Close()
}

// NewEntry allocates a fresh memory-backed ring for one series and returns
// its Handle. Handles are assigned densely, 0..n-1, matching forward-index
// series ids one-to-one.
func (m *Manager) NewEntry(interval Timestamp) Handle {
	e := NewEntry(m.defaultCapacity, interval)
	m.entries = append(m.entries, e)
	return Handle(len(m.entries) - 1)
}

// NewDiskEntry is declared for the disk Backend enum variant named in the
// data model. Without a wired disk store it fails immediately; with one
// wired (via SetDiskStore) it delegates to the store's WriteSample, which
// is itself a stub — per spec, the disk backend is not implemented, so
// this always returns Unsupported, but it now does so by actually
// round-tripping through internal/diskstore rather than manufacturing
// the error locally.
func (m *Manager) NewDiskEntry() (Handle, error) {
	if m.disk == nil {
		return 0, mdberr.New(mdberr.Unsupported, "storage.NewDiskEntry", nil)
	}
	if err := m.disk.WriteSample(context.Background(), "", 0, 0); err != nil {
		return 0, err
	}
	return 0, nil
}

func (m *Manager) entry(h Handle) (*Entry, error) {
	if int(h) >= len(m.entries) {
		return nil, mdberr.New(mdberr.NotFound, "storage.entry", nil)
	}
	return m.entries[h], nil
}

// Write appends a sample to the series identified by h. overwrote reports
// whether the write evicted an existing (oldest) sample.
func (m *Manager) Write(h Handle, t Timestamp, v Value) (overwrote bool, err error) {
	e, err := m.entry(h)
	if err != nil {
		return false, err
	}
	return e.Write(t, v), nil
}

// Fetch returns the last sample with time <= t for the series at h.
func (m *Manager) Fetch(h Handle, t Timestamp) (Point, bool, error) {
	e, err := m.entry(h)
	if err != nil {
		return Point{}, false, err
	}
	p, ok := e.Fetch(t)
	return p, ok, nil
}

// Range returns the downsampled [start, end) samples for the series at h.
func (m *Manager) Range(h Handle, start, end, step Timestamp) ([]Point, error) {
	e, err := m.entry(h)
	if err != nil {
		return nil, err
	}
	return e.Range(start, end, step), nil
}

// Count returns the number of series currently tracked.
func (m *Manager) Count() int { return len(m.entries) }
