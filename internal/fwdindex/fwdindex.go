// Package fwdindex implements the forward index (FI): canonical series key
// to series metadata and storage handle (spec.md §4.5).
package fwdindex

import (
	"ncollectd-mdb/internal/htable"
	"ncollectd-mdb/internal/mdberr"
	"ncollectd-mdb/internal/series"
	"ncollectd-mdb/internal/storage"
)

const initialCapacity = 256

// SeriesMetadata is the value FI owns for every series: its dense id, its
// immutable name/label-set identity, and the storage handle that owns its
// samples.
type SeriesMetadata struct {
	ID      uint32
	Name    string
	Labels  series.LabelSet
	Storage storage.Handle

	key string // canonical key, cached for equality checks
}

// Index owns every series' metadata, keyed by canonical series key. It
// performs no locking of its own; the mdb facade's lock_index mutex guards
// access, held alongside lock_rindex and lock_storage during writes per
// the documented lock order.
type Index struct {
	table *htable.Table[*SeriesMetadata]
	byID  []*SeriesMetadata
}

// New creates an empty Index.
func New() *Index {
	return &Index{table: htable.New[*SeriesMetadata](initialCapacity)}
}

// Find looks up a series by (name, labels), returning its metadata if
// already present.
func (idx *Index) Find(name string, labels series.LabelSet) (*SeriesMetadata, bool) {
	key := string(series.CanonicalKey(name, labels))
	hash := htable.HashString(key)
	return idx.table.Find(hash, func(v *SeriesMetadata) bool { return v.key == key })
}

// Insert finds or creates the series (name, labels). On creation it
// allocates the next dense id, clones name and labels so FI owns them
// independently of the caller, and obtains a storage handle from
// newHandle for the declared interval. Returns the metadata and whether it
// was newly created.
func (idx *Index) Insert(name string, labels series.LabelSet, newHandle func() storage.Handle) (*SeriesMetadata, bool, error) {
	if name == "" {
		return nil, false, mdberr.New(mdberr.InvalidArgument, "fwdindex.Insert", nil)
	}
	canonical := labels.Sorted()
	key := string(series.CanonicalKey(name, canonical))
	hash := htable.HashString(key)

	if existing, ok := idx.table.Find(hash, func(v *SeriesMetadata) bool { return v.key == key }); ok {
		return existing, false, nil
	}

	ownedLabels := make(series.LabelSet, len(canonical))
	copy(ownedLabels, canonical)

	meta := &SeriesMetadata{
		ID:      uint32(len(idx.byID)),
		Name:    name,
		Labels:  ownedLabels,
		Storage: newHandle(),
		key:     key,
	}

	stored, inserted := idx.table.Insert(meta, hash, func(a, b *SeriesMetadata) bool { return a.key == b.key })
	if !inserted {
		// Raced against a concurrent insert under the same lock — only
		// reachable if a caller violates the lock_index contract.
		return stored, false, nil
	}
	idx.byID = append(idx.byID, meta)
	return meta, true, nil
}

// ByID resolves a series by its dense id.
func (idx *Index) ByID(id uint32) (*SeriesMetadata, error) {
	if int(id) >= len(idx.byID) {
		return nil, mdberr.New(mdberr.NotFound, "fwdindex.ByID", nil)
	}
	// InternalCorruption guard: id must equal its slot position, per the
	// spec's FI invariant. A mismatch here means a caller bypassed Insert.
	if idx.byID[id].ID != id {
		return nil, mdberr.New(mdberr.InternalCorruption, "fwdindex.ByID", nil)
	}
	return idx.byID[id], nil
}

// Count returns the number of series registered (the dense id range is
// 0..Count-1).
func (idx *Index) Count() int { return len(idx.byID) }

// ListSeries returns a snapshot of every (name, labels) pair, in id order.
func (idx *Index) ListSeries() []SeriesMetadata {
	out := make([]SeriesMetadata, len(idx.byID))
	for i, m := range idx.byID {
		labels := make(series.LabelSet, len(m.Labels))
		copy(labels, m.Labels)
		out[i] = SeriesMetadata{ID: m.ID, Name: m.Name, Labels: labels, Storage: m.Storage}
	}
	return out
}
