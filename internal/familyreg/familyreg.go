// Package familyreg implements the family registry (FR): a small facade
// over htable keyed by family name, owning each family's help/unit/type
// metadata (spec.md §4.4).
package familyreg

import (
	"github.com/go-playground/validator/v10"

	"ncollectd-mdb/internal/htable"
	"ncollectd-mdb/internal/mdberr"
	"ncollectd-mdb/internal/series"
)

// initialCapacity is the spec's process-wide default for the families
// table (the same value fwdindex's series table and the reverse index's
// name level use).
const initialCapacity = 256

// Registry owns every registered family's metadata. It performs no
// locking of its own; the mdb facade's lock_family mutex guards access.
type Registry struct {
	table    *htable.Table[*series.Family]
	validate *validator.Validate
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		table:    htable.New[*series.Family](initialCapacity),
		validate: validator.New(),
	}
}

// Getsert inserts fam if no family with that name is registered yet, and
// returns the stored record either way. Re-registration under the same
// name is a no-op even if the supplied metadata differs — see DESIGN.md
// open question 1 for why this (surprising) reference behavior is kept.
func (r *Registry) Getsert(fam series.Family) (*series.Family, error) {
	if err := r.validate.Struct(fam); err != nil {
		return nil, mdberr.New(mdberr.InvalidArgument, "familyreg.Getsert", err)
	}

	hash := htable.HashString(fam.Name)
	if existing, ok := r.table.Find(hash, func(v *series.Family) bool { return v.Name == fam.Name }); ok {
		return existing, nil
	}

	owned := &series.Family{Name: fam.Name, Help: fam.Help, Unit: fam.Unit, Type: fam.Type}
	stored, inserted := r.table.Insert(owned, hash, func(a, b *series.Family) bool { return a.Name == b.Name })
	if !inserted {
		// Lost a race against a concurrent insert under the same lock —
		// unreachable while callers honor lock_family, but handled for
		// safety rather than silently dropping fam.
		return stored, nil
	}
	return stored, nil
}

// Get returns the registered family by name, or mdberr.NotFound.
func (r *Registry) Get(name string) (*series.Family, error) {
	hash := htable.HashString(name)
	fam, ok := r.table.Find(hash, func(v *series.Family) bool { return v.Name == name })
	if !ok {
		return nil, mdberr.New(mdberr.NotFound, "familyreg.Get", nil)
	}
	return fam, nil
}

// GetList returns a snapshot of every registered family: owned copies,
// safe for the caller to read concurrently with further writes to the
// registry (the copies are made while lock_family is held by the facade).
func (r *Registry) GetList() []series.Family {
	values := r.table.Values()
	out := make([]series.Family, len(values))
	for i, fam := range values {
		out[i] = *fam
	}
	return out
}

// Len returns the number of registered families.
func (r *Registry) Len() int { return r.table.Len() }
