package mdb

import "ncollectd-mdb/internal/storage"

// Options configures a DB instance, grounded on the teacher's
// Config/DefaultConfig/Validate shape (a struct of tunables, zero-value
// defaulting, a single Validate error).
type Options struct {
	// RingCapacity is the process-wide ring buffer capacity used for
	// every new series. Zero or negative falls back to
	// storage.DefaultCapacity.
	RingCapacity int

	// DiskDSN, if non-empty, wires the disk Backend enum variant: New
	// dials it via internal/diskstore during startup. Left empty (the
	// default), the disk backend stays unconnected and
	// storage.Manager.NewDiskEntry fails immediately.
	DiskDSN string
}

// DefaultOptions returns an Options with the spec's documented default
// ring capacity.
func DefaultOptions() Options {
	return Options{RingCapacity: storage.DefaultCapacity}
}

// Validate normalizes zero-value fields to their defaults. It never
// rejects an Options value outright: every field has a safe default.
func (o *Options) Validate() error {
	if o.RingCapacity <= 0 {
		o.RingCapacity = storage.DefaultCapacity
	}
	return nil
}
