// Package mdb is the embedded metric database core: a concurrent,
// in-memory time-series store with a label-aware query engine. It owns
// four independently-locked subsystems (family registry, forward index,
// reverse index, storage) behind a single facade, per spec.md §4.7.
package mdb

import (
	"context"
	"sync"
	"time"

	"ncollectd-mdb/internal/clock"
	"ncollectd-mdb/internal/diskstore"
	"ncollectd-mdb/internal/familyreg"
	"ncollectd-mdb/internal/fwdindex"
	"ncollectd-mdb/internal/mdberr"
	"ncollectd-mdb/internal/match"
	"ncollectd-mdb/internal/obs"
	"ncollectd-mdb/internal/rindex"
	"ncollectd-mdb/internal/series"
	"ncollectd-mdb/internal/storage"
)

// DB is the MDB facade. It owns the four subsystems and their four
// independent mutexes; callers never touch a subsystem directly. Lock
// order for any path that takes more than one mutex: family, index,
// rindex, storage. Readers take only the lock(s) for the subsystem they
// consult and copy out a snapshot before releasing.
type DB struct {
	famMu sync.Mutex
	idxMu sync.Mutex
	rdxMu sync.Mutex
	stoMu sync.Mutex

	fam *familyreg.Registry
	idx *fwdindex.Index
	rdx *rindex.Index
	sto *storage.Manager

	opts    Options
	metrics *obs.Registry
	dbm     *obs.DBMetrics
}

// New allocates a DB: the four subsystems and their self-observability
// registry. When opts.DiskDSN is set, it also dials the disk backend via
// internal/diskstore and wires the resulting store into storage.Manager.
func New(opts Options) (*DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sto := storage.NewManager(opts.RingCapacity)
	if opts.DiskDSN != "" {
		cfg := diskstore.DefaultConfig()
		cfg.DSN = opts.DiskDSN
		store, err := diskstore.Connect(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		sto.SetDiskStore(store)
	}

	reg := obs.NewRegistry()
	return &DB{
		fam:     familyreg.New(),
		idx:     fwdindex.New(),
		rdx:     rindex.New(),
		sto:     sto,
		opts:    opts,
		metrics: reg,
		dbm:     obs.NewDBMetrics(reg),
	}, nil
}

// Close quiesces the DB, releasing the disk backend's connection pool if
// DiskDSN wired one.
func (db *DB) Close() error { return db.sto.Close() }

// Metrics returns the self-observability registry so a caller (the
// out-of-scope CLI, or cmd/mdbdemo) can export it.
func (db *DB) Metrics() *obs.Registry { return db.metrics }

// SeriesPoint is one matched series' resolved metadata plus a single
// sample, returned by Fetch.
type SeriesPoint struct {
	ID     uint32
	Name   string
	Labels series.LabelSet
	Point  storage.Point
	Found  bool
}

// SeriesRange is one matched series' resolved metadata plus a sample
// range, returned by FetchRange.
type SeriesRange struct {
	ID     uint32
	Name   string
	Labels series.LabelSet
	Points []storage.Point
}

// ─── call tracing ────────────────────────────────────────────────────────

func (db *DB) trace(ctx context.Context, operation string) (context.Context, func(*error)) {
	ctx = obs.WithCallInfo(ctx, obs.CallInfo{QueryID: obs.NewQueryID(), Operation: operation})
	start := time.Now()
	return ctx, func(errp *error) {
		outcome := "ok"
		if *errp != nil {
			outcome = "error"
		}
		db.dbm.QueriesTotal.Inc("operation", operation, "outcome", outcome)
		db.dbm.QueryLatency.ObserveDuration(time.Since(start), "operation", operation)
		obs.LogCallEnd(ctx, operation, time.Since(start), *errp)
		if *errp != nil && mdberr.Is(*errp, mdberr.InternalCorruption) {
			obs.LogEvent(ctx, "error", "internal_corruption", map[string]any{"error": (*errp).Error()})
		}
	}
}

// ─── writes ──────────────────────────────────────────────────────────────

// InsertMetricFamily registers fam (idempotent on name) and expands each
// sample per its type into zero or more (series-key, time, value)
// triples, inserting each into the index and storage.
func (db *DB) InsertMetricFamily(ctx context.Context, fam series.Family, samples []Sample) (err error) {
	ctx, end := db.trace(ctx, "insert_metric_family")
	defer func() { end(&err) }()

	if err = ctx.Err(); err != nil {
		return err
	}

	db.famMu.Lock()
	registered, err := db.fam.Getsert(fam)
	db.famMu.Unlock()
	if err != nil {
		return err
	}

	for _, s := range samples {
		if s.Time == 0 {
			s.Time = storage.FromTime(clock.Now(ctx))
		}
		points, err := expandSample(registered, s)
		if err != nil {
			return err
		}
		for _, p := range points {
			if err := db.insertPoint(p); err != nil {
				return err
			}
		}
	}
	db.dbm.SamplesWritten.Add(float64(len(samples)), "family", fam.Name)
	return nil
}

// InsertMetric is a one-shot insert for a single already-expanded
// series, bypassing family-type expansion entirely.
func (db *DB) InsertMetric(ctx context.Context, name string, labels series.LabelSet, t, interval storage.Timestamp, value storage.Value) (err error) {
	ctx, end := db.trace(ctx, "insert_metric")
	defer func() { end(&err) }()

	if err = ctx.Err(); err != nil {
		return err
	}
	if t == 0 {
		t = storage.FromTime(clock.Now(ctx))
	}
	return db.insertPoint(expandedPoint{Name: name, Labels: labels, Time: t, Interval: interval, Value: value})
}

// insertPoint commits one (name, labels) series to the forward and
// reverse indexes (forward first, reverse while still holding the
// forward lock, per spec.md §5), then appends the sample under the
// storage lock alone — the append happens only after the series is
// visible in both indexes.
func (db *DB) insertPoint(p expandedPoint) error {
	db.idxMu.Lock()
	meta, created, err := db.idx.Insert(p.Name, p.Labels, func() storage.Handle {
		db.stoMu.Lock()
		h := db.sto.NewEntry(p.Interval)
		db.stoMu.Unlock()
		return h
	})
	if err != nil {
		db.idxMu.Unlock()
		return err
	}
	if created {
		db.rdxMu.Lock()
		db.rdx.Insert(meta.ID, meta.Name, meta.Labels)
		db.rdxMu.Unlock()
		db.dbm.SeriesTotal.Add(1)
	}
	handle := meta.Storage
	db.idxMu.Unlock()

	db.stoMu.Lock()
	overwrote, err := db.sto.Write(handle, p.Time, p.Value)
	db.stoMu.Unlock()
	if overwrote {
		db.dbm.RingOverwrites.Inc("series", p.Name)
	}
	return err
}

// DeleteMetric is declared by the spec but not implemented; it always
// returns Unsupported.
func (db *DB) DeleteMetric(ctx context.Context, name string, labels series.LabelSet) error {
	return mdberr.New(mdberr.Unsupported, "mdb.DeleteMetric", nil)
}

// DeleteMatch is declared by the spec but not implemented; it always
// returns Unsupported.
func (db *DB) DeleteMatch(ctx context.Context, m match.Matcher) error {
	return mdberr.New(mdberr.Unsupported, "mdb.DeleteMatch", nil)
}

// ─── reads ───────────────────────────────────────────────────────────────

// GetMetricFamilies returns a snapshot of all registered families.
func (db *DB) GetMetricFamilies(ctx context.Context) (out []series.Family, err error) {
	_, end := db.trace(ctx, "get_metric_families")
	defer func() { end(&err) }()

	db.famMu.Lock()
	out = db.fam.GetList()
	db.famMu.Unlock()
	return out, nil
}

// GetMetrics returns a snapshot of all distinct metric names.
func (db *DB) GetMetrics(ctx context.Context) (out []string, err error) {
	_, end := db.trace(ctx, "get_metrics")
	defer func() { end(&err) }()

	db.rdxMu.Lock()
	out = db.rdx.Names()
	db.rdxMu.Unlock()
	return out, nil
}

// GetSeries returns a snapshot of all (name, labels) pairs.
func (db *DB) GetSeries(ctx context.Context) (out []fwdindex.SeriesMetadata, err error) {
	_, end := db.trace(ctx, "get_series")
	defer func() { end(&err) }()

	db.idxMu.Lock()
	out = db.idx.ListSeries()
	db.idxMu.Unlock()
	return out, nil
}

// GetMetricLabels returns the distinct label names used by any series of
// the given metric name.
func (db *DB) GetMetricLabels(ctx context.Context, name string) (out []string, err error) {
	_, end := db.trace(ctx, "get_metric_labels")
	defer func() { end(&err) }()

	db.rdxMu.Lock()
	out, err = db.rdx.LabelNames(name)
	db.rdxMu.Unlock()
	return out, err
}

// GetMetricLabelValues returns the distinct values observed for label
// under the given metric name.
func (db *DB) GetMetricLabelValues(ctx context.Context, name, label string) (out []string, err error) {
	_, end := db.trace(ctx, "get_metric_label_values")
	defer func() { end(&err) }()

	db.rdxMu.Lock()
	out, err = db.rdx.LabelValues(name, label)
	db.rdxMu.Unlock()
	return out, err
}

// Fetch resolves m and returns the last sample at or before t for every
// matched series.
func (db *DB) Fetch(ctx context.Context, m match.Matcher, t storage.Timestamp) (out []SeriesPoint, err error) {
	ctx, end := db.trace(ctx, "fetch")
	defer func() { end(&err) }()

	metas, err := db.resolve(m)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.stoMu.Lock()
	defer db.stoMu.Unlock()
	out = make([]SeriesPoint, len(metas))
	for i, meta := range metas {
		p, ok, err := db.sto.Fetch(meta.Storage, t)
		if err != nil {
			return nil, err
		}
		out[i] = SeriesPoint{ID: meta.ID, Name: meta.Name, Labels: meta.Labels, Point: p, Found: ok}
	}
	return out, nil
}

// FetchRange resolves m and returns the downsampled [start, end) sample
// range for every matched series.
func (db *DB) FetchRange(ctx context.Context, m match.Matcher, start, end, step storage.Timestamp) (out []SeriesRange, err error) {
	ctx, endTrace := db.trace(ctx, "fetch_range")
	defer func() { endTrace(&err) }()

	metas, err := db.resolve(m)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.stoMu.Lock()
	defer db.stoMu.Unlock()
	out = make([]SeriesRange, len(metas))
	for i, meta := range metas {
		points, err := db.sto.Range(meta.Storage, start, end, step)
		if err != nil {
			return nil, err
		}
		out[i] = SeriesRange{ID: meta.ID, Name: meta.Name, Labels: meta.Labels, Points: points}
	}
	return out, nil
}

// resolve runs m against the reverse index, then resolves every matched
// id to its forward-index metadata. Each subsystem lock is held only
// for the duration of its own snapshot, per spec.md §5's reader
// discipline.
func (db *DB) resolve(m match.Matcher) ([]*fwdindex.SeriesMetadata, error) {
	db.rdxMu.Lock()
	ids, err := db.rdx.Search(m)
	db.rdxMu.Unlock()
	if err != nil {
		return nil, err
	}

	db.idxMu.Lock()
	defer db.idxMu.Unlock()
	metas := make([]*fwdindex.SeriesMetadata, 0, ids.Len())
	for _, id := range ids.IDs() {
		meta, err := db.idx.ByID(id)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
