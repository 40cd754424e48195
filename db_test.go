package mdb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"ncollectd-mdb/internal/goldentest"
	"ncollectd-mdb/internal/match"
	"ncollectd-mdb/internal/series"
	"ncollectd-mdb/internal/storage"
)

func mustNewDB(t *testing.T, capacity int) *DB {
	t.Helper()
	opts := DefaultOptions()
	opts.RingCapacity = capacity
	db, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return db
}

func gaugeVal(v float64) *storage.Value {
	val := storage.GaugeF64(v)
	return &val
}

// E1: counter family expansion, get_series, get_metric_label_values.
func TestInsertMetricFamily_CounterExpansion(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "http_requests", Type: series.Counter}
	samples := []Sample{
		{Labels: series.LabelSet{{Name: "method", Value: "get"}, {Name: "code", Value: "200"}}, Value: gaugeVal(5), Time: 1},
		{Labels: series.LabelSet{{Name: "method", Value: "get"}, {Name: "code", Value: "500"}}, Value: gaugeVal(1), Time: 1},
	}
	if err := db.InsertMetricFamily(ctx, fam, samples); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	list, err := db.GetSeries(ctx)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 series, got %d", len(list))
	}
	for _, s := range list {
		if s.Name != "http_requests_total" {
			t.Errorf("expected name http_requests_total, got %s", s.Name)
		}
	}

	values, err := db.GetMetricLabelValues(ctx, "http_requests_total", "code")
	if err != nil {
		t.Fatalf("GetMetricLabelValues: %v", err)
	}
	sort.Strings(values)
	want := []string{"200", "500"}
	if fmt.Sprint(values) != fmt.Sprint(want) {
		t.Errorf("got label values %v, want %v", values, want)
	}
}

// Unknown family type is a valid zero value (series.ValidType) and must
// expand like a gauge, not be rejected.
func TestInsertMetricFamily_UnknownTypeExpandsLikeGauge(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "legacy_value", Type: series.Unknown}
	sample := Sample{Labels: series.LabelSet{{Name: "host", Value: "a"}}, Value: gaugeVal(7), Time: 1}
	if err := db.InsertMetricFamily(ctx, fam, []Sample{sample}); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	points, err := db.Fetch(ctx, match.EQLName("legacy_value"), 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 1 || !points[0].Found || points[0].Point.Value != 7 {
		t.Fatalf("expected a single found point with value 7, got %+v", points)
	}
}

// Summary family expansion: _count, _sum, and per-quantile series.
func TestInsertMetricFamily_SummaryExpansion(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "request_duration_seconds", Type: series.Summary}
	sample := Sample{
		Time: 1,
		Summary: &Summary{
			Count:     10,
			Sum:       4.5,
			Quantiles: map[float64]float64{0.5: 0.2, 0.9: 0.4},
		},
	}
	if err := db.InsertMetricFamily(ctx, fam, []Sample{sample}); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	names, err := db.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	wantNames := map[string]bool{"request_duration_seconds_count": false, "request_duration_seconds_sum": false, "request_duration_seconds": false}
	for _, n := range names {
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
		}
	}
	for n, seen := range wantNames {
		if !seen {
			t.Errorf("expected metric name %s to be present", n)
		}
	}

	quantilePoints, err := db.Fetch(ctx, match.EQLName("request_duration_seconds"), 1)
	if err != nil {
		t.Fatalf("Fetch quantiles: %v", err)
	}
	if len(quantilePoints) != 2 {
		t.Fatalf("expected 2 quantile series, got %d", len(quantilePoints))
	}

	countPoints, err := db.Fetch(ctx, match.EQLName("request_duration_seconds_count"), 1)
	if err != nil {
		t.Fatalf("Fetch count: %v", err)
	}
	if len(countPoints) != 1 || countPoints[0].Point.Value != 10 {
		t.Fatalf("expected count=10, got %+v", countPoints)
	}
}

// E2: ring overflow via insert_metric_family on a gauge, capacity 6.
func TestInsertMetricFamily_GaugeRingOverflow(t *testing.T) {
	db := mustNewDB(t, 6)
	ctx := context.Background()

	fam := series.Family{Name: "temperature", Type: series.Gauge}
	labels := series.LabelSet{{Name: "room", Value: "lab"}}

	for i := 1; i <= 7; i++ {
		s := Sample{Labels: labels, Value: gaugeVal(float64(i)), Time: storage.Timestamp(i)}
		if err := db.InsertMetricFamily(ctx, fam, []Sample{s}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	list, err := db.GetSeries(ctx)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 series, got %d", len(list))
	}

	rng, err := db.FetchRange(ctx, match.EQLName("temperature"), 0, 8, 0)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(rng) != 1 {
		t.Fatalf("expected 1 matched series, got %d", len(rng))
	}
	points := rng[0].Points
	if len(points) != 6 {
		t.Fatalf("expected count=6 after overflow, got %d", len(points))
	}
	if points[0].Time != 2 {
		t.Errorf("expected oldest sample time=2, got %v", points[0].Time)
	}
	if points[len(points)-1].Time != 7 {
		t.Errorf("expected newest sample time=7, got %v", points[len(points)-1].Time)
	}
}

// E3: regex match after E1-style insert.
func TestFetch_RegexMatchAfterCounterInsert(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "http_requests", Type: series.Counter}
	samples := []Sample{
		{Labels: series.LabelSet{{Name: "method", Value: "get"}, {Name: "code", Value: "200"}}, Value: gaugeVal(5), Time: 1},
		{Labels: series.LabelSet{{Name: "method", Value: "get"}, {Name: "code", Value: "500"}}, Value: gaugeVal(1), Time: 1},
	}
	if err := db.InsertMetricFamily(ctx, fam, samples); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	m := match.Matcher{
		Name:  []match.Predicate{{Op: match.EQL, Value: "http_requests_total"}},
		Label: []match.Predicate{{Label: "code", Op: match.EQLRegex, Value: "5.."}},
	}
	points, err := db.Fetch(ctx, m, 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 match, got %d", len(points))
	}
	if v, ok := points[0].Labels.Get("code"); !ok || v != "500" {
		t.Errorf("expected code=500, got %v ok=%v", v, ok)
	}
}

// E4: state-set boolean expansion.
func TestInsertMetricFamily_StateSetExpansion(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "process_state", Type: series.StateSet}
	sample := Sample{
		Time:   1,
		States: map[string]bool{"running": true, "zombie": false},
	}
	if err := db.InsertMetricFamily(ctx, fam, []Sample{sample}); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	list, err := db.GetSeries(ctx)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 series, got %d", len(list))
	}

	got := map[string]float64{}
	for _, s := range list {
		state, ok := s.Labels.Get("process_state")
		if !ok {
			t.Fatalf("series %v missing process_state label", s.Labels)
		}
		p, found, err := db.sto.Fetch(s.Storage, 1)
		if err != nil || !found {
			t.Fatalf("fetch state %s: found=%v err=%v", state, found, err)
		}
		got[state] = p.Value
	}
	if got["running"] != 1.0 {
		t.Errorf("expected running=1.0, got %v", got["running"])
	}
	if got["zombie"] != 0.0 {
		t.Errorf("expected zombie=0.0, got %v", got["zombie"])
	}
}

// E5: histogram bucket expansion.
func TestInsertMetricFamily_HistogramExpansion(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "rtt", Type: series.Histogram}
	sample := Sample{
		Time: 1,
		Histogram: &Histogram{
			Count:   10,
			Sum:     1.234,
			Buckets: map[float64]uint64{0.1: 3, 1: 7, math.Inf(1): 10},
		},
	}
	if err := db.InsertMetricFamily(ctx, fam, []Sample{sample}); err != nil {
		t.Fatalf("InsertMetricFamily: %v", err)
	}

	names, err := db.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	wantNames := map[string]bool{"rtt_bucket": false, "rtt_count": false, "rtt_sum": false}
	for _, n := range names {
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
		}
	}
	for n, seen := range wantNames {
		if !seen {
			t.Errorf("expected metric name %s to be present", n)
		}
	}

	bucketPoints, err := db.Fetch(ctx, match.EQLName("rtt_bucket"), 1)
	if err != nil {
		t.Fatalf("Fetch rtt_bucket: %v", err)
	}
	if len(bucketPoints) != 3 {
		t.Fatalf("expected 3 bucket series, got %d", len(bucketPoints))
	}
}

// E6: concurrent writer/reader consistency.
func TestConcurrentInsertAndGetSeries(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "load", Type: series.Gauge}

	const writers = 8
	const perWriter = 1250 // 8 * 1250 = 10000 distinct series

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				labels := series.LabelSet{
					{Name: "writer", Value: fmt.Sprintf("%d", w)},
					{Name: "i", Value: fmt.Sprintf("%d", i)},
				}
				s := Sample{Labels: labels, Value: gaugeVal(float64(i)), Time: storage.Timestamp(i + 1)}
				if err := db.InsertMetricFamily(ctx, fam, []Sample{s}); err != nil {
					t.Errorf("writer %d insert %d: %v", w, i, err)
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			list, err := db.GetSeries(ctx)
			if err != nil {
				t.Errorf("GetSeries: %v", err)
				return
			}
			seen := make(map[uint32]bool, len(list))
			for _, s := range list {
				if seen[s.ID] {
					t.Errorf("duplicate id %d in GetSeries snapshot", s.ID)
					return
				}
				seen[s.ID] = true
			}
		}
	}()

	wg.Wait()
	close(stop)
	readerWG.Wait()

	list, err := db.GetSeries(ctx)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(list) != writers*perWriter {
		t.Fatalf("expected %d series, got %d", writers*perWriter, len(list))
	}

	for _, s := range list {
		db.rdxMu.Lock()
		ids, err := db.rdx.Search(match.EQLName(s.Name))
		db.rdxMu.Unlock()
		if err != nil {
			t.Fatalf("rdx.Search: %v", err)
		}
		found := false
		for _, id := range ids.IDs() {
			if id == s.ID {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("series id %d present in FI but missing from RI", s.ID)
		}
	}
}

// Property 7: single-EQL-name fast path returns the same set as the
// general multi-predicate path.
func TestFetch_EQLNameFastPathMatchesGeneralPath(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "widgets", Type: series.Gauge}
	for i := 0; i < 5; i++ {
		s := Sample{
			Labels: series.LabelSet{{Name: "shard", Value: fmt.Sprintf("%d", i)}},
			Value:  gaugeVal(float64(i)),
			Time:   1,
		}
		if err := db.InsertMetricFamily(ctx, fam, []Sample{s}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	fast := match.EQLName("widgets")
	general := match.Matcher{Name: []match.Predicate{
		{Op: match.EQL, Value: "widgets"},
		{Op: match.Exists},
	}}

	fastPoints, err := db.Fetch(ctx, fast, 1)
	if err != nil {
		t.Fatalf("Fetch fast: %v", err)
	}
	generalPoints, err := db.Fetch(ctx, general, 1)
	if err != nil {
		t.Fatalf("Fetch general: %v", err)
	}
	if len(fastPoints) != len(generalPoints) {
		t.Fatalf("fast path returned %d, general path returned %d", len(fastPoints), len(generalPoints))
	}

	ids := map[uint32]bool{}
	for _, p := range fastPoints {
		ids[p.ID] = true
	}
	for _, p := range generalPoints {
		if !ids[p.ID] {
			t.Errorf("id %d in general path but not fast path", p.ID)
		}
	}
}

// Golden-snapshot regression test for fetch_range, plus a determinism
// check on the reverse-index search that resolves it.
func TestFetchRange_GoldenSnapshot(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	fam := series.Family{Name: "golden_metric", Type: series.Gauge}
	labels := series.LabelSet{{Name: "instance", Value: "a"}}
	for i := 1; i <= 5; i++ {
		s := Sample{Labels: labels, Value: gaugeVal(float64(i)), Time: storage.Timestamp(i)}
		if err := db.InsertMetricFamily(ctx, fam, []Sample{s}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	fetch := func() any {
		rng, err := db.FetchRange(ctx, match.EQLName("golden_metric"), 0, 10, 0)
		if err != nil {
			t.Fatalf("FetchRange: %v", err)
		}
		return rng
	}

	goldentest.AssertDeterministic(t, fetch)
	goldentest.Golden(t, "fetch_range_golden_metric", fetch())
}

func TestDeleteOperationsUnsupported(t *testing.T) {
	db := mustNewDB(t, storage.DefaultCapacity)
	ctx := context.Background()

	if err := db.DeleteMetric(ctx, "x", nil); err == nil {
		t.Error("expected DeleteMetric to return an error")
	}
	if err := db.DeleteMatch(ctx, match.EQLName("x")); err == nil {
		t.Error("expected DeleteMatch to return an error")
	}
}
