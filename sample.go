package mdb

import (
	"fmt"
	"math"
	"sort"

	"ncollectd-mdb/internal/mdberr"
	"ncollectd-mdb/internal/series"
	"ncollectd-mdb/internal/storage"
)

// Sample is one reading for a registered metric family, presented to
// InsertMetricFamily. Exactly the fields matching fam.Type are
// meaningful; expandSample ignores the rest. This is the Go-native
// shape of the source's "contained sample expanded by type" step
// (spec.md §4.7).
type Sample struct {
	Labels   series.LabelSet
	Time     storage.Timestamp
	Interval storage.Timestamp

	// Gauge / Counter / Bool: exactly one populated value.
	Value *storage.Value

	// Info: extra payload labels appended to the _info series.
	InfoLabels series.LabelSet

	// StateSet: state name -> active, one boolean series emitted per
	// entry, each carrying a label named after the family with the
	// state as its value.
	States map[string]bool

	// Summary.
	Summary *Summary

	// Histogram / GaugeHistogram.
	Histogram *Histogram
}

// Summary carries a summary family's count, sum, and per-quantile
// values.
type Summary struct {
	Count     uint64
	Sum       float64
	Quantiles map[float64]float64
}

// Histogram carries a histogram family's count, sum, and cumulative
// per-bucket counts keyed by upper bound (use math.Inf(1) for the
// +Inf bucket).
type Histogram struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// expandedPoint is one (series-key, time, value) triple produced by
// expanding a Sample per its family's type.
type expandedPoint struct {
	Name     string
	Labels   series.LabelSet
	Time     storage.Timestamp
	Interval storage.Timestamp
	Value    storage.Value
}

// expandSample implements spec.md §4.7's per-type expansion: counters
// get a _total suffix; info appends its payload as extra labels with
// suffix _info; state-set explodes into one boolean series per state
// using the family name as label key; summary yields _count, _sum, and
// per-quantile samples; histogram/gauge-histogram yield
// _count|_gcount, _sum|_gsum, and _bucket samples with an le label.
// Extra-label merges re-sort into canonical order via LabelSet.WithExtra.
func expandSample(fam *series.Family, s Sample) ([]expandedPoint, error) {
	switch fam.Type {
	case series.Unknown, series.Gauge:
		if s.Value == nil {
			return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
		}
		return []expandedPoint{{Name: fam.Name, Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: *s.Value}}, nil

	case series.Counter:
		if s.Value == nil {
			return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
		}
		return []expandedPoint{{Name: fam.Name + "_total", Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: *s.Value}}, nil

	case series.Info:
		labels := s.Labels.WithExtra(s.InfoLabels)
		return []expandedPoint{{Name: fam.Name + "_info", Labels: labels, Time: s.Time, Interval: s.Interval, Value: storage.Info()}}, nil

	case series.StateSet:
		if len(s.States) == 0 {
			return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
		}
		names := make([]string, 0, len(s.States))
		for state := range s.States {
			names = append(names, state)
		}
		sort.Strings(names)
		out := make([]expandedPoint, 0, len(names))
		for _, state := range names {
			labels := s.Labels.WithExtra(series.LabelSet{{Name: fam.Name, Value: state}})
			out = append(out, expandedPoint{
				Name: fam.Name, Labels: labels, Time: s.Time, Interval: s.Interval,
				Value: storage.Bool(s.States[state]),
			})
		}
		return out, nil

	case series.Summary:
		if s.Summary == nil {
			return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
		}
		out := []expandedPoint{
			{Name: fam.Name + "_count", Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: storage.GaugeI64(int64(s.Summary.Count))},
			{Name: fam.Name + "_sum", Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: storage.GaugeF64(s.Summary.Sum)},
		}
		quantiles := make([]float64, 0, len(s.Summary.Quantiles))
		for q := range s.Summary.Quantiles {
			quantiles = append(quantiles, q)
		}
		sort.Float64s(quantiles)
		for _, q := range quantiles {
			labels := s.Labels.WithExtra(series.LabelSet{{Name: "quantile", Value: formatLabelFloat(q)}})
			out = append(out, expandedPoint{
				Name: fam.Name, Labels: labels, Time: s.Time, Interval: s.Interval,
				Value: storage.GaugeF64(s.Summary.Quantiles[q]),
			})
		}
		return out, nil

	case series.Histogram, series.GaugeHistogram:
		if s.Histogram == nil {
			return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
		}
		countSuffix, sumSuffix := "_count", "_sum"
		if fam.Type == series.GaugeHistogram {
			countSuffix, sumSuffix = "_gcount", "_gsum"
		}
		out := []expandedPoint{
			{Name: fam.Name + countSuffix, Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: storage.GaugeI64(int64(s.Histogram.Count))},
			{Name: fam.Name + sumSuffix, Labels: s.Labels, Time: s.Time, Interval: s.Interval, Value: storage.GaugeF64(s.Histogram.Sum)},
		}
		bounds := make([]float64, 0, len(s.Histogram.Buckets))
		for le := range s.Histogram.Buckets {
			bounds = append(bounds, le)
		}
		sort.Float64s(bounds)
		for _, le := range bounds {
			labels := s.Labels.WithExtra(series.LabelSet{{Name: "le", Value: formatLabelFloat(le)}})
			out = append(out, expandedPoint{
				Name: fam.Name + "_bucket", Labels: labels, Time: s.Time, Interval: s.Interval,
				Value: storage.GaugeI64(int64(s.Histogram.Buckets[le])),
			})
		}
		return out, nil

	default:
		return nil, mdberr.New(mdberr.InvalidArgument, "mdb.expandSample", nil)
	}
}

func formatLabelFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%g", v)
}
