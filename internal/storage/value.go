package storage

// ValueKind tags the union stored on Value, mirroring the sample value
// types a metric family can carry.
type ValueKind int

const (
	GaugeFloat64 ValueKind = iota
	GaugeInt64
	CounterUint64
	CounterFloat64
	BoolKind
	InfoKind
)

// Value is a tagged union over the sample value types the spec names;
// Coerce reduces any of them to the float64 the ring buffer stores.
type Value struct {
	Kind ValueKind
	f64  float64
	i64  int64
	u64  uint64
	b    bool
}

func GaugeF64(v float64) Value   { return Value{Kind: GaugeFloat64, f64: v} }
func GaugeI64(v int64) Value     { return Value{Kind: GaugeInt64, i64: v} }
func CounterU64(v uint64) Value  { return Value{Kind: CounterUint64, u64: v} }
func CounterF64(v float64) Value { return Value{Kind: CounterFloat64, f64: v} }
func Bool(v bool) Value          { return Value{Kind: BoolKind, b: v} }
func Info() Value                { return Value{Kind: InfoKind} }

// Coerce reduces the tagged value to float64 per the spec's §4.3 coercion
// rules: gauge-f64/counter-f64 pass through, gauge-i64/counter-u64 cast,
// bool maps to 1.0/0.0, info is always 1.0.
func (v Value) Coerce() float64 {
	switch v.Kind {
	case GaugeFloat64, CounterFloat64:
		return v.f64
	case GaugeInt64:
		return float64(v.i64)
	case CounterUint64:
		return float64(v.u64)
	case BoolKind:
		if v.b {
			return 1.0
		}
		return 0.0
	case InfoKind:
		return 1.0
	default:
		return 0.0
	}
}
