// Package match defines the mixed-predicate match expression the reverse
// index evaluates (spec.md §4.6).
package match

// Op is a predicate operator.
type Op int

const (
	// EQL: label L exists with value exactly x.
	EQL Op = iota
	// NEQ: label L exists and value != x.
	NEQ
	// EQLRegex: label L exists and value matches the regex x.
	EQLRegex
	// NEQRegex: label L exists and value does not match the regex x.
	NEQRegex
	// Exists: label L is present.
	Exists
	// NExists: label L is absent.
	NExists
)

// Predicate is one operator/operand pair. Label names the metric name
// component (when used in a Matcher.Name group) or a label name (when
// used in a Matcher.Label group); Value is the operand (a literal or, for
// the *Regex operators, a regex pattern).
type Predicate struct {
	Label string
	Op    Op
	Value string
}

// Matcher is a compiled match expression: a group of predicates over the
// metric name, and a group of predicates over labels. Per spec.md §9, a
// Matcher's regex operands are borrowed for the duration of one Search
// call and must not be retained past it.
type Matcher struct {
	Name  []Predicate
	Label []Predicate
}

// EQLName builds a Matcher whose only predicate is a single EQL match on
// the metric name — the reverse index's documented fast path.
func EQLName(name string) Matcher {
	return Matcher{Name: []Predicate{{Op: EQL, Value: name}}}
}
