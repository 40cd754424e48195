// Package rindex implements the reverse index (RI): a three-level tree
// (name -> label -> value -> posting list) that answers label-predicate
// queries via set algebra over sorted identifier sets (spec.md §4.6).
package rindex

import (
	"regexp"
	"sort"

	"ncollectd-mdb/internal/htable"
	"ncollectd-mdb/internal/idset"
	"ncollectd-mdb/internal/mdberr"
	"ncollectd-mdb/internal/match"
	"ncollectd-mdb/internal/series"
)

const (
	namesInitialCapacity  = 256
	nestedInitialCapacity = 4
)

type valueNode struct {
	value string
	ids   *idset.Set
}

type labelNode struct {
	name   string
	values *htable.Table[*valueNode]
	ids    *idset.Set
}

type nameNode struct {
	name   string
	labels *htable.Table[*labelNode]
	ids    *idset.Set
}

// Index owns the three-level reverse-index tree. It performs no locking of
// its own; the mdb facade's lock_rindex mutex guards access, acquired
// after lock_index and before lock_storage per the documented lock order.
type Index struct {
	names *htable.Table[*nameNode]
}

// New creates an empty Index.
func New() *Index {
	return &Index{names: htable.New[*nameNode](namesInitialCapacity)}
}

// Insert adds id to every level of the tree for (name, labels). Adds are
// idempotent: inserting the same id for the same series twice leaves the
// tree unchanged the second time.
func (idx *Index) Insert(id uint32, name string, labels series.LabelSet) {
	n := idx.getOrCreateName(name)
	n.ids.Insert(id)

	for _, l := range labels {
		ln := idx.getOrCreateLabel(n, l.Name)
		ln.ids.Insert(id)
		vn := idx.getOrCreateValue(ln, l.Value)
		vn.ids.Insert(id)
	}
}

func (idx *Index) getOrCreateName(name string) *nameNode {
	hash := htable.HashString(name)
	if n, ok := idx.names.Find(hash, func(v *nameNode) bool { return v.name == name }); ok {
		return n
	}
	fresh := &nameNode{
		name:   name,
		labels: htable.New[*labelNode](nestedInitialCapacity),
		ids:    idset.NewSeries(),
	}
	stored, _ := idx.names.Insert(fresh, hash, func(a, b *nameNode) bool { return a.name == b.name })
	return stored
}

func (idx *Index) getOrCreateLabel(n *nameNode, label string) *labelNode {
	hash := htable.HashString(label)
	if ln, ok := n.labels.Find(hash, func(v *labelNode) bool { return v.name == label }); ok {
		return ln
	}
	fresh := &labelNode{
		name:   label,
		values: htable.New[*valueNode](nestedInitialCapacity),
		ids:    idset.NewSeries(),
	}
	stored, _ := n.labels.Insert(fresh, hash, func(a, b *labelNode) bool { return a.name == b.name })
	return stored
}

func (idx *Index) getOrCreateValue(ln *labelNode, value string) *valueNode {
	hash := htable.HashString(value)
	if vn, ok := ln.values.Find(hash, func(v *valueNode) bool { return v.value == value }); ok {
		return vn
	}
	fresh := &valueNode{value: value, ids: idset.NewSeries()}
	stored, _ := ln.values.Insert(fresh, hash, func(a, b *valueNode) bool { return a.value == b.value })
	return stored
}

// Search evaluates m and returns the sorted, deduplicated set of matching
// series ids, per the evaluation strategy in spec.md §4.6: resolve the
// name predicate group first (a lone EQL predicate takes the documented
// fast path of a direct table lookup), then intersect in each label
// predicate's result, stopping early once the running set is empty.
func (idx *Index) Search(m match.Matcher) (*idset.Set, error) {
	nodes, err := idx.resolveNamePredicates(m.Name)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return idset.New(), nil
	}

	result := unionNodeIDs(nodes)
	for _, p := range m.Label {
		if result.Len() == 0 {
			break
		}
		set, err := idx.resolveLabelPredicate(nodes, p)
		if err != nil {
			return nil, err
		}
		result = idset.Intersect(result, set)
	}
	return result, nil
}

// LabelNames returns the distinct label names used by any series of the
// given metric name.
func (idx *Index) LabelNames(name string) ([]string, error) {
	n, ok := idx.names.Find(htable.HashString(name), func(v *nameNode) bool { return v.name == name })
	if !ok {
		return nil, mdberr.New(mdberr.NotFound, "rindex.LabelNames", nil)
	}
	var out []string
	n.labels.Each(func(l *labelNode) { out = append(out, l.name) })
	sort.Strings(out)
	return out, nil
}

// LabelValues returns the distinct values observed for label under the
// given metric name. Returns an empty slice (not an error) if the metric
// exists but never carried that label.
func (idx *Index) LabelValues(name, label string) ([]string, error) {
	n, ok := idx.names.Find(htable.HashString(name), func(v *nameNode) bool { return v.name == name })
	if !ok {
		return nil, mdberr.New(mdberr.NotFound, "rindex.LabelValues", nil)
	}
	ln, ok := n.labels.Find(htable.HashString(label), func(v *labelNode) bool { return v.name == label })
	if !ok {
		return nil, nil
	}
	var out []string
	ln.values.Each(func(v *valueNode) { out = append(out, v.value) })
	sort.Strings(out)
	return out, nil
}

// Names returns every distinct metric name currently indexed.
func (idx *Index) Names() []string {
	var out []string
	idx.names.Each(func(n *nameNode) { out = append(out, n.name) })
	sort.Strings(out)
	return out
}

func unionNodeIDs(nodes []*nameNode) *idset.Set {
	result := idset.New()
	for _, n := range nodes {
		result = idset.Union(result, n.ids)
	}
	return result
}

// resolveNamePredicates returns the name nodes satisfying every name
// predicate. A single EQL predicate (the common case, since a metric
// family has one name) takes the fast path: a direct table lookup instead
// of scanning every registered name.
func (idx *Index) resolveNamePredicates(preds []match.Predicate) ([]*nameNode, error) {
	if len(preds) == 0 {
		return idx.names.Values(), nil
	}
	if len(preds) == 1 && preds[0].Op == match.EQL {
		hash := htable.HashString(preds[0].Value)
		n, ok := idx.names.Find(hash, func(v *nameNode) bool { return v.name == preds[0].Value })
		if !ok {
			return nil, nil
		}
		return []*nameNode{n}, nil
	}

	compiled := make(map[int]*regexp.Regexp, len(preds))
	for i, p := range preds {
		if p.Op == match.EQLRegex || p.Op == match.NEQRegex {
			re, err := regexp.Compile(p.Value)
			if err != nil {
				return nil, mdberr.New(mdberr.InvalidArgument, "rindex.Search", err)
			}
			compiled[i] = re
		}
	}

	var out []*nameNode
	for _, n := range idx.names.Values() {
		ok := true
		for i, p := range preds {
			if !evalNamePredicate(n, p, compiled[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func evalNamePredicate(n *nameNode, p match.Predicate, re *regexp.Regexp) bool {
	switch p.Op {
	case match.EQL:
		return n.name == p.Value
	case match.NEQ:
		return n.name != p.Value
	case match.EQLRegex:
		return re.MatchString(n.name)
	case match.NEQRegex:
		return !re.MatchString(n.name)
	case match.Exists:
		return true
	case match.NExists:
		return false
	default:
		return false
	}
}

// resolveLabelPredicate computes the per-predicate candidate set P per the
// operator table in spec.md §4.6, scoped to the given (already
// name-filtered) nodes and unioned across them.
func (idx *Index) resolveLabelPredicate(nodes []*nameNode, p match.Predicate) (*idset.Set, error) {
	var re *regexp.Regexp
	if p.Op == match.EQLRegex || p.Op == match.NEQRegex {
		compiled, err := regexp.Compile(p.Value)
		if err != nil {
			return nil, mdberr.New(mdberr.InvalidArgument, "rindex.Search", err)
		}
		re = compiled
	}

	result := idset.New()
	for _, n := range nodes {
		ln, ok := n.labels.Find(htable.HashString(p.Label), func(v *labelNode) bool { return v.name == p.Label })

		switch p.Op {
		case match.Exists:
			if ok {
				result = idset.Union(result, ln.ids)
			}
		case match.NExists:
			if ok {
				result = idset.Union(result, idset.Difference(n.ids, ln.ids))
			} else {
				result = idset.Union(result, n.ids)
			}
		case match.EQL:
			if !ok {
				continue
			}
			if vn, ok := ln.values.Find(htable.HashString(p.Value), func(v *valueNode) bool { return v.value == p.Value }); ok {
				result = idset.Union(result, vn.ids)
			}
		case match.NEQ:
			if !ok {
				continue
			}
			if vn, ok := ln.values.Find(htable.HashString(p.Value), func(v *valueNode) bool { return v.value == p.Value }); ok {
				result = idset.Union(result, idset.Difference(ln.ids, vn.ids))
			} else {
				result = idset.Union(result, ln.ids)
			}
		case match.EQLRegex:
			if !ok {
				continue
			}
			ln.values.Each(func(v *valueNode) {
				if re.MatchString(v.value) {
					result = idset.Union(result, v.ids)
				}
			})
		case match.NEQRegex:
			if !ok {
				continue
			}
			ln.values.Each(func(v *valueNode) {
				if !re.MatchString(v.value) {
					result = idset.Union(result, v.ids)
				}
			})
		}
	}
	return result, nil
}
