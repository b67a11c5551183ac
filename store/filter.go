package store

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Filter is a predicate over a document's attributes.
//
// Filters form a small AST built with Eq, Ne, Lt, Le, Gt, Ge, BeginsWith,
// Contains, Exists, NotExists, In, And, Or and Not. Adapters translate the
// tree into their native filter language; Match evaluates it in memory
// against a JSON-shaped document.
//
// Attribute paths are dotted ("address.postalCode"); numeric segments index
// into lists ("addresses.0.line1"). A nil Filter matches every document.
type Filter interface {
	// Match reports whether doc satisfies the filter.
	Match(doc map[string]any) bool
}

// CompareOp is a comparison operator.
type CompareOp string

// Comparison operators.
const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Comparison compares the attribute at Path with Value.
type Comparison struct {
	Path  string
	Op    CompareOp
	Value any
}

// PrefixMatch matches string attributes starting with Prefix.
type PrefixMatch struct {
	Path   string
	Prefix string
}

// ContainsMatch matches strings containing a substring, or lists containing an element.
type ContainsMatch struct {
	Path  string
	Value any
}

// Presence matches on whether the attribute at Path is present.
type Presence struct {
	Path    string
	Present bool
}

// Membership matches when the attribute equals one of Values.
type Membership struct {
	Path   string
	Values []any
}

// AndFilter matches when all of its filters match.
type AndFilter struct {
	Filters []Filter
}

// OrFilter matches when any of its filters matches.
type OrFilter struct {
	Filters []Filter
}

// NotFilter negates a filter.
type NotFilter struct {
	Filter Filter
}

// Eq matches documents whose attribute at path equals v.
func Eq(path string, v any) Filter { return Comparison{Path: path, Op: OpEq, Value: v} }

// Ne matches documents whose attribute at path differs from v. Missing attributes match.
func Ne(path string, v any) Filter { return Comparison{Path: path, Op: OpNe, Value: v} }

// Lt matches documents whose attribute at path is less than v.
func Lt(path string, v any) Filter { return Comparison{Path: path, Op: OpLt, Value: v} }

// Le matches documents whose attribute at path is less than or equal to v.
func Le(path string, v any) Filter { return Comparison{Path: path, Op: OpLe, Value: v} }

// Gt matches documents whose attribute at path is greater than v.
func Gt(path string, v any) Filter { return Comparison{Path: path, Op: OpGt, Value: v} }

// Ge matches documents whose attribute at path is greater than or equal to v.
func Ge(path string, v any) Filter { return Comparison{Path: path, Op: OpGe, Value: v} }

// BeginsWith matches string attributes starting with prefix.
func BeginsWith(path, prefix string) Filter { return PrefixMatch{Path: path, Prefix: prefix} }

// Contains matches strings containing v or lists containing v.
func Contains(path string, v any) Filter { return ContainsMatch{Path: path, Value: v} }

// Exists matches documents where path is present.
func Exists(path string) Filter { return Presence{Path: path, Present: true} }

// NotExists matches documents where path is absent.
func NotExists(path string) Filter { return Presence{Path: path, Present: false} }

// In matches documents whose attribute at path equals any of values.
func In(path string, values ...any) Filter { return Membership{Path: path, Values: values} }

// And combines filters so that all must match. Nil filters are dropped; a
// single remaining filter is returned as is, and no filters yield nil.
func And(filters ...Filter) Filter {
	kept := compact(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return AndFilter{Filters: kept}
}

// Or combines filters so that any may match. Nil filters are dropped.
func Or(filters ...Filter) Filter {
	kept := compact(filters)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return OrFilter{Filters: kept}
}

// Not negates f.
func Not(f Filter) Filter { return NotFilter{Filter: f} }

func compact(filters []Filter) []Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	return kept
}

// Matches evaluates f against doc, treating a nil filter as match-all.
func Matches(f Filter, doc map[string]any) bool {
	if f == nil {
		return true
	}
	return f.Match(doc)
}

// Match implements Filter.
func (c Comparison) Match(doc map[string]any) bool {
	got, ok := Lookup(doc, c.Path)
	if !ok {
		return c.Op == OpNe
	}
	want := normalize(c.Value)
	switch c.Op {
	case OpEq:
		return equal(got, want)
	case OpNe:
		return !equal(got, want)
	}
	cmp, ok := order(got, want)
	if !ok {
		return false
	}
	switch c.Op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// Match implements Filter.
func (p PrefixMatch) Match(doc map[string]any) bool {
	got, ok := Lookup(doc, p.Path)
	if !ok {
		return false
	}
	s, ok := got.(string)
	return ok && strings.HasPrefix(s, p.Prefix)
}

// Match implements Filter.
func (c ContainsMatch) Match(doc map[string]any) bool {
	got, ok := Lookup(doc, c.Path)
	if !ok {
		return false
	}
	want := normalize(c.Value)
	switch v := got.(type) {
	case string:
		sub, ok := want.(string)
		return ok && strings.Contains(v, sub)
	case []any:
		for _, elem := range v {
			if equal(elem, want) {
				return true
			}
		}
	}
	return false
}

// Match implements Filter.
func (p Presence) Match(doc map[string]any) bool {
	_, ok := Lookup(doc, p.Path)
	return ok == p.Present
}

// Match implements Filter.
func (m Membership) Match(doc map[string]any) bool {
	got, ok := Lookup(doc, m.Path)
	if !ok {
		return false
	}
	for _, v := range m.Values {
		if equal(got, normalize(v)) {
			return true
		}
	}
	return false
}

// Match implements Filter.
func (a AndFilter) Match(doc map[string]any) bool {
	for _, f := range a.Filters {
		if !Matches(f, doc) {
			return false
		}
	}
	return true
}

// Match implements Filter.
func (o OrFilter) Match(doc map[string]any) bool {
	for _, f := range o.Filters {
		if Matches(f, doc) {
			return true
		}
	}
	return false
}

// Match implements Filter.
func (n NotFilter) Match(doc map[string]any) bool {
	return !Matches(n.Filter, doc)
}

// Lookup resolves a dotted path in a JSON-shaped document.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// normalize converts a filter operand to the shape JSON decoding produces,
// so it compares equal to values read back from a document.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), b)
}

func order(a, b any) (int, bool) {
	switch x := normalize(a).(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}
