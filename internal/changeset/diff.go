// Package changeset computes minimal field-level diffs for partial updates.
//
// An edit session captures a snapshot of the entity when the form opens;
// on submit only the fields that actually changed are sent, so an update
// never overwrites server state the user did not touch.
package changeset

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// ChangeSet maps field names to their new values. Only fields whose value
// differs from the snapshot appear in the set.
type ChangeSet map[string]any

// IsEmpty reports whether the set contains no changed fields. An empty set
// means the submission is a no-op and no request should be issued.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs) == 0
}

// Fields returns the changed field names in sorted order.
func (cs ChangeSet) Fields() []string {
	fields := make([]string, 0, len(cs))
	for f := range cs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Diff compares current against the original snapshot and returns the fields
// that changed. Neither input is mutated.
//
// Comparison rules, per field type:
//   - array/slice values: both sides are copied, sorted by serialized form
//     and compared serialized. Reordering alone is not a change. When the
//     field differs, the output carries current's value in its original
//     (unsorted) order.
//   - everything else: strict inequality on the value. Nested objects and
//     other uncomparable values compare by serialized form.
//
// Fields present only in original are ignored: the diff answers "what did
// the submitted form change", not "what does the form omit".
func Diff(current, original map[string]any) ChangeSet {
	out := ChangeSet{}
	for field, cur := range current {
		orig, ok := original[field]
		if !ok {
			out[field] = cur
			continue
		}
		if isArray(cur) || isArray(orig) {
			if !arraysEqualUnordered(cur, orig) {
				out[field] = cur
			}
			continue
		}
		if !scalarEqual(cur, orig) {
			out[field] = cur
		}
	}
	return out
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// scalarEqual compares two non-array values. Values of the same comparable
// type compare directly; everything else compares by serialized form, which
// covers numeric type mismatches from JSON round trips and uncomparable
// kinds like nested objects, where interface == would panic.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t == reflect.TypeOf(b) && t.Comparable() {
		return a == b
	}
	return serialize(a) == serialize(b)
}

// arraysEqualUnordered compares two array values element-wise after sorting
// both sides by serialized form.
func arraysEqualUnordered(a, b any) bool {
	as := sortedSerialized(a)
	bs := sortedSerialized(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// sortedSerialized returns the serialized elements of an array value in
// sorted order. Non-array values (including nil) serialize to a single
// element so a scalar-vs-array mismatch always registers as a change.
func sortedSerialized(v any) []string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []string{serialize(v)}
	}
	out := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = serialize(rv.Index(i).Interface())
	}
	sort.Strings(out)
	return out
}

func serialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
