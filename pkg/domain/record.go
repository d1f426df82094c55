package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Index is the position path of a leaf through the tree at the time its
// record was produced. It is only used for display and flattened keys; the
// runner reconciles purely by structural position.
type Index []int

// Child returns a new index extended by position i.
func (idx Index) Child(i int) Index {
	child := make(Index, len(idx), len(idx)+1)
	copy(child, idx)
	return append(child, i)
}

// String renders the index in bracket style, e.g. "[1][0][3]".
func (idx Index) String() string {
	var b strings.Builder
	for _, i := range idx {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	return b.String()
}

// Underscore renders the index as "1_0_3".
func (idx Index) Underscore() string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "_")
}

// Record is the persisted outcome of one task execution.
type Record struct {
	Index     Index          `json:"index"`
	TaskClass string         `json:"task_class"`
	Inputs    map[string]any `json:"inputs"`
	Outputs   map[string]any `json:"outputs"`
	Info      map[string]any `json:"info"`

	// LastRunSuccess is nil when the task never ran at this position.
	LastRunSuccess *bool `json:"last_run_success"`
}

// NewRecord returns an empty record with an unknown run outcome.
func NewRecord(index Index, taskClass string) *Record {
	return &Record{
		Index:     slices.Clone(index),
		TaskClass: taskClass,
		Inputs:    map[string]any{},
		Outputs:   map[string]any{},
		Info:      map[string]any{},
	}
}

// Succeeded reports whether the last run was known to be successful.
func (r *Record) Succeeded() bool {
	return r != nil && r.LastRunSuccess != nil && *r.LastRunSuccess
}

// SetSuccess stores the outcome of a run.
func (r *Record) SetSuccess(ok bool) {
	r.LastRunSuccess = &ok
}

// Clone returns a copy whose maps and index can be modified without touching r.
// Snapshot values themselves are treated as immutable and shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Index:     slices.Clone(r.Index),
		TaskClass: r.TaskClass,
		Inputs:    cloneMap(r.Inputs),
		Outputs:   cloneMap(r.Outputs),
		Info:      cloneMap(r.Info),
	}
	if r.LastRunSuccess != nil {
		c.SetSuccess(*r.LastRunSuccess)
	}
	return c
}

// Equal reports full structural equality. Snapshot maps are compared in their
// canonical serialized form so that a record survives a persistence round trip.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !slices.Equal(r.Index, other.Index) || r.TaskClass != other.TaskClass {
		return false
	}
	if (r.LastRunSuccess == nil) != (other.LastRunSuccess == nil) {
		return false
	}
	if r.LastRunSuccess != nil && *r.LastRunSuccess != *other.LastRunSuccess {
		return false
	}
	return SnapshotEqual(orEmpty(r.Inputs), orEmpty(other.Inputs)) &&
		SnapshotEqual(orEmpty(r.Outputs), orEmpty(other.Outputs)) &&
		SnapshotEqual(orEmpty(r.Info), orEmpty(other.Info))
}

func (r *Record) String() string {
	success := "unknown"
	if r.LastRunSuccess != nil {
		success = strconv.FormatBool(*r.LastRunSuccess)
	}
	return fmt.Sprintf("Record(index=%s, task_class=%s, last_run_success=%s)", r.Index, r.TaskClass, success)
}

// Entry is one position of a log tree: either a Record or a nested Log.
type Entry struct {
	Record *Record
	Group  Log
}

// Leaf wraps a record into an entry.
func Leaf(r *Record) Entry {
	return Entry{Record: r}
}

// Nest wraps a sequence of entries into a group entry.
func Nest(entries ...Entry) Entry {
	if entries == nil {
		entries = Log{}
	}
	return Entry{Group: entries}
}

// IsGroup reports whether the entry is a nested sequence.
func (e Entry) IsGroup() bool {
	return e.Record == nil
}

// MarshalJSON encodes a record as an object and a group as an array.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Record != nil {
		return json.Marshal(e.Record)
	}
	return e.Group.MarshalJSON()
}

// UnmarshalJSON decodes either shape. Numbers inside snapshots are kept as json.Number.
func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var group Log
		if err := json.Unmarshal(trimmed, &group); err != nil {
			return err
		}
		*e = Nest(group...)
		return nil
	}
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	if rec.Inputs == nil {
		rec.Inputs = map[string]any{}
	}
	if rec.Outputs == nil {
		rec.Outputs = map[string]any{}
	}
	if rec.Info == nil {
		rec.Info = map[string]any{}
	}
	*e = Leaf(&rec)
	return nil
}

// Log is an ordered sequence of entries mirroring a task tree.
type Log []Entry

// MarshalJSON always encodes an array, also for a nil log.
func (l Log) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Entry(l))
}

// DecodeLog parses a persisted log tree.
func DecodeLog(data []byte) (Log, error) {
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if l == nil {
		l = Log{}
	}
	return l, nil
}

// EncodeLog renders a log tree as indented JSON.
func EncodeLog(l Log) ([]byte, error) {
	return json.MarshalIndent(l, "", "    ")
}

// Walk visits every record depth-first, left to right.
func (l Log) Walk(fn func(*Record)) {
	for _, e := range l {
		if e.IsGroup() {
			e.Group.Walk(fn)
			continue
		}
		fn(e.Record)
	}
}

// Leaves returns every record in depth-first, left-to-right order.
func (l Log) Leaves() []*Record {
	var out []*Record
	l.Walk(func(r *Record) { out = append(out, r) })
	return out
}

// Succeeded reports whether every leaf ended with a successful run.
func (l Log) Succeeded() bool {
	ok := true
	l.Walk(func(r *Record) { ok = ok && r.Succeeded() })
	return ok
}

// Equal compares two log trees structurally.
func (l Log) Equal(other Log) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		a, b := l[i], other[i]
		if a.IsGroup() != b.IsGroup() {
			return false
		}
		if a.IsGroup() {
			if !a.Group.Equal(b.Group) {
				return false
			}
			continue
		}
		if !a.Record.Equal(b.Record) {
			return false
		}
	}
	return true
}

// SimpleTree maps every record through format and keeps the nesting.
// A nil format renders the task class.
func (l Log) SimpleTree(format func(*Record) any) []any {
	if format == nil {
		format = func(r *Record) any { return r.TaskClass }
	}
	out := make([]any, 0, len(l))
	for _, e := range l {
		if e.IsGroup() {
			out = append(out, e.Group.SimpleTree(format))
			continue
		}
		out = append(out, format(e.Record))
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
