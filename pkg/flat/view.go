package flat

import (
	"maps"
	"slices"

	"github.com/aretw0/redo/pkg/domain"
)

// Columns of a freshly flattened row, in display order.
const (
	ColIndex          = "index"
	ColTaskClass      = "task_class"
	ColInputs         = "inputs"
	ColOutputs        = "outputs"
	ColInfo           = "info"
	ColLastRunSuccess = "last_run_success"
)

// DefaultColumns lists every column of a record.
var DefaultColumns = []string{ColIndex, ColTaskClass, ColInputs, ColOutputs, ColInfo, ColLastRunSuccess}

// Row is the field record of one leaf.
type Row map[string]any

// KeyStyle renders a leaf index into its row key.
type KeyStyle func(domain.Index) string

var (
	// Brackets renders keys as "[1][0]".
	Brackets KeyStyle = domain.Index.String
	// Underscore renders keys as "1_0".
	Underscore KeyStyle = domain.Index.Underscore
)

// View is a flat, addressable rendition of a log tree meant for analysis.
// Every leaf appears exactly once, in depth-first left-to-right order.
//
// Views are immutable: Select, Cols and ColFromProp return new views that
// still carry the full rows, so a column selection can be changed later.
type View struct {
	keys    []string
	cols    []string
	rows    map[string]Row
	initial map[string]Row
}

// Option configures New.
type Option func(*options)

type options struct {
	style KeyStyle
}

// WithKeyStyle chooses how index paths become row keys.
func WithKeyStyle(style KeyStyle) Option {
	return func(o *options) {
		o.style = style
	}
}

// New flattens log. Rows are keyed by the position of each leaf in the log,
// which matches the stored index for every log written by the runner, so
// every leaf gets its own row even when stored indexes repeat.
func New(log domain.Log, opts ...Option) *View {
	o := options{style: Brackets}
	for _, opt := range opts {
		opt(&o)
	}

	v := &View{
		cols: slices.Clone(DefaultColumns),
		rows: map[string]Row{},
	}
	v.add(log, nil, o.style)
	v.initial = v.rows
	return v
}

func (v *View) add(log domain.Log, at domain.Index, style KeyStyle) {
	for i, e := range log {
		pos := at.Child(i)
		if e.IsGroup() {
			v.add(e.Group, pos, style)
			continue
		}
		key := style(pos)
		v.keys = append(v.keys, key)
		v.rows[key] = rowOf(e.Record)
	}
}

func rowOf(r *domain.Record) Row {
	var success any
	if r.LastRunSuccess != nil {
		success = *r.LastRunSuccess
	}
	index := []int(r.Index)
	if index == nil {
		index = []int{}
	}
	return Row{
		ColIndex:          index,
		ColTaskClass:      r.TaskClass,
		ColInputs:         r.Inputs,
		ColOutputs:        r.Outputs,
		ColInfo:           r.Info,
		ColLastRunSuccess: success,
	}
}

// Keys returns the row keys in traversal order.
func (v *View) Keys() []string { return slices.Clone(v.keys) }

// Columns returns the selected columns in order.
func (v *View) Columns() []string { return slices.Clone(v.cols) }

// Len returns the number of rows.
func (v *View) Len() int { return len(v.keys) }

// Row returns the row stored under key.
func (v *View) Row(key string) (Row, bool) {
	r, ok := v.rows[key]
	if !ok {
		return nil, false
	}
	return maps.Clone(r), true
}

// Select keeps only the given rows, in the given order. Unknown keys are skipped.
func (v *View) Select(keys ...string) *View {
	out := v.derive()
	for _, k := range keys {
		if r, ok := v.rows[k]; ok && !slices.Contains(out.keys, k) {
			out.keys = append(out.keys, k)
			out.rows[k] = maps.Clone(r)
		}
	}
	return out
}

// Cols keeps only the named columns. Values always come from the full rows,
// so columns dropped by an earlier selection can be brought back.
func (v *View) Cols(cols ...string) *View {
	out := v.derive()
	out.cols = slices.Clone(cols)
	for _, k := range v.keys {
		full := v.initial[k]
		row := Row{}
		for _, c := range cols {
			if val, ok := full[c]; ok {
				row[c] = val
			}
		}
		out.keys = append(out.keys, k)
		out.rows[k] = row
	}
	return out
}

// ColFromProp adds the column "<prop>_<sub>" holding the snapshot of parameter
// sub taken from the prop mapping (inputs, outputs or info). Snapshots are
// treated as lists; unless includeHash is set only the first element is kept,
// which turns a file snapshot into its path. Rows without that parameter are
// left alone.
func (v *View) ColFromProp(prop, sub string, includeHash bool) *View {
	name := prop + "_" + sub
	out := v.derive()
	out.cols = slices.Clone(v.cols)
	if !slices.Contains(out.cols, name) {
		out.cols = append(out.cols, name)
	}
	for _, k := range v.keys {
		row := maps.Clone(v.rows[k])
		if m, ok := v.initial[k][prop].(map[string]any); ok {
			if snap, ok := m[sub]; ok {
				list := asList(snap)
				if includeHash {
					row[name] = list
				} else if len(list) > 0 {
					row[name] = list[0]
				}
			}
		}
		out.keys = append(out.keys, k)
		out.rows[k] = row
	}
	return out
}

func (v *View) derive() *View {
	return &View{
		cols:    slices.Clone(v.cols),
		rows:    map[string]Row{},
		initial: v.initial,
	}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}
