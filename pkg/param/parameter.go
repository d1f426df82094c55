package param

import (
	"github.com/aretw0/redo/pkg/domain"
)

// Parameter is a trackable value used as a task dependency. It is compared
// through its serializable snapshot (log value), never through its runtime value.
type Parameter interface {
	// Name identifies the parameter inside its input or output set.
	Name() string
	// Value is the runtime value, e.g. a file path.
	Value() any
	// LogValue is the snapshot persisted in the log.
	LogValue() any
	// Changed computes a fresh snapshot and reports whether it differs from old.
	Changed(old any) (bool, error)
	// Refresh recomputes the snapshot from the current state.
	Refresh() error
}

// Equal compares two snapshots after normalizing them to canonical JSON.
func Equal(a, b any) bool {
	return domain.SnapshotEqual(a, b)
}

// Canonical returns the normalized serialized form of a snapshot.
func Canonical(v any) ([]byte, error) {
	return domain.Canonical(v)
}

// Modified reports whether p changed since its snapshot was last taken.
func Modified(p Parameter) (bool, error) {
	return p.Changed(p.LogValue())
}

// Value is a plain parameter whose snapshot is the value itself,
// unless an explicit log value was given.
type Value struct {
	name     string
	value    any
	logValue any
}

// New creates a plain parameter.
func New(name string, value any) *Value {
	return &Value{name: name, value: value, logValue: value}
}

// NewWithLog creates a plain parameter with an explicit snapshot.
func NewWithLog(name string, value, logValue any) *Value {
	return &Value{name: name, value: value, logValue: logValue}
}

func (v *Value) Name() string  { return v.name }
func (v *Value) Value() any    { return v.value }
func (v *Value) LogValue() any { return v.logValue }

// Changed compares the stored snapshot, which is also the current state.
func (v *Value) Changed(old any) (bool, error) {
	return !Equal(v.logValue, old), nil
}

// Refresh is a no-op: a plain value has no external state.
func (v *Value) Refresh() error { return nil }
