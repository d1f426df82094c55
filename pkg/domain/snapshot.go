package domain

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
	"strconv"
)

// Canonical renders a snapshot in the serialized shape it has after a
// persistence round trip: every sequence type becomes a JSON array, map keys
// are sorted and numbers are written in one normal form.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeNumbers(generic))
}

// SnapshotEqual compares two snapshots in canonical form. Values that cannot be
// serialized fall back to deep equality.
func SnapshotEqual(a, b any) bool {
	ca, errA := Canonical(a)
	cb, errB := Canonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ca, cb)
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		return normalizeNumber(t)
	}
	return v
}

// 1, 1.0 and 1e0 all normalize to "1". Integral values stay exact at any
// size; only fractional ones go through float64.
func normalizeNumber(n json.Number) json.Number {
	if i, err := n.Int64(); err == nil {
		return json.Number(strconv.FormatInt(i, 10))
	}
	if r, ok := new(big.Rat).SetString(n.String()); ok && r.IsInt() {
		return json.Number(r.Num().String())
	}
	f, err := n.Float64()
	if err != nil {
		return n
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}
