package flat

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// WriteJSON writes the view as one JSON object keyed by row key. Rows and
// columns keep the view's order.
func (v *View) WriteJSON(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return err
		}
		buf.WriteString(":{")
		for j, c := range v.presentCols(k) {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, c); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(&buf, v.rows[k][c]); err != nil {
				return fmt.Errorf("row %s column %q: %w", k, c, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// WriteYAML writes the view as a YAML mapping keyed by row key.
func (v *View) WriteYAML(w io.Writer) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range v.keys {
		key := &yaml.Node{}
		if err := key.Encode(k); err != nil {
			return err
		}
		row := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range v.presentCols(k) {
			col := &yaml.Node{}
			if err := col.Encode(c); err != nil {
				return err
			}
			val := &yaml.Node{}
			plain, err := plainValue(v.rows[k][c])
			if err != nil {
				return fmt.Errorf("row %s column %q: %w", k, c, err)
			}
			if err := val.Encode(plain); err != nil {
				return fmt.Errorf("row %s column %q: %w", k, c, err)
			}
			row.Content = append(row.Content, col, val)
		}
		root.Content = append(root.Content, key, row)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one line per row: the row key followed by every selected
// column. Scalars are written as text, composite values as JSON.
func (v *View) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"key"}, v.cols...)); err != nil {
		return err
	}
	for _, k := range v.keys {
		record := []string{k}
		for _, c := range v.cols {
			cell, err := csvCell(v.rows[k][c])
			if err != nil {
				return fmt.Errorf("row %s column %q: %w", k, c, err)
			}
			record = append(record, cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// presentCols returns the selected columns that row k actually has.
func (v *View) presentCols(k string) []string {
	row := v.rows[k]
	cols := make([]string, 0, len(v.cols))
	for _, c := range v.cols {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func csvCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// plainValue converts a snapshot into maps, slices and scalars, turning
// json.Number into int64 or float64 so that YAML does not quote numbers.
func plainValue(v any) (any, error) {
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
	return unNumber(generic), nil
}

func unNumber(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = unNumber(val)
		}
	case []any:
		for i, val := range t {
			t[i] = unNumber(val)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}
