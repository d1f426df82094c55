package flat

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// ErrInvalidQuery is returned for an unknown format or a malformed property column.
var ErrInvalidQuery = errors.New("invalid flat query")

// Write encodes the view in the named format.
func (v *View) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return v.WriteJSON(w)
	case FormatYAML, "yml":
		return v.WriteYAML(w)
	case FormatCSV:
		return v.WriteCSV(w)
	}
	return fmt.Errorf("%w: unknown format %q", ErrInvalidQuery, format)
}

// Query is a textual selection over a view, as given on the command line or
// in a URL.
type Query struct {
	// Keys restricts the rows; empty keeps all of them.
	Keys []string
	// Cols restricts the columns; empty keeps the defaults.
	Cols []string
	// Props adds "<prop>:<name>" columns, e.g. "inputs:src".
	Props       []string
	IncludeHash bool
}

// Apply returns the view selected by q.
func (q Query) Apply(v *View) (*View, error) {
	if len(q.Keys) > 0 {
		v = v.Select(q.Keys...)
	}
	if len(q.Cols) > 0 {
		v = v.Cols(q.Cols...)
	}
	for _, p := range q.Props {
		prop, sub, ok := strings.Cut(p, ":")
		if !ok || prop == "" || sub == "" {
			return nil, fmt.Errorf("%w: property column %q, want <prop>:<name>", ErrInvalidQuery, p)
		}
		switch prop {
		case ColInputs, ColOutputs, ColInfo:
		default:
			return nil, fmt.Errorf("%w: unknown property %q", ErrInvalidQuery, prop)
		}
		v = v.ColFromProp(prop, sub, q.IncludeHash)
	}
	return v, nil
}
