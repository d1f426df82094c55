package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/redo/internal/presentation/graph"
	"github.com/aretw0/redo/internal/presentation/tui"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/flat"
	"github.com/aretw0/redo/pkg/lease"
)

// ShowLog writes the stored log as JSON, exactly as persisted.
func ShowLog(ctx context.Context, b *Backend, name string, w io.Writer) error {
	log, err := b.Store.Load(ctx, name)
	if err != nil {
		return err
	}
	data, err := domain.EncodeLog(log)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// PrintTree draws the stored log as a tree.
func PrintTree(ctx context.Context, b *Backend, name string, w io.Writer, color bool) error {
	log, err := b.Store.Load(ctx, name)
	if err != nil {
		return err
	}
	tui.NewTreePrinter(w, color).Print(name, log)
	return nil
}

// WriteGraph writes the stored log as a Mermaid flowchart.
func WriteGraph(ctx context.Context, b *Backend, name string, w io.Writer) error {
	log, err := b.Store.Load(ctx, name)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, graph.GenerateMermaid(name, log))
	return err
}

// WriteFlat writes the flattened view of the stored log.
func WriteFlat(ctx context.Context, b *Backend, name string, q flat.Query, style flat.KeyStyle, format string, w io.Writer) error {
	log, err := b.Store.Load(ctx, name)
	if err != nil {
		return err
	}
	var opts []flat.Option
	if style != nil {
		opts = append(opts, flat.WithKeyStyle(style))
	}
	view, err := q.Apply(flat.New(log, opts...))
	if err != nil {
		return err
	}
	return view.Write(w, format)
}

// ListLogs prints one stored workflow name per line.
func ListLogs(ctx context.Context, b *Backend, w io.Writer) error {
	names, err := b.Store.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLog deletes a stored log under the workflow lock, so that a running
// workflow never sees its log vanish halfway.
func RemoveLog(ctx context.Context, b *Backend, name string, opts ...lease.Option) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if b.Locker != nil {
		opts = append(opts, lease.WithLocker(b.Locker))
	}
	return lease.NewManager(b.Store, opts...).Delete(ctx, name)
}
