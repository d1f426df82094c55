package param

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"github.com/aretw0/redo/pkg/domain"
)

// SelfName is the parameter name used by Self.
const SelfName = "Self"

// Source tracks the identity of a piece of code or text. Its snapshot is the
// hex SHA-256 digest of the referenced text, recomputed on demand.
type Source struct {
	name     string
	ref      string
	load     func() (string, error)
	logValue any
}

// NewSourceText tracks a literal text, e.g. a command line.
func NewSourceText(name, text string) *Source {
	s := &Source{name: name, ref: text, load: func() (string, error) { return text, nil }}
	s.logValue = Digest(text)
	return s
}

// NewSourceFile tracks the content of a file.
func NewSourceFile(name, path string) (*Source, error) {
	path = filepath.Clean(path)
	return newSource(name, path, func() (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

// NewSourceOf tracks the Go declaration of v's type together with all of its
// methods. The declaration is located through the runtime symbol table, so the
// package sources must be readable where the binary runs.
func NewSourceOf(name string, v any) (*Source, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("%w: source of nil value", domain.ErrDependencyUnavailable)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return newSource(name, t.String(), func() (string, error) {
		return typeSource(t)
	})
}

// Self tracks the source of the owning task definition, so that any change of
// its code forces a rerun.
func Self(v any) (*Source, error) {
	return NewSourceOf(SelfName, v)
}

func newSource(name, ref string, load func() (string, error)) (*Source, error) {
	s := &Source{name: name, ref: ref, load: load}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) Name() string  { return s.name }
func (s *Source) Value() any    { return s.ref }
func (s *Source) LogValue() any { return s.logValue }

// Changed recomputes the digest and compares it to old.
func (s *Source) Changed(old any) (bool, error) {
	current, err := s.digest()
	if err != nil {
		return false, err
	}
	return !Equal(current, old), nil
}

// Refresh stores a new digest.
func (s *Source) Refresh() error {
	current, err := s.digest()
	if err != nil {
		return err
	}
	s.logValue = current
	return nil
}

func (s *Source) digest() (string, error) {
	text, err := s.load()
	if err != nil {
		return "", fmt.Errorf("%w: source %q: %v", domain.ErrDependencyUnavailable, s.ref, err)
	}
	return Digest(text), nil
}

// Digest returns the hex SHA-256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// typeSource prints the type declaration and every method declared on it,
// in file order, from all files of the declaring package directory.
func typeSource(t reflect.Type) (string, error) {
	typeName := t.Name()
	if i := strings.IndexByte(typeName, '['); i >= 0 {
		typeName = typeName[:i]
	}
	if typeName == "" {
		return "", fmt.Errorf("type %s is unnamed", t)
	}

	file, err := declaringFile(t)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(file)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	fset := token.NewFileSet()
	main, err := parser.ParseFile(fset, file, nil, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var buf bytes.Buffer
	for _, n := range names {
		f, err := parser.ParseFile(fset, filepath.Join(dir, n), nil, parser.SkipObjectResolution)
		if err != nil {
			return "", err
		}
		if f.Name.Name != main.Name.Name {
			continue
		}
		for _, decl := range f.Decls {
			node := matchDecl(decl, typeName)
			if node == nil {
				continue
			}
			if err := format.Node(&buf, fset, node); err != nil {
				return "", err
			}
			buf.WriteByte('\n')
		}
	}
	if buf.Len() == 0 {
		return "", fmt.Errorf("declaration of %s not found in %s", t, dir)
	}
	return buf.String(), nil
}

func matchDecl(decl ast.Decl, typeName string) ast.Node {
	switch d := decl.(type) {
	case *ast.GenDecl:
		if d.Tok != token.TYPE {
			return nil
		}
		for _, spec := range d.Specs {
			if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == typeName {
				return ts
			}
		}
	case *ast.FuncDecl:
		if d.Recv == nil || len(d.Recv.List) == 0 {
			return nil
		}
		if receiverName(d.Recv.List[0].Type) == typeName {
			return d
		}
	}
	return nil
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	}
	return ""
}

// declaringFile finds a source file that declares a method of t.
func declaringFile(t reflect.Type) (string, error) {
	for _, candidate := range []reflect.Type{t, reflect.PointerTo(t)} {
		for i := 0; i < candidate.NumMethod(); i++ {
			m := candidate.Method(i)
			fn := runtime.FuncForPC(m.Func.Pointer())
			if fn == nil {
				continue
			}
			file, _ := fn.FileLine(fn.Entry())
			if file == "" || strings.HasPrefix(file, "<") {
				continue
			}
			if !strings.HasSuffix(fn.Name(), "."+m.Name) {
				continue
			}
			if _, err := os.Stat(file); err != nil {
				continue
			}
			return file, nil
		}
	}
	return "", fmt.Errorf("no readable method source for %s", t)
}
