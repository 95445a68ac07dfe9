package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hazyhaar/pagetrack/horosafe"
)

// Dir is a Provider storing one file per record under
// <root>/<namespace>/<path>. The file body is the base64 payload.
type Dir struct {
	root string
}

// NewDir creates a directory-backed provider rooted at root.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("kvstore: dir root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: dir mkdir: %w", err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Namespace(_ context.Context, name string, opts Options) (Namespace, error) {
	resolved, err := ResolveName(name, opts)
	if err != nil {
		return nil, err
	}
	base, err := horosafe.SafePath(d.root, resolved)
	if err != nil {
		return nil, fmt.Errorf("kvstore: namespace %q: %w", resolved, err)
	}
	return &dirNamespace{base: base}, nil
}

type dirNamespace struct {
	base string
}

func (n *dirNamespace) file(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	return horosafe.SafePath(n.base, path)
}

func (n *dirNamespace) Read(ctx context.Context, path string) (*Record, error) {
	name, err := n.file(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: dir read %s: %w", path, err)
	}
	return &Record{Path: path, DataBase64: string(data)}, nil
}

// Save writes to a temp file and renames it over the target so readers never
// observe a partial record.
func (n *dirNamespace) Save(ctx context.Context, rec Record) error {
	name, err := n.file(rec.Path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("kvstore: dir mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".kv-*")
	if err != nil {
		return fmt.Errorf("kvstore: dir temp: %w", err)
	}
	if _, err := tmp.WriteString(rec.DataBase64); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("kvstore: dir write %s: %w", rec.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("kvstore: dir close %s: %w", rec.Path, err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("kvstore: dir rename %s: %w", rec.Path, err)
	}
	return nil
}
