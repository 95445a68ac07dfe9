package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Provider. Records live until the process exits.
// The zero value is ready to use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string // namespace -> path -> base64
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Namespace(_ context.Context, name string, opts Options) (Namespace, error) {
	resolved, err := ResolveName(name, opts)
	if err != nil {
		return nil, err
	}
	return &memNamespace{m: m, name: resolved}, nil
}

// Len returns the number of records stored in a resolved namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[namespace])
}

type memNamespace struct {
	m    *Memory
	name string
}

func (n *memNamespace) Read(ctx context.Context, path string) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.m.mu.RLock()
	defer n.m.mu.RUnlock()
	v, ok := n.m.data[n.name][path]
	if !ok {
		return nil, nil
	}
	return &Record{Path: path, DataBase64: v}, nil
}

func (n *memNamespace) Save(ctx context.Context, rec Record) error {
	if rec.Path == "" {
		return ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.m.mu.Lock()
	defer n.m.mu.Unlock()
	if n.m.data == nil {
		n.m.data = make(map[string]map[string]string)
	}
	ns, ok := n.m.data[n.name]
	if !ok {
		ns = make(map[string]string)
		n.m.data[n.name] = ns
	}
	ns[rec.Path] = rec.DataBase64
	return nil
}
