package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/syncledger/backend/internal/errors"
)

// MemProvider is an in-memory Provider used by property and engine tests
// so they can exercise the sync round without a network dependency.
type MemProvider struct {
	mu    sync.Mutex
	blobs map[string][]byte
	mtime map[string]time.Time
	dirs  map[string]bool
	// Unreachable, when set, makes every call fail as if the remote were
	// down, so callers can exercise the "local only" error path.
	Unreachable bool
}

// NewMemProvider returns an empty in-memory provider.
func NewMemProvider() *MemProvider {
	return &MemProvider{
		blobs: make(map[string][]byte),
		mtime: make(map[string]time.Time),
		dirs:  make(map[string]bool),
	}
}

var _ Provider = (*MemProvider)(nil)

func (m *MemProvider) checkReachable() error {
	if m.Unreachable {
		return apperrors.New(apperrors.ErrProviderUnreachable, "mem provider is simulating unreachability")
	}
	return nil
}

func (m *MemProvider) TestConnection(ctx context.Context) (bool, error) {
	if err := m.checkReachable(); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemProvider) List(ctx context.Context, path string) ([]Item, error) {
	if err := m.checkReachable(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []Item
	for p, data := range m.blobs {
		items = append(items, Item{Name: p, Path: p, Size: int64(len(data)), RemoteModified: m.mtime[p]})
	}
	return items, nil
}

func (m *MemProvider) Upload(ctx context.Context, path string, data []byte) error {
	if err := m.checkReachable(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[path] = cp
	m.mtime[path] = time.Now().UTC()
	return nil
}

func (m *MemProvider) Download(ctx context.Context, path string) ([]byte, error) {
	if err := m.checkReachable(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[path]
	if !ok {
		return nil, apperrors.New(apperrors.ErrRecordNotFound, fmt.Sprintf("no blob at %q", path))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemProvider) Delete(ctx context.Context, path string) error {
	if err := m.checkReachable(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, path)
	delete(m.mtime, path)
	return nil
}

func (m *MemProvider) CreateDirectory(ctx context.Context, path string) error {
	if err := m.checkReachable(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path] = true
	return nil
}

func (m *MemProvider) Metadata(ctx context.Context, path string) (Item, error) {
	if err := m.checkReachable(); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[path]
	if !ok {
		return Item{}, apperrors.New(apperrors.ErrRecordNotFound, fmt.Sprintf("no blob at %q", path))
	}
	return Item{Name: path, Path: path, Size: int64(len(data)), RemoteModified: m.mtime[path]}, nil
}
