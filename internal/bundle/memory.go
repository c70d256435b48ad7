package bundle

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used by tests and local runs
// without a database. Records are deep-copied on the way in and out.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Bundle
	Now    func() time.Time
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]Bundle)}
}

func (m *MemoryRepository) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func clone(b Bundle) Bundle {
	raw, err := json.Marshal(b)
	if err != nil {
		return b
	}
	var out Bundle
	if err := json.Unmarshal(raw, &out); err != nil {
		return b
	}
	return out
}

func (m *MemoryRepository) Create(_ context.Context, b *Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[int64]Bundle)
	}
	m.nextID++
	b.ID = m.nextID
	b.Version = 1
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	m.rows[b.ID] = clone(*b)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, shop string, id int64) (Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.ShopDomain != shop {
		return Bundle{}, ErrNotFound
	}
	return clone(b), nil
}

func (m *MemoryRepository) GetByProductID(_ context.Context, shop, productID string) (Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.sorted() {
		if b.ShopDomain == shop && b.ProductID == productID {
			return clone(b), nil
		}
	}
	return Bundle{}, ErrNotFound
}

func (m *MemoryRepository) List(_ context.Context, shop string, limit, offset int) ([]Bundle, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Bundle
	rows := m.sorted()
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ShopDomain == shop {
			all = append(all, clone(rows[i]))
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []Bundle{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *MemoryRepository) ListContainingProduct(_ context.Context, shop, productID string) ([]Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bundle
	for _, b := range m.sorted() {
		if b.ShopDomain == shop && b.Kind == KindFixed && b.ContainsProduct(productID) {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (m *MemoryRepository) Update(_ context.Context, b Bundle, expectedVersion int64) (Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[b.ID]
	if !ok || cur.ShopDomain != b.ShopDomain {
		return Bundle{}, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return Bundle{}, ErrVersionConflict
	}
	b.Version = cur.Version + 1
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = m.now()
	b.ProductID = cur.ProductID
	b.Kind = cur.Kind
	m.rows[b.ID] = clone(b)
	return clone(b), nil
}

func (m *MemoryRepository) Delete(_ context.Context, shop string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.ShopDomain != shop {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryRepository) DeleteByProductID(_ context.Context, shop, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.rows {
		if b.ShopDomain == shop && b.ProductID == productID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) sorted() []Bundle {
	out := make([]Bundle, 0, len(m.rows))
	for _, b := range m.rows {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
