package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the shop_sessions table.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (p *pgStore) Get(ctx context.Context, shop string) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx, `
		SELECT id, shop, access_token, scope, onboarded, created_at
		FROM shop_sessions WHERE shop = $1`, shop).
		Scan(&s.ID, &s.Shop, &s.AccessToken, &s.Scope, &s.Onboarded, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: get %s: %w", shop, err)
	}
	return s, nil
}

func (p *pgStore) Upsert(ctx context.Context, s Session) (Session, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO shop_sessions (id, shop, access_token, scope, onboarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shop) DO UPDATE
		SET access_token = EXCLUDED.access_token, scope = EXCLUDED.scope
		RETURNING id, shop, access_token, scope, onboarded, created_at`,
		s.ID, s.Shop, s.AccessToken, s.Scope, s.Onboarded, s.CreatedAt).
		Scan(&s.ID, &s.Shop, &s.AccessToken, &s.Scope, &s.Onboarded, &s.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("session: upsert %s: %w", s.Shop, err)
	}
	return s, nil
}

func (p *pgStore) SetOnboarded(ctx context.Context, shop string, onboarded bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE shop_sessions SET onboarded = $2 WHERE shop = $1`, shop, onboarded)
	if err != nil {
		return fmt.Errorf("session: set onboarded %s: %w", shop, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) Delete(ctx context.Context, shop string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM shop_sessions WHERE shop = $1`, shop)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", shop, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryStore is an in-process Store used by tests and the single-shop dev mode.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, shop string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[shop]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Upsert(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.Shop]; ok {
		existing.AccessToken = s.AccessToken
		existing.Scope = s.Scope
		s = existing
	}
	m.sessions[s.Shop] = s
	return s, nil
}

func (m *MemoryStore) SetOnboarded(_ context.Context, shop string, onboarded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[shop]
	if !ok {
		return ErrNotFound
	}
	s.Onboarded = onboarded
	m.sessions[shop] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[shop]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, shop)
	return nil
}
