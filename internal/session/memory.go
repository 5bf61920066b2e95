package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps sessions in process memory. It backs tests and
// single-node development runs.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.TokenHash]; exists {
		return ErrTokenCollision
	}
	r.sessions[s.TokenHash] = s
	return nil
}

func (r *MemoryRepository) FindByTokenHash(_ context.Context, hash string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, hash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	if !ok || s.LiveAt(now) {
		return false, nil
	}
	delete(r.sessions, hash)
	return true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[hash]; !ok {
		return false, nil
	}
	delete(r.sessions, hash)
	return true, nil
}

func (r *MemoryRepository) DeleteByIdentity(_ context.Context, identityID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.sessions {
		if s.IdentityID == identityID {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteAllExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.sessions {
		if !s.LiveAt(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, live or not.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

var _ Repository = (*MemoryRepository)(nil)
