package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists entries in access_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Append inserts one row.
func (r *PGRepository) Append(ctx context.Context, e Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		encoded, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = encoded
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO access_logs (actor_id, staff_id, action, occurred_at, ip_address, user_agent, details)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		e.ActorID, e.SubjectID, string(e.Action), e.At, e.IP, e.UserAgent, details)
	return err
}

const selectEntries = `SELECT id, actor_id, staff_id, action, occurred_at,
       COALESCE(ip_address, ''), COALESCE(user_agent, ''), details
FROM access_logs`

// ListByActor returns entries by actor, newest first.
func (r *PGRepository) ListByActor(ctx context.Context, actorID int64, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntries+` WHERE actor_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListBySubject returns entries about a staff record, newest first.
func (r *PGRepository) ListBySubject(ctx context.Context, subjectID int64, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntries+` WHERE staff_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListRecent returns the latest entries.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntries+` ORDER BY occurred_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.SubjectID, &action, &e.At, &e.IP, &e.UserAgent, &details); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// MemoryRepository keeps entries in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepository) ListByActor(_ context.Context, actorID int64, limit int) ([]Entry, error) {
	return r.list(limit, func(e Entry) bool { return e.ActorID != nil && *e.ActorID == actorID }), nil
}

func (r *MemoryRepository) ListBySubject(_ context.Context, subjectID int64, limit int) ([]Entry, error) {
	return r.list(limit, func(e Entry) bool { return e.SubjectID != nil && *e.SubjectID == subjectID }), nil
}

func (r *MemoryRepository) ListRecent(_ context.Context, limit int) ([]Entry, error) {
	return r.list(limit, func(Entry) bool { return true }), nil
}

// Len returns the number of stored entries.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *MemoryRepository) list(limit int, keep func(Entry) bool) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID > out[j].ID
		}
		return out[i].At.After(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var (
	_ Writer = (*PGRepository)(nil)
	_ Reader = (*PGRepository)(nil)
	_ Writer = (*MemoryRepository)(nil)
	_ Reader = (*MemoryRepository)(nil)
)
