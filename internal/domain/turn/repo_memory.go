package turn

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type repoMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

// NewRepoMemory returns a process-local repository for running without a
// database.
func NewRepoMemory() Repository {
	return &repoMemory{records: make(map[uuid.UUID]*Record)}
}

func (r *repoMemory) Create(_ context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	r.mu.Lock()
	r.records[rec.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *repoMemory) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *repoMemory) UpdateReview(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Pending() {
		return ErrNotPending
	}
	cur.ReviewStatus = rec.ReviewStatus
	cur.ReviewedBy = rec.ReviewedBy
	cur.ReviewNote = rec.ReviewNote
	cur.ReviewedAt = rec.ReviewedAt
	return nil
}

func (r *repoMemory) ListByUser(_ context.Context, userID string, limit, offset int) ([]*Record, int, error) {
	items := r.filter(func(rec *Record) bool { return rec.UserID == userID })
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return page(items, limit, offset), len(items), nil
}

func (r *repoMemory) ListPendingReview(_ context.Context, limit, offset int) ([]*Record, int, error) {
	items := r.filter((*Record).Pending)
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return page(items, limit, offset), len(items), nil
}

func (r *repoMemory) filter(keep func(*Record) bool) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

func page(items []*Record, limit, offset int) []*Record {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
