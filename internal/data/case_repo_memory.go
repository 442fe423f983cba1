package data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

// MemoryCaseRepo is an in-memory case session store, the default when no
// Redis instance is configured. Sessions survive only for the lifetime
// of the process.
type MemoryCaseRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.CaseSession
}

// NewMemoryCaseRepo creates an empty in-memory store.
func NewMemoryCaseRepo() *MemoryCaseRepo {
	return &MemoryCaseRepo{sessions: make(map[string]*model.CaseSession)}
}

// Save stores a deep-enough copy of the session so later in-place
// mutation by the caller cannot race readers.
func (r *MemoryCaseRepo) Save(_ context.Context, sess *model.CaseSession) error {
	if sess == nil || sess.ID == "" {
		return ErrNotFound
	}
	cp := cloneSession(sess)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = cp
	return nil
}

// GetByID returns a copy of the stored session, or ErrNotFound.
func (r *MemoryCaseRepo) GetByID(_ context.Context, id string) (*model.CaseSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

// Recent returns up to limit sessions ordered by last update, newest first.
func (r *MemoryCaseRepo) Recent(_ context.Context, limit int) ([]*model.CaseSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.CaseSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, cloneSession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (r *MemoryCaseRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// PruneOlderThan removes sessions whose last update precedes cutoff.
// Without this the in-memory store grows for the lifetime of the process.
func (r *MemoryCaseRepo) PruneOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sess := range r.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// cloneSession copies the session and its pointer fields. Raw JSON and
// slice contents are shared; both are treated as immutable once set.
func cloneSession(sess *model.CaseSession) *model.CaseSession {
	cp := *sess
	if sess.Status != nil {
		st := *sess.Status
		cp.Status = &st
	}
	if sess.Result != nil {
		res := *sess.Result
		cp.Result = &res
	}
	return &cp
}
