package core

import (
	"context"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not concrete implementations.

// CaseRepository defines the interface for case session persistence.
// Implementations must tolerate concurrent access: the poll loop writes
// snapshots while request handlers read them.
type CaseRepository interface {
	Save(ctx context.Context, sess *model.CaseSession) error
	GetByID(ctx context.Context, id string) (*model.CaseSession, error)
	// Recent returns up to limit sessions, newest first.
	Recent(ctx context.Context, limit int) ([]*model.CaseSession, error)
	Delete(ctx context.Context, id string) error
	// PruneOlderThan removes sessions whose last update precedes cutoff,
	// returning the number removed. Stores with server-side expiry may
	// implement this as a no-op.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
