package session

import (
	"context"
	"net/http"
	"time"

	"exboard/internal/exceptions"
	"exboard/internal/lookup"
	apperrors "exboard/pkg/errors"
)

// ErrNotFound matches apperrors.ErrNotFound via errors.Is.
var ErrNotFound = apperrors.NewError("NOT_FOUND", "session not found", http.StatusNotFound)

// ErrCapacity means the store refused to admit a new session.
var ErrCapacity = apperrors.NewError("SERVICE_UNAVAILABLE", "session capacity reached", http.StatusServiceUnavailable)

// Record is the persisted state of a ready session.
type Record struct {
	Lookup    lookup.Snapshot      `json:"lookup"`
	Selection exceptions.Selection `json:"selection"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Store persists session records and per-session run generations.
type Store interface {
	Save(ctx context.Context, id string, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	NextGeneration(ctx context.Context, id string) (int64, error)
	CurrentGeneration(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// storeGenerations scopes a Store's counters to one session.
type storeGenerations struct {
	store Store
	id    string
}

func (g storeGenerations) Next(ctx context.Context) (int64, error) {
	return g.store.NextGeneration(ctx, g.id)
}

func (g storeGenerations) Current(ctx context.Context) (int64, error) {
	return g.store.CurrentGeneration(ctx, g.id)
}
