// Package store maps the domain records onto document collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/model"
)

const (
	colInstruments = "instruments"
	colAlertConfs  = "alertconfs"
	colStatus      = "status"
	colTokens      = "fcmtokens"
)

func alertCollection(u model.Universe) string {
	if u == model.Crypto {
		return "alertscrypto"
	}
	return "alerts"
}

func userCollection(u model.Universe) string {
	if u == model.Crypto {
		return "usercryptoconfs"
	}
	return "userconfs"
}

func quoteCollection(interval model.Interval) string {
	return string(interval)
}

// listDoc wraps a whole list persisted as one document.
type listDoc[T any] struct {
	D []T `json:"d"`
}

// Repository reads and writes instruments, quotes, alerts and user confs.
type Repository struct {
	docs docstore.Store
	now  func() time.Time
}

// New creates a repository over docs.
func New(docs docstore.Store) *Repository {
	return &Repository{docs: docs, now: time.Now}
}

// Docs returns the underlying document store.
func (r *Repository) Docs() docstore.Store { return r.docs }

func (r *Repository) getList(ctx context.Context, collection, id string, dest any) error {
	err := r.docs.Get(ctx, collection, id, dest)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	return nil
}

// Status returns the run record of u, defaulting to the indexing action.
func (r *Repository) Status(ctx context.Context, u model.Universe) (model.Status, error) {
	var s model.Status
	err := r.docs.Get(ctx, colStatus, string(u), &s)
	if errors.Is(err, docstore.ErrNotFound) {
		return model.Status{Action: model.ActionIndexing}, nil
	}
	if err != nil {
		return s, fmt.Errorf("load status %s: %w", u, err)
	}
	return s, nil
}

// SaveStatus stamps and persists the run record.
func (r *Repository) SaveStatus(ctx context.Context, u model.Universe, s model.Status) error {
	s.UpdatedAt = r.now().Unix()
	if err := r.docs.Set(ctx, colStatus, string(u), s); err != nil {
		return fmt.Errorf("save status %s: %w", u, err)
	}
	return nil
}
