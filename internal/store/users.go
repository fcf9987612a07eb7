package store

import (
	"context"
	"errors"
	"fmt"

	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/model"
)

// UserConfs returns every user conf of u.
func (r *Repository) UserConfs(ctx context.Context, u model.Universe) ([]model.UserConf, error) {
	docs, err := r.docs.Query(ctx, userCollection(u), docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("query user confs: %w", err)
	}
	confs := make([]model.UserConf, 0, len(docs))
	for _, d := range docs {
		var c model.UserConf
		if err := d.Decode(&c); err != nil {
			return nil, err
		}
		c.ID = d.ID
		confs = append(confs, c)
	}
	return confs, nil
}

// UserConf returns the conf of one user.
func (r *Repository) UserConf(ctx context.Context, u model.Universe, uid string) (model.UserConf, error) {
	var c model.UserConf
	if err := r.docs.Get(ctx, userCollection(u), uid, &c); err != nil {
		return c, fmt.Errorf("load user conf %s: %w", uid, err)
	}
	c.ID = uid
	return c, nil
}

// SaveUserConf writes a user conf keyed by its ID.
func (r *Repository) SaveUserConf(ctx context.Context, u model.Universe, c model.UserConf) error {
	if c.ID == "" {
		return errors.New("user conf has no id")
	}
	if err := r.docs.Set(ctx, userCollection(u), c.ID, c); err != nil {
		return fmt.Errorf("save user conf %s: %w", c.ID, err)
	}
	return nil
}

type tokenDoc struct {
	Tokens []string `json:"tokens"`
}

// DeviceTokens returns the push tokens of a user, empty when unknown.
func (r *Repository) DeviceTokens(ctx context.Context, uid string) ([]string, error) {
	var doc tokenDoc
	if err := r.getList(ctx, colTokens, uid, &doc); err != nil {
		return nil, err
	}
	return doc.Tokens, nil
}

// SetDeviceTokens replaces the push tokens of a user.
func (r *Repository) SetDeviceTokens(ctx context.Context, uid string, tokens []string) error {
	if err := r.docs.Set(ctx, colTokens, uid, tokenDoc{Tokens: tokens}); err != nil {
		return fmt.Errorf("save tokens %s: %w", uid, err)
	}
	return nil
}
