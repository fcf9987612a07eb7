package store

import (
	"context"
	"errors"
	"fmt"

	"TrendSentinel/internal/model"
)

// ErrMissingISIN rejects quote writes for instruments without an ISIN.
var ErrMissingISIN = errors.New("instrument has no isin")

type quoteDoc struct {
	D []model.Quote `json:"d"`
	T int64         `json:"t"`
}

// Quotes returns the stored series of isin, ascending.
func (r *Repository) Quotes(ctx context.Context, isin string, interval model.Interval) ([]model.Quote, error) {
	var doc quoteDoc
	if err := r.getList(ctx, quoteCollection(interval), isin, &doc); err != nil {
		return nil, err
	}
	return doc.D, nil
}

// MergeQuotes upserts incoming bars into the stored series and returns the
// merged series. An empty incoming series leaves the store untouched.
func (r *Repository) MergeQuotes(ctx context.Context, ins model.Instrument, interval model.Interval, incoming []model.Quote) ([]model.Quote, error) {
	if ins.ISIN == "" {
		return nil, ErrMissingISIN
	}
	existing, err := r.Quotes(ctx, ins.ISIN, interval)
	if err != nil {
		return nil, err
	}
	if len(incoming) == 0 {
		return existing, nil
	}
	merged := model.MergeQuotes(existing, incoming)
	doc := quoteDoc{D: merged, T: r.now().Unix()}
	if err := r.docs.Set(ctx, quoteCollection(interval), ins.ISIN, doc); err != nil {
		return nil, fmt.Errorf("save %s quotes %s: %w", interval, ins.ISIN, err)
	}
	return merged, nil
}
