package store

import (
	"context"
	"fmt"

	"TrendSentinel/internal/model"
)

// Instruments returns the instrument list of u.
func (r *Repository) Instruments(ctx context.Context, u model.Universe) ([]model.Instrument, error) {
	var doc listDoc[model.Instrument]
	if err := r.getList(ctx, colInstruments, string(u), &doc); err != nil {
		return nil, err
	}
	return doc.D, nil
}

// SaveInstruments merges updated instruments into the stored list by ISIN
// and writes the list back in one document write. Unknown instruments are
// appended with an empty live snapshot and a zero indicator.
func (r *Repository) SaveInstruments(ctx context.Context, u model.Universe, updated []model.Instrument) error {
	saved, err := r.Instruments(ctx, u)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(saved))
	for i, ins := range saved {
		index[ins.ISIN] = i
	}
	for _, ins := range updated {
		if i, ok := index[ins.ISIN]; ok {
			saved[i] = ins
			continue
		}
		if ins.Live == nil {
			ins.Live = &model.LiveQuote{}
		}
		if ins.Indicator == nil {
			ins.Indicator = &model.IndicatorState{}
		}
		index[ins.ISIN] = len(saved)
		saved = append(saved, ins)
	}
	if err := r.docs.Set(ctx, colInstruments, string(u), listDoc[model.Instrument]{D: saved}); err != nil {
		return fmt.Errorf("save instruments %s: %w", u, err)
	}
	return nil
}

// DeleteInstruments drops the whole instrument list of u.
func (r *Repository) DeleteInstruments(ctx context.Context, u model.Universe) error {
	if err := r.docs.Delete(ctx, colInstruments, string(u)); err != nil {
		return fmt.Errorf("delete instruments %s: %w", u, err)
	}
	return nil
}
