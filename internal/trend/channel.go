package trend

import (
	"fmt"
	"math"
	"time"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
)

// Channel is the breakout band of the window ending at Time.
type Channel struct {
	Time   int64
	Upper  float64
	Middle float64
	Lower  float64
}

// ChannelPolicy derives the channel from the bars up to and including the
// current one. ok is false when the window is too short.
type ChannelPolicy interface {
	Name() string
	Channel(bars []model.Quote, state model.IndicatorState) (ch Channel, ok bool)
}

// Params tunes the breakout channel.
type Params struct {
	MAPeriod       int
	BreakoutPeriod int
	// SlopeBias shifts the reversion buy price, in percent of the average.
	SlopeBias float64
	// ResistanceDamping scales a known resistance before clamping upper.
	ResistanceDamping float64
	// StopRatchet and FridayStopRatchet scale the stop while long; the
	// Friday factor applies when the last bar falls on a Friday.
	StopRatchet       float64
	FridayStopRatchet float64
	// LongLowerFloor scales the lowest low used as a floor for lower while long.
	LongLowerFloor float64
}

const (
	PresetBreakout8  = "breakout-8"
	PresetBreakout10 = "breakout-10"
)

var presets = map[string]Params{
	PresetBreakout8: {
		MAPeriod:          30,
		BreakoutPeriod:    8,
		ResistanceDamping: 0.997,
		StopRatchet:       1,
		FridayStopRatchet: 1.004,
		LongLowerFloor:    0.85,
	},
	PresetBreakout10: {
		MAPeriod:          33,
		BreakoutPeriod:    10,
		ResistanceDamping: 1,
		StopRatchet:       1.005,
		FridayStopRatchet: 1.005,
		LongLowerFloor:    0.85,
	},
}

// Preset returns the named parameter set.
func Preset(name string) (Params, error) {
	p, ok := presets[name]
	if !ok {
		return Params{}, fmt.Errorf("unknown channel preset %q", name)
	}
	return p, nil
}

// Validate checks the windows are usable.
func (p Params) Validate() error {
	if p.MAPeriod < 2 {
		return fmt.Errorf("ma period must be at least 2, got %d", p.MAPeriod)
	}
	if p.BreakoutPeriod <= 0 || p.BreakoutPeriod > p.MAPeriod {
		return fmt.Errorf("breakout period must be in [1, %d], got %d", p.MAPeriod, p.BreakoutPeriod)
	}
	if p.ResistanceDamping <= 0 || p.StopRatchet <= 0 || p.FridayStopRatchet <= 0 || p.LongLowerFloor <= 0 {
		return fmt.Errorf("damping, ratchet and floor factors must be positive")
	}
	return nil
}

// Breakout is a moving-average/breakout channel.
type Breakout struct {
	name   string
	params Params
}

// NewBreakout builds a breakout policy from params.
func NewBreakout(name string, p Params) (*Breakout, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Breakout{name: name, params: p}, nil
}

// NewPreset builds the named preset policy.
func NewPreset(name string) (*Breakout, error) {
	p, err := Preset(name)
	if err != nil {
		return nil, err
	}
	return NewBreakout(name, p)
}

func (b *Breakout) Name() string { return b.name }

// Params returns the tuning of the policy.
func (b *Breakout) Params() Params { return b.params }

func (b *Breakout) Channel(bars []model.Quote, state model.IndicatorState) (Channel, bool) {
	p := b.params
	if len(bars) < p.MAPeriod {
		return Channel{}, false
	}
	window := calculator.Last(bars, p.MAPeriod)
	closes := model.Closes(window)
	last := window[len(window)-1]

	lma := calculator.Mean(closes)
	middle, err := calculator.CalculateSMA(closes, int(math.Round(float64(p.MAPeriod)/2)))
	if err != nil {
		return Channel{}, false
	}
	highest, lowest, err := calculator.HighLow(window, p.BreakoutPeriod)
	if err != nil {
		return Channel{}, false
	}

	buyMA := lma*p.SlopeBias/100 + lma
	buyPrice := buyMA*float64(p.MAPeriod) - calculator.Sum(closes[1:])

	upper := math.Max(highest, buyPrice)
	if state.Breakout != 0 {
		upper = math.Min(state.Breakout*p.ResistanceDamping, upper)
	}
	lower := lowest

	if state.Long && state.Stop != 0 {
		upper = highest
		lower = math.Max(state.Stop*b.ratchet(last), lowest*p.LongLowerFloor)
	}

	return Channel{Time: last.Time, Upper: upper, Middle: middle, Lower: lower}, true
}

func (b *Breakout) ratchet(bar model.Quote) float64 {
	if bar.At().Weekday() == time.Friday {
		return b.params.FridayStopRatchet
	}
	return b.params.StopRatchet
}
