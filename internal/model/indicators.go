package model

// Look-back offsets, in weekly bars, of the closes snapshot.
var SnapshotLookbacks = []int{1, 2, 4, 13, 26, 52, 104, 260}

// MovingAveragePeriods are the daily SMA periods kept in IndicatorState.MovingAverages.
var MovingAveragePeriods = []int{6, 19, 49, 99, 199}

// Gap is an unfilled price range left between two consecutive daily bars.
type Gap struct {
	Time int64   `json:"t"`
	From float64 `json:"fr"`
	To   float64 `json:"to"`
}

// IndicatorState is the persisted trend state of an instrument.
//
// Stop is meaningful while Long, Breakout while flat; the other field keeps
// its last value. Zero means unset for both.
type IndicatorState struct {
	Watermark      int64       `json:"t"`
	Long           bool        `json:"p"`
	FlipDate       int64       `json:"bd,omitempty"`
	FlipPrice      float64     `json:"bp,omitempty"`
	Stop           float64     `json:"st,omitempty"`
	Breakout       float64     `json:"bk,omitempty"`
	AvgVolume      float64     `json:"av,omitempty"`
	Closes         []*float64  `json:"hi,omitempty"`
	GapBelow       *Gap        `json:"gb,omitempty"`
	GapAbove       *Gap        `json:"gt,omitempty"`
	MovingAverages []*float64  `json:"m,omitempty"`
	Checkpoint     *Checkpoint `json:"cp,omitempty"`
}

// Checkpoint is the regime as it stood before the latest weekly bar, taken
// at Time, the opening of that bar. The bar is still in progress when it is
// first seen, so the next advance rewinds here and replays it.
type Checkpoint struct {
	Time      int64   `json:"t"`
	Long      bool    `json:"p"`
	FlipDate  int64   `json:"bd,omitempty"`
	FlipPrice float64 `json:"bp,omitempty"`
	Stop      float64 `json:"st,omitempty"`
	Breakout  float64 `json:"bk,omitempty"`
}

// Clone returns a deep copy so callers can advance state without aliasing.
func (s IndicatorState) Clone() IndicatorState {
	out := s
	out.Closes = cloneFloats(s.Closes)
	out.MovingAverages = cloneFloats(s.MovingAverages)
	if s.GapBelow != nil {
		g := *s.GapBelow
		out.GapBelow = &g
	}
	if s.GapAbove != nil {
		g := *s.GapAbove
		out.GapAbove = &g
	}
	if s.Checkpoint != nil {
		cp := *s.Checkpoint
		out.Checkpoint = &cp
	}
	return out
}

func cloneFloats(in []*float64) []*float64 {
	if in == nil {
		return nil
	}
	out := make([]*float64, len(in))
	for i, p := range in {
		if p != nil {
			v := *p
			out[i] = &v
		}
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
