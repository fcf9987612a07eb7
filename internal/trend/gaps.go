package trend

import (
	"math"

	"TrendSentinel/internal/model"
)

// FindGaps walks daily bars from newest to oldest and returns the gaps that
// no newer bar has traded through. To is the nearest price reached since.
func FindGaps(daily []model.Quote) []model.Gap {
	var gaps []model.Gap
	lowest := math.Inf(1)
	highest := 0.0
	for i := len(daily) - 1; i >= 0; i-- {
		q := daily[i]
		if i < len(daily)-1 {
			next := daily[i+1]
			if q.High < next.Low && q.High < lowest {
				gaps = append(gaps, model.Gap{Time: q.Time, From: q.High, To: lowest})
			}
			if q.Low > next.High && q.Low > highest {
				gaps = append(gaps, model.Gap{Time: q.Time, From: q.Low, To: highest})
			}
		}
		highest = math.Max(highest, q.High)
		lowest = math.Min(lowest, q.Low)
	}
	return gaps
}

// NearestGaps picks, on each side of last, the gap whose To is closest to last.
// Ties keep the newest gap.
func NearestGaps(gaps []model.Gap, last float64) (below, above *model.Gap) {
	for i := range gaps {
		g := gaps[i]
		switch {
		case g.To < last:
			if below == nil || g.To > below.To {
				below = &g
			}
		case g.To > last:
			if above == nil || g.To < above.To {
				above = &g
			}
		}
	}
	return below, above
}
