package screener

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendSentinel/internal/model"
)

// SortItem names a sortable metric.
type SortItem string

const (
	SortName      SortItem = "name"
	SortVariation SortItem = "variation"
	SortVolume    SortItem = "volume"
	SortVolEvol   SortItem = "volevol"
	SortProximity SortItem = "proximity"
	SortDuration  SortItem = "duration"
	SortPerf      SortItem = "perf"
	SortSpeed     SortItem = "speed"
)

// Order is 1 for ascending and -1 for descending.
type Order int

const (
	Asc  Order = 1
	Desc Order = -1
)

// ErrUnknownScreener is returned for a name no strategy is registered under.
var ErrUnknownScreener = errors.New("unknown screener")

// DefaultLimit caps a screen result.
const DefaultLimit = 50

func sortKey(a Augmented, item SortItem) (float64, bool) {
	switch item {
	case SortVariation:
		return value(a.Percent)
	case SortVolume:
		return value(a.Ave)
	case SortVolEvol:
		return value(a.VolEvol)
	case SortProximity:
		return value(a.ReversePercent)
	case SortPerf:
		return value(a.TrendPerformance)
	case SortSpeed:
		return value(a.TrendSpeed)
	case SortDuration:
		if in := a.Instrument.Indicator; in != nil && in.FlipDate != 0 {
			return float64(in.FlipDate), true
		}
	}
	return 0, false
}

// Sort orders list by item. Entries without the metric go last.
func Sort(list []Augmented, item SortItem, order Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if item == SortName || item == "" {
			c := strings.Compare(list[i].Instrument.Name, list[j].Instrument.Name)
			if order == Desc {
				return c > 0
			}
			return c < 0
		}
		vi, oki := sortKey(list[i], item)
		vj, okj := sortKey(list[j], item)
		if oki != okj {
			return oki
		}
		if order == Desc {
			return vi > vj
		}
		return vi < vj
	})
}

// Registry holds the strategies by name.
type Registry struct {
	byName map[string]Strategy
	names  []string
}

// NewRegistry registers the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Strategy)}
	for _, s := range []Strategy{HighVolumes{}, ReversalSoon{}, FastTrends{}, LongTrends{}, YoungTrends{}} {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	if _, ok := r.byName[s.Name()]; !ok {
		r.names = append(r.names, s.Name())
	}
	r.byName[s.Name()] = s
}

// Names lists strategies in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Get returns the strategy called name.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownScreener, name, strings.Join(r.names, ", "))
	}
	return s, nil
}

// Screen filters instruments with the named strategy, sorts by its default
// item and keeps at most limit entries. A non-positive limit uses
// DefaultLimit.
func (r *Registry) Screen(name string, instruments []model.Instrument, now time.Time, limit int) ([]Augmented, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	out := Filter(s, instruments, now)
	item, order := s.DefaultSort()
	Sort(out, item, order)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
