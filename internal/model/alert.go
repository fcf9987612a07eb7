package model

import "math"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus int

const (
	AlertCreated    AlertStatus = 1
	AlertRegistered AlertStatus = 2
	AlertTriggered  AlertStatus = 3
	AlertCancelled  AlertStatus = 99
)

// Terminal reports whether the engine must never touch an alert in this state again.
func (s AlertStatus) Terminal() bool {
	return s == AlertTriggered || s == AlertCancelled
}

// Direction tells which side of the price an alert watches.
type Direction int

const (
	Up   Direction = 1
	Down Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "unknown"
}

// AlertKind distinguishes user price alerts from stop reminders.
type AlertKind string

const (
	KindAlert AlertKind = "ALERT"
	KindStop  AlertKind = "STOP"
)

// Alert is a user price threshold on one instrument.
type Alert struct {
	ID          string      `json:"id"`
	ISIN        string      `json:"isin"`
	Kind        AlertKind   `json:"type"`
	AuthorID    string      `json:"author_id"`
	Value       float64     `json:"value"`
	Direction   Direction   `json:"direction"`
	Status      AlertStatus `json:"status"`
	CreatedAt   int64       `json:"createdAt"`
	TriggeredAt int64       `json:"triggeredAt,omitempty"`
}

// UnboundedUp is the upper bound of a conf with no UP alert. It is finite so
// it survives JSON encoding, and no price can reach it.
const UnboundedUp = math.MaxFloat64

// AlertConf caches the nearest registered alert bounds of an instrument.
type AlertConf struct {
	ISIN string  `json:"isin"`
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// NewAlertConf returns a conf with sentinel bounds.
func NewAlertConf(isin string) AlertConf {
	return AlertConf{ISIN: isin, Up: UnboundedUp, Down: 0}
}

// Widen tightens the bound on the alert's side toward its value.
func (c *AlertConf) Widen(a Alert) {
	switch a.Direction {
	case Up:
		if a.Value < c.Up {
			c.Up = a.Value
		}
	case Down:
		if a.Value > c.Down {
			c.Down = a.Value
		}
	}
}

// Breached reports whether the session range crosses a bound. Both high
// and low must be known.
func (c AlertConf) Breached(high, low float64) bool {
	if high == 0 || low == 0 {
		return false
	}
	return high >= c.Up || low <= c.Down
}

// Empty reports whether both bounds are back to their sentinels.
func (c AlertConf) Empty() bool {
	return c.Up == UnboundedUp && c.Down == 0
}
