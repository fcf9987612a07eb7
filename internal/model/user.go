package model

// Position is a holding in a user portfolio.
type Position struct {
	ISIN     string  `json:"isin"`
	Quantity float64 `json:"quantity"`
	Stop     float64 `json:"stop"`
	Value    float64 `json:"value"`
}

// HistoryItem is one daily valuation snapshot. A nil Cash is an unknown amount.
type HistoryItem struct {
	Cash           *float64 `json:"cash"`
	Pos            float64  `json:"pos"`
	InitialCapital float64  `json:"ic"`
	Time           int64    `json:"t"`
}

// UserConf is a user's portfolio configuration for one universe.
type UserConf struct {
	ID             string        `json:"-"`
	Positions      []Position    `json:"positions"`
	InitialCapital float64       `json:"initialCapital"`
	Cash           *float64      `json:"cash"`
	History        []HistoryItem `json:"history"`
}

// Status is the per-universe run record.
type Status struct {
	Action         string `json:"action"`
	AlertTriggered int    `json:"alertTriggered"`
	UpdatedAt      int64  `json:"updatedAt"`
}

const (
	ActionIdle        = ""
	ActionIndexing    = "indexing"
	ActionLive        = "live"
	ActionIndicator   = "indicator"
	ActionRemaining   = "remaining"
	ActionForceReset  = "forcereset"
	ActionMaintenance = "maintenance"
)
