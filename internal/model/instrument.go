package model

import "fmt"

// Universe names an instrument set with its own alerts, confs and status.
type Universe string

const (
	Equities Universe = "current"
	Crypto   Universe = "crypto"
)

// ParseUniverse accepts the universe name or the "equities" alias.
func ParseUniverse(s string) (Universe, error) {
	switch s {
	case "current", "equities", "":
		return Equities, nil
	case "crypto":
		return Crypto, nil
	}
	return "", fmt.Errorf("unknown universe %q", s)
}

const (
	// FundType instruments are refreshed by a separate slow path.
	FundType = "investmentFund"
	// ExcludedID is never refreshed nor indexed.
	ExcludedID = "EURONEXTFUND"
)

// LiveQuote is the last intraday snapshot of an instrument.
// PreviousClose carries the provider's previous session close.
type LiveQuote struct {
	Time          int64   `json:"t"`
	Open          float64 `json:"o,omitempty"`
	PreviousClose float64 `json:"c,omitempty"`
	Low           float64 `json:"l,omitempty"`
	High          float64 `json:"h,omitempty"`
	Volume        float64 `json:"v,omitempty"`
	Last          float64 `json:"last,omitempty"`
	LastTrade     int64   `json:"lt,omitempty"`
}

// QuoteUpdate is a provider quote addressed to an instrument id.
type QuoteUpdate struct {
	ID    string
	Quote LiveQuote
}

// Instrument is a tracked security with its live snapshot and indicator state.
type Instrument struct {
	ID        string          `json:"id"`
	Name      string          `json:"na"`
	Symbol    string          `json:"sy"`
	ISIN      string          `json:"isin"`
	Type      string          `json:"ty"`
	Market    string          `json:"mk"`
	Precision int             `json:"pd"`
	Live      *LiveQuote      `json:"li,omitempty"`
	Indicator *IndicatorState `json:"in,omitempty"`
}

// LastPrice returns the live last price, or 0 when unknown.
func (i *Instrument) LastPrice() float64 {
	if i.Live == nil {
		return 0
	}
	return i.Live.Last
}
