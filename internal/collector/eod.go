package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"TrendSentinel/internal/model"
)

// DefaultEODURL is the EOD historical data API root.
const DefaultEODURL = "https://eodhistoricaldata.com/api"

// marketCodes maps MIC market codes to EOD exchange suffixes.
var marketCodes = map[string]string{
	"ETFP": "PA",
	"MTAA": "MI",
	"TNLB": "PA",
	"XAIM": "MI",
	"XAMS": "AS",
	"XBRU": "BR",
	"XDUB": "IR",
	"XETR": "XETRA",
	"XHEL": "HE",
	"XLIS": "LS",
	"XLON": "LSE",
	"XLUX": "LU",
	"XMAD": "MC",
	"XPAR": "PA",
	"XWBO": "VI",
}

// MapSymbol returns the EOD ticker of an instrument. Ids that already carry
// an exchange suffix are used as is.
func MapSymbol(ins model.Instrument) string {
	if strings.Contains(ins.ID, ".") {
		return ins.ID
	}
	code := "NA"
	if ins.Type == "index" {
		code = "INDX"
	} else if c, ok := marketCodes[ins.Market]; ok {
		code = c
	}
	return ins.Symbol + "." + code
}

// EODFetcher implements Fetcher on the EOD historical data REST API.
type EODFetcher struct {
	client *resty.Client
	token  string
}

// NewEODFetcher creates an EOD client.
func NewEODFetcher(baseURL, token string, timeout time.Duration) *EODFetcher {
	if baseURL == "" {
		baseURL = DefaultEODURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &EODFetcher{client: client, token: token}
}

func (f *EODFetcher) Name() string { return "eod" }

// naNumber decodes a numeric field the provider may report as "NA".
type naNumber struct {
	Value float64
	NA    bool
}

func (n *naNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		n.NA = true
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			n.NA = true
			return nil
		}
		n.Value = v
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type eodRealTime struct {
	Code          string   `json:"code"`
	Timestamp     naNumber `json:"timestamp"`
	Open          naNumber `json:"open"`
	High          naNumber `json:"high"`
	Low           naNumber `json:"low"`
	Close         naNumber `json:"close"`
	Volume        naNumber `json:"volume"`
	PreviousClose naNumber `json:"previousClose"`
}

func (f *EODFetcher) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	q := map[string]string{"api_token": f.token, "fmt": "json"}
	for k, v := range params {
		q[k] = v
	}
	resp, err := f.client.R().SetContext(ctx).SetQueryParams(q).Get(path)
	if err != nil {
		return nil, fmt.Errorf("eod %s: %w", path, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("eod %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

// decodeList accepts either an array or a single object.
func decodeList[T any](body []byte) []T {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if body[0] == '{' {
		var one T
		if err := json.Unmarshal(body, &one); err != nil {
			return nil
		}
		return []T{one}
	}
	var list []T
	if err := json.Unmarshal(body, &list); err != nil {
		return nil
	}
	return list
}

// FetchQuotes requests real-time quotes for all instruments in one call.
func (f *EODFetcher) FetchQuotes(ctx context.Context, instruments []model.Instrument) ([]model.QuoteUpdate, error) {
	if len(instruments) == 0 {
		return nil, nil
	}
	codes := make([]string, len(instruments))
	for i, ins := range instruments {
		codes[i] = MapSymbol(ins)
	}
	params := map[string]string{}
	if len(codes) > 1 {
		params["s"] = strings.Join(codes[1:], ",")
	}
	body, err := f.get(ctx, "/real-time/"+codes[0], params)
	if err != nil {
		return nil, err
	}
	return parseRealTime(body, instruments), nil
}

func parseRealTime(body []byte, instruments []model.Instrument) []model.QuoteUpdate {
	rows := decodeList[eodRealTime](body)
	updates := make([]model.QuoteUpdate, 0, len(rows))
	for _, q := range rows {
		if q.PreviousClose.NA || q.PreviousClose.Value == 0 {
			continue
		}
		last := q.Close.Value
		if q.Close.NA {
			last = q.PreviousClose.Value
		}
		var lt int64
		if !q.Timestamp.NA {
			lt = int64(q.Timestamp.Value)
		}
		updates = append(updates, model.QuoteUpdate{
			ID: matchInstrument(instruments, q.Code),
			Quote: model.LiveQuote{
				Open:          q.Open.Value,
				PreviousClose: q.PreviousClose.Value,
				Low:           q.Low.Value,
				High:          q.High.Value,
				Volume:        q.Volume.Value,
				Last:          last,
				LastTrade:     lt,
			},
		})
	}
	return updates
}

// matchInstrument resolves a provider code to an instrument id, falling back
// to the code itself when nothing matches.
func matchInstrument(instruments []model.Instrument, code string) string {
	symbol, _, _ := strings.Cut(code, ".")
	for _, ins := range instruments {
		if ins.ID == code || ins.Symbol == symbol {
			return ins.ID
		}
	}
	return code
}

type eodBar struct {
	Date          string   `json:"date"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	Close         float64  `json:"close"`
	AdjustedClose float64  `json:"adjusted_close"`
	Volume        naNumber `json:"volume"`
}

// FetchHistory requests end-of-day bars since from.
func (f *EODFetcher) FetchHistory(ctx context.Context, ins model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error) {
	period := "d"
	if interval == model.Weekly {
		period = "w"
	}
	body, err := f.get(ctx, "/eod/"+MapSymbol(ins), map[string]string{
		"from":   from.Format("2006-01-02"),
		"period": period,
	})
	if err != nil {
		return nil, err
	}
	return parseHistory(body), nil
}

func parseHistory(body []byte) []model.Quote {
	var rows []eodBar
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil
	}
	quotes := make([]model.Quote, 0, len(rows))
	for _, h := range rows {
		day, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			continue
		}
		q := model.Quote{
			Time:   day.Unix(),
			Open:   h.Open,
			High:   h.High,
			Low:    h.Low,
			Close:  h.Close,
			Volume: h.Volume.Value,
		}
		if h.Close != h.AdjustedClose && h.Close != 0 {
			q.Open = adjust(h.Open, h.AdjustedClose, h.Close)
			q.High = adjust(h.High, h.AdjustedClose, h.Close)
			q.Low = adjust(h.Low, h.AdjustedClose, h.Close)
			q.Close = h.AdjustedClose
		}
		quotes = append(quotes, q)
	}
	model.SortQuotes(quotes)
	return quotes
}

// adjust scales a raw price by the split/dividend factor, to 4 decimals.
func adjust(price, adjusted, raw float64) float64 {
	v := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(adjusted)).
		Div(decimal.NewFromFloat(raw)).
		Round(4)
	return v.InexactFloat64()
}

type eodSymbol struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Exchange string `json:"Exchange"`
}

// ListCrypto returns the provider's crypto universe as new instruments.
func (f *EODFetcher) ListCrypto(ctx context.Context) ([]model.Instrument, error) {
	body, err := f.get(ctx, "/exchange-symbol-list/CC", nil)
	if err != nil {
		return nil, err
	}
	var rows []eodSymbol
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, nil
	}
	out := make([]model.Instrument, 0, len(rows))
	for _, r := range rows {
		symbol, _, _ := strings.Cut(r.Code, "-")
		out = append(out, model.Instrument{
			ID:        r.Code + ".CC",
			ISIN:      symbol,
			Symbol:    symbol,
			Name:      r.Name,
			Market:    "CC",
			Precision: 8,
			Type:      "Crypto",
			Live:      &model.LiveQuote{},
			Indicator: &model.IndicatorState{},
		})
	}
	return out, nil
}

// Search returns the EOD ticker of the best match for word, or "".
func (f *EODFetcher) Search(ctx context.Context, word string) (string, error) {
	body, err := f.get(ctx, "/search/"+word, nil)
	if err != nil {
		return "", err
	}
	var rows []eodSymbol
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return "", nil
	}
	return rows[0].Code + "." + rows[0].Exchange, nil
}
