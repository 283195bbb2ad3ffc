package fetcher

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a case-insensitive stock symbol. Use Normalize before using it
// as a lookup key or sending it to a remote endpoint.
type Ticker string

// Normalize trims whitespace and upper-cases the symbol. Malformed symbols
// are passed through; providers surface invalid-symbol failures.
func Normalize(t Ticker) Ticker {
	return Ticker(strings.ToUpper(strings.TrimSpace(string(t))))
}

// NormalizeAll normalizes every ticker, keeping order and duplicates.
func NormalizeAll(tickers []Ticker) []Ticker {
	out := make([]Ticker, len(tickers))
	for i, t := range tickers {
		out[i] = Normalize(t)
	}
	return out
}

// Equal reports whether two tickers name the same symbol.
func Equal(a, b Ticker) bool {
	return Normalize(a) == Normalize(b)
}

// Quote is a price/change snapshot for a ticker. It is a value type: copies
// handed out by the cache never alias each other.
type Quote struct {
	Ticker     Ticker    `json:"ticker"`
	Price      float64   `json:"price"`
	ChangePct  float64   `json:"changePct"`
	ObservedAt time.Time `json:"observedAt"`
}

// NewQuote builds a quote with a normalized ticker and price/change rounded
// to 2 decimal places. Negative prices are clamped to zero.
func NewQuote(ticker Ticker, price, changePct float64, observedAt time.Time) Quote {
	if price < 0 {
		price = 0
	}
	return Quote{
		Ticker:     Normalize(ticker),
		Price:      Round2(price),
		ChangePct:  Round2(changePct),
		ObservedAt: observedAt,
	}
}

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
