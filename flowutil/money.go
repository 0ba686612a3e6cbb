package flowutil

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/0xVanfer/tg-flow/flow"
)

// MoneyParser reads amounts typed by users: "0.5", ".5", "0,5", ",5", "0,5€" and
// "0.5 €" all parse to 0.5. Negative amounts are rejected.
type MoneyParser struct {
	Symbol  string // Currency symbol to strip, defaults to "€"
	Message string // Validation message for unparsable input
}

// NewMoneyParser creates a parser for the given currency symbol.
func NewMoneyParser(symbol string) *MoneyParser {
	return &MoneyParser{Symbol: symbol, Message: "❌ Please enter a valid amount, e.g. 2.50"}
}

// Parse returns the amount and whether text was a valid non negative amount.
func (p *MoneyParser) Parse(text string) (float64, bool) {
	symbol := p.Symbol
	if symbol == "" {
		symbol = "€"
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	cleaned = strings.ReplaceAll(cleaned, symbol, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, false
	}
	return amount, true
}

// Validate implements flow.Validator, storing the parsed amount as float64.
func (p *MoneyParser) Validate(_ context.Context, text string) (any, error) {
	amount, ok := p.Parse(text)
	if !ok {
		return nil, flow.Reject("%s", p.Message)
	}
	return amount, nil
}

// RoundCents rounds v to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
