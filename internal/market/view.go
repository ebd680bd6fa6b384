package market

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"token_vote/internal/domain"
)

// DeriveView builds the view from the first pair of a payload.
// A payload without pairs yields the no-data sentinel.
func DeriveView(contract string, p Payload) *domain.TokenMarketView {
	pairs, _ := p.Raw["pairs"].([]any)
	if len(pairs) == 0 {
		return domain.NoDataView(contract)
	}
	pair, _ := pairs[0].(map[string]any)

	view := &domain.TokenMarketView{
		Contract:          contract,
		BaseSymbol:        str(lookup(pair, "baseToken", "symbol")),
		QuoteSymbol:       str(lookup(pair, "quoteToken", "symbol")),
		PriceUSD:          Coerce(lookup(pair, "priceUsd")),
		LiquidityUSD:      Coerce(lookup(pair, "liquidity", "usd")),
		FDVUSD:            Coerce(lookup(pair, "fdv")),
		Volume24hUSD:      Coerce(lookup(pair, "volume", "h24")),
		PriceChange24hPct: Coerce(lookup(pair, "priceChange", "h24")),
		ImageURL:          str(lookup(pair, "info", "imageUrl")),
	}
	return view
}

func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Coerce converts a JSON value to a decimal. Missing, non-numeric or non-finite values are zero.
func Coerce(v any) decimal.Decimal {
	switch n := v.(type) {
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	case bool:
		if n {
			return decimal.NewFromInt(1)
		}
	}
	return decimal.Zero
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err == nil {
		return d
	}
	// fallback for float syntax decimal does not accept
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
