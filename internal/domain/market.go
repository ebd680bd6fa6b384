package domain

import "github.com/shopspring/decimal"

// TokenMarketView is the normalised first market pair of a token.
// Numeric fields that were missing or non-numeric upstream are zero.
type TokenMarketView struct {
	Contract          string          `json:"contract"`
	BaseSymbol        string          `json:"base_symbol"`
	QuoteSymbol       string          `json:"quote_symbol"`
	PriceUSD          decimal.Decimal `json:"price_usd"`
	LiquidityUSD      decimal.Decimal `json:"liquidity_usd"`
	FDVUSD            decimal.Decimal `json:"fdv_usd"`
	Volume24hUSD      decimal.Decimal `json:"volume_24h_usd"`
	PriceChange24hPct decimal.Decimal `json:"price_change_24h_pct"`
	ImageURL          string          `json:"image_url,omitempty"`

	// NoData marks a successful fetch that returned no market pairs.
	NoData bool `json:"no_data"`
}

// NoDataView is the sentinel returned when the provider knows no pairs for a contract.
func NoDataView(contract string) *TokenMarketView {
	return &TokenMarketView{Contract: contract, NoData: true}
}

// ChangeDirection returns "positive", "negative", or "neutral"
func (v *TokenMarketView) ChangeDirection() string {
	if v == nil || v.NoData {
		return "neutral"
	}
	if v.PriceChange24hPct.IsPositive() {
		return "positive"
	}
	if v.PriceChange24hPct.IsNegative() {
		return "negative"
	}
	return "neutral"
}

// PairLabel returns "BASE / QUOTE" for display.
func (v *TokenMarketView) PairLabel() string {
	if v == nil || v.NoData {
		return ""
	}
	return v.BaseSymbol + " / " + v.QuoteSymbol
}
