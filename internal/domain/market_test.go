package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTokenMarketView_ChangeDirection(t *testing.T) {
	tests := []struct {
		name string
		view *TokenMarketView
		want string
	}{
		{"nil view", nil, "neutral"},
		{"no data", NoDataView("X"), "neutral"},
		{"rising", &TokenMarketView{PriceChange24hPct: decimal.NewFromFloat(3.5)}, "positive"},
		{"falling", &TokenMarketView{PriceChange24hPct: decimal.NewFromFloat(-0.01)}, "negative"},
		{"flat", &TokenMarketView{}, "neutral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.ChangeDirection(); got != tt.want {
				t.Errorf("ChangeDirection() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTokenMarketView_PairLabel(t *testing.T) {
	v := &TokenMarketView{BaseSymbol: "BONK", QuoteSymbol: "SOL"}
	if v.PairLabel() != "BONK / SOL" {
		t.Errorf("PairLabel() = %q", v.PairLabel())
	}
	if NoDataView("X").PairLabel() != "" {
		t.Error("no-data view should have an empty label")
	}
}
