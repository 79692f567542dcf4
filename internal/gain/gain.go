// Package gain computes percentage gains of a position relative to a
// reference price.
package gain

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

const divPrecision = 24

var hundred = decimal.NewFromInt(100)

// Percent returns the gain in percent from entry to ref for side:
// LONG ((ref/entry)-1)*100, SHORT ((entry/ref)-1)*100. It reports false when
// either price is non-finite or not positive, or when side is not LONG/SHORT.
func Percent(entry, ref float64, side domain.Side) (float64, bool) {
	if !usable(entry) || !usable(ref) {
		return 0, false
	}
	e := decimal.NewFromFloat(entry)
	r := decimal.NewFromFloat(ref)

	var ratio decimal.Decimal
	switch side {
	case domain.SideLong:
		ratio = r.DivRound(e, divPrecision)
	case domain.SideShort:
		ratio = e.DivRound(r, divPrecision)
	default:
		return 0, false
	}
	pct, _ := ratio.Sub(decimal.NewFromInt(1)).Mul(hundred).Round(divPrecision - 4).Float64()
	return pct, true
}

// PercentPtr is Percent for optional inputs; it returns nil for no value.
func PercentPtr(entry, ref *float64, side domain.Side) *float64 {
	if entry == nil || ref == nil {
		return nil
	}
	pct, ok := Percent(*entry, *ref, side)
	if !ok {
		return nil
	}
	return &pct
}

// Apply recomputes the gain fields of p from its entry, target and current
// price. Values already on p are discarded.
func Apply(p *domain.Position) {
	p.GanhoAlvo = PercentPtr(p.Entrada, p.Alvo, p.Side)
	p.GanhoAtual = PercentPtr(p.Entrada, p.Atual, p.Side)
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
