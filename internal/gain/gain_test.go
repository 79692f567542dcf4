package gain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		entry float64
		ref   float64
		side  domain.Side
		want  float64
	}{
		{"long up", 0.50, 0.60, domain.SideLong, 20},
		{"long down", 100, 90, domain.SideLong, -10},
		{"short down", 100, 80, domain.SideShort, 25},
		{"short up", 0.50, 0.55, domain.SideShort, -9.090909090909091},
		{"flat", 42, 42, domain.SideLong, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percent(tt.entry, tt.ref, tt.side)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPercentExact(t *testing.T) {
	got, ok := Percent(0.50, 0.60, domain.SideLong)
	require.True(t, ok)
	assert.Equal(t, 20.0, got)

	got, ok = Percent(0.50, 0.55, domain.SideLong)
	require.True(t, ok)
	assert.Equal(t, 10.0, got)
}

func TestPercentNoValue(t *testing.T) {
	tests := []struct {
		name  string
		entry float64
		ref   float64
		side  domain.Side
	}{
		{"zero entry", 0, 1, domain.SideLong},
		{"negative ref", 1, -1, domain.SideLong},
		{"nan", math.NaN(), 1, domain.SideLong},
		{"inf", 1, math.Inf(1), domain.SideShort},
		{"bad side", 1, 2, domain.Side("FLAT")},
		{"empty side", 1, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Percent(tt.entry, tt.ref, tt.side)
			assert.False(t, ok)
		})
	}
}

func TestPercentPtr(t *testing.T) {
	assert.Nil(t, PercentPtr(nil, domain.Float(1), domain.SideLong))
	assert.Nil(t, PercentPtr(domain.Float(1), nil, domain.SideLong))
	assert.Nil(t, PercentPtr(domain.Float(0), domain.Float(1), domain.SideLong))

	got := PercentPtr(domain.Float(100), domain.Float(100), domain.SideShort)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestApply(t *testing.T) {
	p := domain.Position{
		Side: domain.SideLong, Entrada: domain.Float(0.5), Alvo: domain.Float(0.6),
		GanhoAtual: domain.Float(999),
	}
	Apply(&p)
	require.NotNil(t, p.GanhoAlvo)
	assert.Equal(t, 20.0, *p.GanhoAlvo)
	assert.Nil(t, p.GanhoAtual)
}
