// Package monitor merges the Active partition with the refresh worker's
// snapshot into the view shown on the panel.
package monitor

import (
	"encoding/json"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/gain"
)

// View is the merged monitor document.
type View struct {
	UpdatedBRT string
	Ops        []domain.Position
}

// MarshalJSON writes every row with explicit ganho_alvo and ganho_atual,
// null when the gain has no value.
func (v View) MarshalJSON() ([]byte, error) {
	rows := make([]map[string]any, 0, len(v.Ops))
	for _, p := range v.Ops {
		row := p.Fields()
		row["ganho_alvo"] = p.GanhoAlvo
		row["ganho_atual"] = p.GanhoAtual
		rows = append(rows, row)
	}
	return json.Marshal(struct {
		UpdatedBRT string           `json:"updated_brt"`
		Ops        []map[string]any `json:"ops"`
	}{v.UpdatedBRT, rows})
}

// BuildView returns one row per id found in active, in snap, or both.
// Active order comes first, then snapshot-only rows in snapshot order.
// Snapshot rows without an id cannot be matched and are skipped. now should
// already be in the civil timezone.
func BuildView(active []domain.Position, snap domain.MonitorSnapshot, now time.Time) View {
	live := make(map[string]domain.Position, len(snap.Ops))
	for _, row := range snap.Ops {
		if row.ID == "" {
			continue
		}
		if _, dup := live[row.ID]; !dup {
			live[row.ID] = row
		}
	}

	date, hour := now.Format(domain.CivilDateLayout), now.Format(domain.CivilHourLayout)
	seen := make(map[string]bool, len(active)+len(live))
	ops := make([]domain.Position, 0, len(active)+len(live))

	finish := func(p domain.Position) domain.Position {
		if p.Situacao == "" {
			p.Situacao = domain.SituacaoEmAndamento
		}
		if p.Data == "" {
			p.Data = date
		}
		if p.Hora == "" {
			p.Hora = hour
		}
		gain.Apply(&p)
		return p
	}

	for _, a := range active {
		row := a.Clone()
		if l, ok := live[a.ID]; ok && a.ID != "" {
			row = a.Overlay(l)
		}
		seen[a.ID] = true
		ops = append(ops, finish(row))
	}
	for _, row := range snap.Ops {
		if row.ID == "" || seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		ops = append(ops, finish(row.Clone()))
	}

	return View{
		UpdatedBRT: now.Format(domain.CivilStampLayout),
		Ops:        ops,
	}
}
