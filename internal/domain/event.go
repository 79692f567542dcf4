package domain

import "time"

// Lifecycle event names.
const (
	EventPositionAdded   = "position_added"
	EventPositionExited  = "position_exited"
	EventPositionDeleted = "position_deleted"
)

// LifecycleEvent is published whenever the position book changes.
type LifecycleEvent struct {
	Event      string    `json:"event"`
	PositionID string    `json:"position_id"`
	Par        string    `json:"par"`
	Side       Side      `json:"side,omitempty"`
	Scope      Scope     `json:"scope,omitempty"`
	Entrada    *float64  `json:"entrada,omitempty"`
	Alvo       *float64  `json:"alvo,omitempty"`
	PrecoSaida *float64  `json:"preco_saida,omitempty"`
	GanhoFinal *float64  `json:"ganho_final,omitempty"`
	Motivo     string    `json:"motivo,omitempty"`
	Removed    int       `json:"removed,omitempty"`
	At         time.Time `json:"at"`
}

// Detail flattens the event for the audit log.
func (e LifecycleEvent) Detail() map[string]any {
	d := map[string]any{
		"position_id": e.PositionID,
		"par":         e.Par,
	}
	if e.Side != "" {
		d["side"] = string(e.Side)
	}
	if e.Scope != "" {
		d["scope"] = string(e.Scope)
	}
	if e.Entrada != nil {
		d["entrada"] = *e.Entrada
	}
	if e.Alvo != nil {
		d["alvo"] = *e.Alvo
	}
	if e.PrecoSaida != nil {
		d["preco_saida"] = *e.PrecoSaida
	}
	if e.GanhoFinal != nil {
		d["ganho_final"] = *e.GanhoFinal
	}
	if e.Motivo != "" {
		d["motivo"] = e.Motivo
	}
	if e.Removed > 0 {
		d["removed"] = e.Removed
	}
	return d
}
