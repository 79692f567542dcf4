package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Situation and closure labels shown on the panel.
const (
	SituacaoEmAndamento = "EM ANDAMENTO"
	MotivoManual        = "MANUAL"
	StatusEncerrada     = "ENCERRADA"
)

// Position is one tracked operation. It is used for Active records, monitor
// snapshot rows and Realized records alike; fields a given stage does not know
// stay at their zero value. Fields the package does not model are kept in
// Extra and written back unchanged.
type Position struct {
	ID            string
	Par           string
	Side          Side
	Entrada       *float64
	Alvo          *float64
	Alav          *float64
	DataReg       string
	HoraReg       string
	CreatedTsUTC  string
	ProUpdatedBRT string
	AlvoFonte     string

	Atual      *float64
	GanhoAlvo  *float64
	GanhoAtual *float64
	Situacao   string
	Data       string
	Hora       string

	DataSair    string
	HoraSair    string
	PrecoSaida  *float64
	Motivo      string
	StatusFinal string
	GanhoFinal  *float64

	Extra map[string]json.RawMessage
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

type stringField struct {
	key     string
	aliases []string
	ptr     func(*Position) *string
}

type numberField struct {
	key string
	ptr func(*Position) **float64
}

var stringFields = []stringField{
	{"id", nil, func(p *Position) *string { return &p.ID }},
	{"par", nil, func(p *Position) *string { return &p.Par }},
	{"data_reg", nil, func(p *Position) *string { return &p.DataReg }},
	{"hora_reg", nil, func(p *Position) *string { return &p.HoraReg }},
	{"created_ts_utc", []string{"created_ts"}, func(p *Position) *string { return &p.CreatedTsUTC }},
	{"pro_updated_brt", nil, func(p *Position) *string { return &p.ProUpdatedBRT }},
	{"alvo_fonte", nil, func(p *Position) *string { return &p.AlvoFonte }},
	{"situacao", nil, func(p *Position) *string { return &p.Situacao }},
	{"data", nil, func(p *Position) *string { return &p.Data }},
	{"hora", nil, func(p *Position) *string { return &p.Hora }},
	{"data_sair", []string{"data_exit"}, func(p *Position) *string { return &p.DataSair }},
	{"hora_sair", []string{"hora_exit"}, func(p *Position) *string { return &p.HoraSair }},
	{"motivo", nil, func(p *Position) *string { return &p.Motivo }},
	{"status_final", nil, func(p *Position) *string { return &p.StatusFinal }},
}

var numberFields = []numberField{
	{"entrada", func(p *Position) **float64 { return &p.Entrada }},
	{"alvo", func(p *Position) **float64 { return &p.Alvo }},
	{"alav", func(p *Position) **float64 { return &p.Alav }},
	{"atual", func(p *Position) **float64 { return &p.Atual }},
	{"ganho_alvo", func(p *Position) **float64 { return &p.GanhoAlvo }},
	{"ganho_atual", func(p *Position) **float64 { return &p.GanhoAtual }},
	{"preco_saida", func(p *Position) **float64 { return &p.PrecoSaida }},
	{"ganho_final", func(p *Position) **float64 { return &p.GanhoFinal }},
}

// Fields returns the JSON object form of p. Empty strings and nil numbers
// are omitted; Extra keys are included unless a modelled field shadows them.
func (p Position) Fields() map[string]any {
	out := make(map[string]any, len(p.Extra)+16)
	for k, v := range p.Extra {
		out[k] = v
	}
	for _, f := range stringFields {
		if v := *f.ptr(&p); v != "" {
			out[f.key] = v
		}
	}
	if p.Side != "" {
		out["side"] = string(p.Side)
	}
	for _, f := range numberFields {
		if v := *f.ptr(&p); v != nil {
			out[f.key] = *v
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// UnmarshalJSON implements json.Unmarshaler. Numeric fields accept JSON
// numbers and numeric strings. Null and "" decode as absent; any other
// unparseable value decodes as absent but stays in Extra so it is written
// back unchanged.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Position{}

	for _, f := range stringFields {
		for _, key := range append([]string{f.key}, f.aliases...) {
			v, ok := raw[key]
			if !ok {
				continue
			}
			delete(raw, key)
			if s, ok := decodeString(v); ok && *f.ptr(p) == "" {
				*f.ptr(p) = s
			}
		}
	}
	if v, ok := raw["side"]; ok {
		delete(raw, "side")
		if s, ok := decodeString(v); ok {
			if side, err := ParseSide(s); err == nil {
				p.Side = side
			} else {
				p.Side = Side(strings.ToUpper(strings.TrimSpace(s)))
			}
		}
	}
	for _, f := range numberFields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if n, ok := ParseNumber(v); ok {
			*f.ptr(p) = &n
			delete(raw, f.key)
		} else if isBlank(v) {
			delete(raw, f.key)
		}
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

// Clone returns a deep copy of p.
func (p Position) Clone() Position {
	c := p
	for _, f := range numberFields {
		if v := *f.ptr(&p); v != nil {
			*f.ptr(&c) = Float(*v)
		}
	}
	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// Overlay returns a copy of p with the fields present in live applied on top.
// Identity and registration fields already set on p are kept, so a frozen
// target survives a snapshot whose writer recomputed it. Gains are never
// taken from live; callers recompute them.
func (p Position) Overlay(live Position) Position {
	out := p.Clone()
	l := live.Clone()

	keep := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	keep(&out.ID, l.ID)
	keep(&out.Par, l.Par)
	keep(&out.DataReg, l.DataReg)
	keep(&out.HoraReg, l.HoraReg)
	keep(&out.CreatedTsUTC, l.CreatedTsUTC)
	keep(&out.ProUpdatedBRT, l.ProUpdatedBRT)
	keep(&out.AlvoFonte, l.AlvoFonte)
	if out.Side == "" {
		out.Side = l.Side
	}
	if out.Entrada == nil {
		out.Entrada = l.Entrada
	}
	if out.Alvo == nil {
		out.Alvo = l.Alvo
	}
	if out.Alav == nil {
		out.Alav = l.Alav
	}

	if l.Atual != nil {
		out.Atual = l.Atual
	}
	if l.Situacao != "" {
		out.Situacao = l.Situacao
	}
	if l.Data != "" {
		out.Data = l.Data
	}
	if l.Hora != "" {
		out.Hora = l.Hora
	}

	if len(l.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage, len(l.Extra))
		}
		for k, v := range l.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ParseNumber decodes a JSON number or a numeric string such as "30000" or
// "0,60". Non-finite values are rejected.
func ParseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return ParseNumberString(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, !math.IsNaN(n) && !math.IsInf(n, 0)
}

// ParseNumberString parses a decimal string, accepting a comma separator.
func ParseNumberString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isBlank(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}
	var s string
	return json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) == ""
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
