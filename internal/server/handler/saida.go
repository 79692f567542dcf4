package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/monitor"
	"github.com/alanyoungcy/autotrader-saida/internal/service"
)

// PositionService is the subset of service.PositionService the panel API
// needs.
type PositionService interface {
	Add(ctx context.Context, req service.AddRequest) (domain.Position, error)
	ListActive(ctx context.Context) ([]domain.Position, error)
	ListRealized(ctx context.Context) ([]domain.Position, error)
	MonitorView(ctx context.Context) (monitor.View, error)
	Exit(ctx context.Context, req service.ExitRequest) (domain.Position, error)
	Delete(ctx context.Context, id string, scope domain.Scope) (int, error)
	LookupTarget(ctx context.Context, par, side string) (domain.TargetQuote, error)
	RecentEvents(ctx context.Context, lastID string, count int) ([]service.RecordedEvent, error)
}

// SaidaHandler serves the /api/saida endpoints.
type SaidaHandler struct {
	svc    PositionService
	clock  domain.Clock
	logger *slog.Logger
}

// NewSaidaHandler creates a SaidaHandler.
func NewSaidaHandler(svc PositionService, clock domain.Clock, logger *slog.Logger) *SaidaHandler {
	return &SaidaHandler{svc: svc, clock: clock, logger: logger}
}

type addBody struct {
	Par     string          `json:"par"`
	Side    string          `json:"side"`
	Entrada json.RawMessage `json:"entrada"`
	Alav    json.RawMessage `json:"alav"`
}

type exitBody struct {
	ID         string          `json:"id"`
	PrecoSaida json.RawMessage `json:"preco_saida"`
	Price      json.RawMessage `json:"price"`
	Motivo     string          `json:"motivo"`
}

type deleteBody struct {
	ID    string `json:"id"`
	Scope string `json:"scope"`
}

// GetTarget resolves the current target for a pair without registering
// anything.
// GET /api/saida/alvo?par=ADA&side=LONG
func (h *SaidaHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.svc.LookupTarget(r.Context(), q.Get("par"), q.Get("side"))
	if err != nil {
		writeServiceError(w, r, h.logger, "target lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alvo": quote.Alvo, "target": quote})
}

// AddPosition registers a new active position.
// POST /api/saida/add
func (h *SaidaHandler) AddPosition(w http.ResponseWriter, r *http.Request) {
	var body addBody
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, r, h.logger, "add", err)
		return
	}
	entrada, err := optionalNumber(body.Entrada, "entrada")
	if err != nil {
		writeServiceError(w, r, h.logger, "add", err)
		return
	}
	alav, err := optionalNumber(body.Alav, "alav")
	if err != nil {
		writeServiceError(w, r, h.logger, "add", err)
		return
	}

	req := service.AddRequest{Par: body.Par, Side: body.Side, Alav: alav}
	if entrada != nil {
		req.Entrada = *entrada
	}
	pos, err := h.svc.Add(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "add", err)
		return
	}
	ops, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "add", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "op": pos, "ops": ops})
}

// ExitPosition moves an active position to the realized record.
// POST /api/saida/exit
func (h *SaidaHandler) ExitPosition(w http.ResponseWriter, r *http.Request) {
	var body exitBody
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, r, h.logger, "exit", err)
		return
	}
	raw := body.PrecoSaida
	if len(raw) == 0 || string(raw) == "null" {
		raw = body.Price
	}
	price, err := optionalNumber(raw, "preco_saida")
	if err != nil {
		writeServiceError(w, r, h.logger, "exit", err)
		return
	}

	pos, err := h.svc.Exit(r.Context(), service.ExitRequest{ID: body.ID, Price: price, Motivo: body.Motivo})
	if err != nil {
		writeServiceError(w, r, h.logger, "exit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "op": pos})
}

// DeletePosition removes a record from one partition.
// POST /api/saida/del, POST /api/saida/delete
func (h *SaidaHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	var body deleteBody
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, r, h.logger, "delete", err)
		return
	}
	scope, err := domain.ParseScope(body.Scope)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete", err)
		return
	}
	removed, err := h.svc.Delete(r.Context(), strings.TrimSpace(body.ID), scope)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete", err)
		return
	}
	resp := map[string]any{"ok": true, "removed": removed, "scope": scope}
	if scope == domain.ScopeActive {
		if ops, err := h.svc.ListActive(r.Context()); err == nil {
			resp["ops"] = ops
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListActive returns the active partition as stored.
// GET /api/saida/ops
func (h *SaidaHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	ops, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list active", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_brt": h.clock.Stamp(), "ops": ops})
}

// Monitor returns the active partition merged with live monitor data.
// GET /api/saida/monitor
func (h *SaidaHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.MonitorView(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "monitor", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListRealized returns the realized partition.
// GET /api/saida/real
func (h *SaidaHandler) ListRealized(w http.ResponseWriter, r *http.Request) {
	realized, err := h.svc.ListRealized(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list realized", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_brt": h.clock.Stamp(), "real": realized})
}

// ListEvents returns recent lifecycle events from the event stream.
// GET /api/saida/events?after=0&count=100
func (h *SaidaHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 100
	if n, err := strconv.Atoi(q.Get("count")); err == nil && n > 0 {
		count = min(n, 1000)
	}
	events, err := h.svc.RecentEvents(r.Context(), q.Get("after"), count)
	if err != nil {
		writeServiceError(w, r, h.logger, "events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": events})
}
