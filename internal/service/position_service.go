package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/gain"
	"github.com/alanyoungcy/autotrader-saida/internal/monitor"
)

// AddRequest is the input for PositionService.Add.
type AddRequest struct {
	Par     string
	Side    string
	Entrada float64
	Alav    *float64
}

// ExitRequest is the input for PositionService.Exit. A nil Price falls
// back to the last monitored price.
type ExitRequest struct {
	ID     string
	Price  *float64
	Motivo string
}

// PositionService manages the position lifecycle: registration against a
// frozen target, monitoring, exit into the realized record and deletion.
type PositionService struct {
	book    domain.PositionBook
	monitor domain.MonitorSource
	targets domain.TargetResolver
	events  *EventSink
	clock   domain.Clock
	logger  *slog.Logger
}

// NewPositionService creates a PositionService with all required dependencies.
// events may be nil.
func NewPositionService(
	book domain.PositionBook,
	monitorSrc domain.MonitorSource,
	targets domain.TargetResolver,
	events *EventSink,
	clock domain.Clock,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		book:    book,
		monitor: monitorSrc,
		targets: targets,
		events:  events,
		clock:   clock,
		logger:  logger.With(slog.String("component", "position_service")),
	}
}

// Add registers a new Active position. The target is resolved once here and
// never changes afterwards.
func (s *PositionService) Add(ctx context.Context, req AddRequest) (domain.Position, error) {
	par, err := domain.NormalizePar(req.Par)
	if err != nil {
		return domain.Position{}, err
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return domain.Position{}, err
	}
	if !positive(req.Entrada) {
		return domain.Position{}, fmt.Errorf("%w: entrada must be a positive number", domain.ErrValidation)
	}
	if req.Alav == nil || !positive(*req.Alav) {
		return domain.Position{}, fmt.Errorf("%w: alav must be a positive number", domain.ErrValidation)
	}

	quote, err := s.targets.Resolve(ctx, par, side)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: resolve target for %s %s: %w", par, side, err)
	}

	var pos domain.Position
	err = s.book.Update(ctx, func(l *domain.Ledger) error {
		if l.HasActivePar(par) {
			return fmt.Errorf("%w: %s is already in the active list", domain.ErrAlreadyExists, par)
		}
		now := s.clock.Time()
		date, hour := now.Format(domain.CivilDateLayout), now.Format(domain.CivilHourLayout)

		pos = domain.Position{
			ID:            uniqueID(l, par, now),
			Par:           par,
			Side:          side,
			Entrada:       domain.Float(req.Entrada),
			Alvo:          domain.Float(quote.Alvo),
			DataReg:       date,
			HoraReg:       hour,
			CreatedTsUTC:  now.UTC().Format(time.RFC3339),
			ProUpdatedBRT: quote.UpdatedBRT,
			AlvoFonte:     quote.Source,
			Alav:          domain.Float(*req.Alav),
		}
		l.Active = append(l.Active, pos)
		return nil
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: add %s: %w", par, err)
	}

	s.events.Emit(ctx, domain.LifecycleEvent{
		Event:      domain.EventPositionAdded,
		PositionID: pos.ID,
		Par:        pos.Par,
		Side:       pos.Side,
		Entrada:    pos.Entrada,
		Alvo:       pos.Alvo,
		At:         s.clock.Time(),
	})
	s.logger.InfoContext(ctx, "position added",
		slog.String("position_id", pos.ID),
		slog.String("par", pos.Par),
		slog.String("side", string(pos.Side)),
		slog.Float64("entrada", *pos.Entrada),
		slog.Float64("alvo", *pos.Alvo),
		slog.String("alvo_fonte", pos.AlvoFonte),
	)
	return pos, nil
}

// ListActive returns the Active partition.
func (s *PositionService) ListActive(ctx context.Context) ([]domain.Position, error) {
	l, err := s.book.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list active: %w", err)
	}
	return nonNil(l.Active), nil
}

// ListRealized returns the Realized partition in exit order.
func (s *PositionService) ListRealized(ctx context.Context) ([]domain.Position, error) {
	l, err := s.book.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list realized: %w", err)
	}
	return nonNil(l.Realized), nil
}

// MonitorView merges the Active partition with the latest monitor snapshot.
func (s *PositionService) MonitorView(ctx context.Context) (monitor.View, error) {
	l, err := s.book.Load(ctx)
	if err != nil {
		return monitor.View{}, fmt.Errorf("position_service: monitor view: %w", err)
	}
	snap, err := s.monitor.Load(ctx)
	if err != nil {
		return monitor.View{}, fmt.Errorf("position_service: load monitor snapshot: %w", err)
	}
	return monitor.BuildView(l.Active, snap, s.clock.Time()), nil
}

// Exit closes an Active position and moves it to the Realized partition in
// a single book write.
func (s *PositionService) Exit(ctx context.Context, req ExitRequest) (domain.Position, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return domain.Position{}, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if req.Price != nil && !positive(*req.Price) {
		return domain.Position{}, fmt.Errorf("%w: preco_saida must be a positive number", domain.ErrValidation)
	}
	motivo := strings.TrimSpace(req.Motivo)
	if motivo == "" {
		motivo = domain.MotivoManual
	}

	snap, err := s.monitor.Load(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: load monitor snapshot: %w", err)
	}

	var closed domain.Position
	err = s.book.Update(ctx, func(l *domain.Ledger) error {
		active, ok := l.FindActive(id)
		if !ok {
			return fmt.Errorf("%w: active position %q", domain.ErrNotFound, id)
		}

		closed = active.Clone()
		if live, ok := snap.Find(id); ok {
			closed = active.Overlay(live)
		}
		gain.Apply(&closed)

		now := s.clock.Time()
		closed.DataSair = now.Format(domain.CivilDateLayout)
		closed.HoraSair = now.Format(domain.CivilHourLayout)
		switch {
		case req.Price != nil:
			closed.PrecoSaida = domain.Float(*req.Price)
		case closed.Atual != nil:
			closed.PrecoSaida = domain.Float(*closed.Atual)
		default:
			closed.PrecoSaida = nil
		}
		closed.Motivo = motivo
		closed.StatusFinal = domain.StatusEncerrada
		closed.GanhoFinal = gain.PercentPtr(closed.Entrada, closed.PrecoSaida, closed.Side)

		l.Remove(domain.ScopeActive, id)
		l.Realized = append(l.Realized, closed)
		return nil
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: exit %s: %w", id, err)
	}

	s.events.Emit(ctx, domain.LifecycleEvent{
		Event:      domain.EventPositionExited,
		PositionID: closed.ID,
		Par:        closed.Par,
		Side:       closed.Side,
		Entrada:    closed.Entrada,
		Alvo:       closed.Alvo,
		PrecoSaida: closed.PrecoSaida,
		GanhoFinal: closed.GanhoFinal,
		Motivo:     closed.Motivo,
		At:         s.clock.Time(),
	})
	attrs := []any{
		slog.String("position_id", closed.ID),
		slog.String("par", closed.Par),
		slog.String("motivo", closed.Motivo),
	}
	if closed.GanhoFinal != nil {
		attrs = append(attrs, slog.Float64("ganho_final", *closed.GanhoFinal))
	}
	s.logger.InfoContext(ctx, "position exited", attrs...)
	return closed, nil
}

// Delete removes every record with id from the given partition. An id not
// present there is domain.ErrNotFound.
func (s *PositionService) Delete(ctx context.Context, id string, scope domain.Scope) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if scope == "" {
		scope = domain.ScopeActive
	}
	if scope != domain.ScopeActive && scope != domain.ScopeRealized {
		return 0, fmt.Errorf("%w: unknown scope %q", domain.ErrValidation, scope)
	}

	var (
		removed int
		par     string
	)
	err := s.book.Update(ctx, func(l *domain.Ledger) error {
		part := l.Active
		if scope == domain.ScopeRealized {
			part = l.Realized
		}
		for _, p := range part {
			if p.ID == id {
				par = p.Par
				break
			}
		}
		removed = l.Remove(scope, id)
		if removed == 0 {
			return fmt.Errorf("%w: %s position %q", domain.ErrNotFound, scope, id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("position_service: delete %s: %w", id, err)
	}

	s.events.Emit(ctx, domain.LifecycleEvent{
		Event:      domain.EventPositionDeleted,
		PositionID: id,
		Par:        par,
		Scope:      scope,
		Removed:    removed,
		At:         s.clock.Time(),
	})
	s.logger.InfoContext(ctx, "position deleted",
		slog.String("position_id", id),
		slog.String("scope", string(scope)),
		slog.Int("removed", removed),
	)
	return removed, nil
}

// LookupTarget resolves the current feed target without registering
// anything, for pre-filling the add form.
func (s *PositionService) LookupTarget(ctx context.Context, par, side string) (domain.TargetQuote, error) {
	p, err := domain.NormalizePar(par)
	if err != nil {
		return domain.TargetQuote{}, err
	}
	sd, err := domain.ParseSide(side)
	if err != nil {
		return domain.TargetQuote{}, err
	}
	q, err := s.targets.Resolve(ctx, p, sd)
	if err != nil {
		return domain.TargetQuote{}, fmt.Errorf("position_service: lookup target: %w", err)
	}
	return q, nil
}

// RecentEvents returns lifecycle events recorded after lastID.
func (s *PositionService) RecentEvents(ctx context.Context, lastID string, count int) ([]RecordedEvent, error) {
	return s.events.Recent(ctx, lastID, count)
}

// uniqueID returns {par}-{epoch millis}, bumping the millisecond while the
// id is already used in the ledger.
func uniqueID(l *domain.Ledger, par string, now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := fmt.Sprintf("%s-%d", par, ms)
		if !l.HasID(id) {
			return id
		}
		ms++
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func nonNil(ps []domain.Position) []domain.Position {
	if ps == nil {
		return []domain.Position{}
	}
	return ps
}
