package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// Notifier delivers operator alerts for an event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// EventSinkConfig names the bus channel and stream for lifecycle events.
// NotifyTimeout bounds one notifier delivery and NotifyConcurrency caps the
// deliveries in flight.
type EventSinkConfig struct {
	Channel           string
	Stream            string
	NotifyTimeout     time.Duration
	NotifyConcurrency int
}

// EventSink fans lifecycle events out to the signal bus, the audit log and
// the notifier. Any of them may be nil. Failures are logged and never
// fail the operation that produced the event. Notifier deliveries run in
// the background; Flush waits for them.
type EventSink struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	cfg      EventSinkConfig
	logger   *slog.Logger

	slots    chan struct{}
	inflight sync.WaitGroup
}

// NewEventSink creates an EventSink.
func NewEventSink(cfg EventSinkConfig, bus domain.SignalBus, audit domain.AuditStore, notifier Notifier, logger *slog.Logger) *EventSink {
	if cfg.Channel == "" {
		cfg.Channel = "positions"
	}
	if cfg.Stream == "" {
		cfg.Stream = "saida:events"
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	if cfg.NotifyConcurrency <= 0 {
		cfg.NotifyConcurrency = 8
	}
	return &EventSink{
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "event_sink")),
		slots:    make(chan struct{}, cfg.NotifyConcurrency),
	}
}

// Emit publishes evt everywhere it is configured to go.
func (s *EventSink) Emit(ctx context.Context, evt domain.LifecycleEvent) {
	if s == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, s.cfg.Channel, payload); err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", evt.Event),
				slog.String("position_id", evt.PositionID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, s.cfg.Stream, payload); err != nil {
			s.logger.WarnContext(ctx, "stream append failed",
				slog.String("event", evt.Event),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, evt.Event, evt.Detail()); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("position_id", evt.PositionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		s.notify(ctx, evt)
	}
}

// notify hands evt to the notifier on its own goroutine. When every slot is
// busy the alert is dropped.
func (s *EventSink) notify(ctx context.Context, evt domain.LifecycleEvent) {
	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.WarnContext(ctx, "notify dropped, deliveries saturated",
			slog.String("event", evt.Event),
			slog.String("position_id", evt.PositionID),
		)
		return
	}

	title, message := describe(evt)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() { <-s.slots }()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(nctx, evt.Event, title, message); err != nil {
			s.logger.WarnContext(nctx, "notify failed",
				slog.String("event", evt.Event),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Flush blocks until every background notifier delivery has finished.
func (s *EventSink) Flush() {
	if s == nil {
		return
	}
	s.inflight.Wait()
}

// Recent returns up to count events appended after lastID ("0" for the
// start of the stream). Without a bus it returns nothing.
func (s *EventSink) Recent(ctx context.Context, lastID string, count int) ([]RecordedEvent, error) {
	if s == nil || s.bus == nil {
		return []RecordedEvent{}, nil
	}
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, s.cfg.Stream, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("event_sink: read stream: %w", err)
	}
	out := make([]RecordedEvent, 0, len(msgs))
	for _, m := range msgs {
		var evt domain.LifecycleEvent
		if err := json.Unmarshal(m.Payload, &evt); err != nil {
			s.logger.WarnContext(ctx, "skipping malformed stream entry", slog.String("id", m.ID))
			continue
		}
		out = append(out, RecordedEvent{StreamID: m.ID, LifecycleEvent: evt})
	}
	return out, nil
}

// RecordedEvent is a lifecycle event with its stream id.
type RecordedEvent struct {
	StreamID string `json:"stream_id"`
	domain.LifecycleEvent
}

func describe(evt domain.LifecycleEvent) (string, string) {
	var title string
	switch evt.Event {
	case domain.EventPositionAdded:
		title = fmt.Sprintf("Position added: %s %s", evt.Par, evt.Side)
	case domain.EventPositionExited:
		title = fmt.Sprintf("Position exited: %s %s", evt.Par, evt.Side)
	case domain.EventPositionDeleted:
		title = fmt.Sprintf("Position deleted: %s", evt.Par)
	default:
		title = evt.Event
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", evt.PositionID)
	if evt.Entrada != nil {
		fmt.Fprintf(&b, "entrada: %g\n", *evt.Entrada)
	}
	if evt.Alvo != nil {
		fmt.Fprintf(&b, "alvo: %g\n", *evt.Alvo)
	}
	if evt.PrecoSaida != nil {
		fmt.Fprintf(&b, "preco_saida: %g\n", *evt.PrecoSaida)
	}
	if evt.GanhoFinal != nil {
		fmt.Fprintf(&b, "ganho_final: %.2f%%\n", *evt.GanhoFinal)
	}
	if evt.Motivo != "" {
		fmt.Fprintf(&b, "motivo: %s\n", evt.Motivo)
	}
	if evt.Scope != "" {
		fmt.Fprintf(&b, "scope: %s\n", evt.Scope)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
