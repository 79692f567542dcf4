package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClock(at time.Time) domain.Clock {
	loc, _ := time.LoadLocation(domain.DefaultTimezone)
	return domain.Clock{Loc: loc, Now: func() time.Time { return at }}
}

// memBook is an in-memory domain.PositionBook.
type memBook struct {
	mu     sync.Mutex
	ledger domain.Ledger
	writes int
}

func (b *memBook) Load(context.Context) (domain.Ledger, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneLedger(b.ledger), nil
}

func (b *memBook) Update(_ context.Context, fn func(*domain.Ledger) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := cloneLedger(b.ledger)
	if err := fn(&l); err != nil {
		return err
	}
	b.ledger = l
	b.writes++
	return nil
}

func cloneLedger(l domain.Ledger) domain.Ledger {
	out := domain.Ledger{UpdatedBRT: l.UpdatedBRT}
	for _, p := range l.Active {
		out.Active = append(out.Active, p.Clone())
	}
	for _, p := range l.Realized {
		out.Realized = append(out.Realized, p.Clone())
	}
	return out
}

type staticMonitor struct {
	snap domain.MonitorSnapshot
}

func (m *staticMonitor) Load(context.Context) (domain.MonitorSnapshot, error) {
	return m.snap, nil
}

// mapResolver resolves from a mutable par/side table.
type mapResolver struct {
	mu      sync.Mutex
	targets map[string]float64
	err     error
}

func (r *mapResolver) set(par string, side domain.Side, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.targets == nil {
		r.targets = make(map[string]float64)
	}
	r.targets[par+"/"+string(side)] = v
}

func (r *mapResolver) Resolve(_ context.Context, par string, side domain.Side) (domain.TargetQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.TargetQuote{}, r.err
	}
	v, ok := r.targets[par+"/"+string(side)]
	if !ok {
		return domain.TargetQuote{}, domain.ErrTargetNotFound
	}
	return domain.TargetQuote{Par: par, Side: side, Alvo: v, UpdatedBRT: "2024-05-01 09:00", Source: "pro"}, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	stream    []domain.StreamMessage
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *recordingBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream = append(b.stream, domain.StreamMessage{ID: strconv.Itoa(len(b.stream)+1) + "-0", Payload: payload})
	return nil
}

func (b *recordingBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	after := lastID == "0"
	for _, m := range b.stream {
		if after {
			out = append(out, m)
			if count > 0 && len(out) == count {
				break
			}
		}
		if m.ID == lastID {
			after = true
		}
	}
	return out, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{ID: int64(len(a.entries) + 1), Event: event, Detail: detail})
	return nil
}

func (a *recordingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.entries...), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// blockingNotifier holds every delivery until release is closed or the
// delivery context ends.
type blockingNotifier struct {
	release chan struct{}
	calls   chan string
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{release: make(chan struct{}), calls: make(chan string, 16)}
}

func (n *blockingNotifier) Notify(ctx context.Context, event, _, _ string) error {
	n.calls <- event
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
