package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Scope names one partition of the position book.
type Scope string

const (
	ScopeActive   Scope = "active"
	ScopeRealized Scope = "realized"
)

// ParseScope maps user input to a Scope. Empty input means active.
func ParseScope(raw string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "active", "ops":
		return ScopeActive, nil
	case "realized", "real":
		return ScopeRealized, nil
	}
	return "", fmt.Errorf("%w: scope must be active or realized, got %q", ErrValidation, raw)
}

// Ledger is the decoded position book: the Active and Realized partitions
// of one document.
type Ledger struct {
	UpdatedBRT string
	Active     []Position
	Realized   []Position
}

// FindActive returns the Active position with the given id.
func (l *Ledger) FindActive(id string) (Position, bool) {
	for _, p := range l.Active {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// HasActivePar reports whether an Active position already tracks par.
func (l *Ledger) HasActivePar(par string) bool {
	for _, p := range l.Active {
		if p.Par == par {
			return true
		}
	}
	return false
}

// HasID reports whether id is used in either partition.
func (l *Ledger) HasID(id string) bool {
	for _, p := range l.Active {
		if p.ID == id {
			return true
		}
	}
	for _, p := range l.Realized {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Remove drops every record with id from the given partition and returns
// how many were removed.
func (l *Ledger) Remove(scope Scope, id string) int {
	part := &l.Active
	if scope == ScopeRealized {
		part = &l.Realized
	}
	kept := (*part)[:0]
	removed := 0
	for _, p := range *part {
		if p.ID == id {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	*part = kept
	return removed
}

// PositionBook persists the Ledger. Update runs fn on a freshly loaded
// ledger and writes the result atomically when fn returns nil.
type PositionBook interface {
	Load(ctx context.Context) (Ledger, error)
	Update(ctx context.Context, fn func(*Ledger) error) error
}

// MonitorSnapshot is the document written by the external refresh worker.
type MonitorSnapshot struct {
	UpdatedBRT string     `json:"updated_brt,omitempty"`
	Ops        []Position `json:"ops"`
}

// Find returns the snapshot row for id.
func (s MonitorSnapshot) Find(id string) (Position, bool) {
	for _, p := range s.Ops {
		if p.ID == id {
			return p, true
		}
	}
	return Position{}, false
}

// MonitorSource reads the latest monitor snapshot. A missing or unreadable
// snapshot is reported as an empty one.
type MonitorSource interface {
	Load(ctx context.Context) (MonitorSnapshot, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
