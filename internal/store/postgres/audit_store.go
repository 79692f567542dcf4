package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// querier is the subset of pgxpool.Pool the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditStore implements domain.AuditStore on the audit_log table. The
// position_id and par columns are lifted out of the detail map so the log
// can be filtered per position.
type AuditStore struct {
	db querier
}

// NewAuditStore creates an AuditStore backed by db, normally Client.Pool().
func NewAuditStore(db querier) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}

	const query = `INSERT INTO audit_log (event, position_id, par, detail) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(ctx, query, event, nullableString(detail, "position_id"), nullableString(detail, "par"), detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return s.query(ctx, listQuery("", opts))
}

// ListByPosition returns the audit trail of one position, newest first.
func (s *AuditStore) ListByPosition(ctx context.Context, positionID string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return s.query(ctx, listQuery(positionID, opts))
}

type builtQuery struct {
	sql  string
	args []any
}

func listQuery(positionID string, opts domain.ListOpts) builtQuery {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if positionID != "" {
		add("position_id = $%d", positionID)
	}
	if opts.Since != nil {
		add("created_at >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		add("created_at <= $%d", *opts.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT id, event, detail, created_at FROM audit_log")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return builtQuery{sql: b.String(), args: args}
}

func (s *AuditStore) query(ctx context.Context, q builtQuery) ([]domain.AuditEntry, error) {
	rows, err := s.db.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e          domain.AuditEntry
			detailJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

func nullableString(detail map[string]any, key string) *string {
	s, ok := detail[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
