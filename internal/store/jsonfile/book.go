package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// BookConfig locates the book and tunes the optional distributed lock.
type BookConfig struct {
	Path               string
	LegacyRealizedPath string
	LockKey            string
	LockTTL            time.Duration
	LockMaxTries       uint
	LockRetryInterval  time.Duration
}

// bookDocument is the on-disk layout. Active keeps the "ops" key read by
// the refresh worker. A nil Real marks a book written before the realized
// partition existed.
type bookDocument struct {
	UpdatedBRT string             `json:"updated_brt,omitempty"`
	Ops        []domain.Position  `json:"ops"`
	Real       *[]domain.Position `json:"real,omitempty"`
}

// Book is a domain.PositionBook backed by a single JSON file.
type Book struct {
	cfg    BookConfig
	clock  domain.Clock
	locker domain.LockManager
	logger *slog.Logger
	mu     sync.Mutex
}

// NewBook creates a Book. locker may be nil, in which case only the
// in-process mutex serialises writers.
func NewBook(cfg BookConfig, clock domain.Clock, locker domain.LockManager, logger *slog.Logger) *Book {
	if cfg.LockKey == "" {
		cfg.LockKey = "saida:book"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockMaxTries == 0 {
		cfg.LockMaxTries = 8
	}
	if cfg.LockRetryInterval <= 0 {
		cfg.LockRetryInterval = 50 * time.Millisecond
	}
	return &Book{
		cfg:    cfg,
		clock:  clock,
		locker: locker,
		logger: logger.With(slog.String("component", "position_book")),
	}
}

// Load implements domain.PositionBook.
func (b *Book) Load(ctx context.Context) (domain.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ledger{}, err
	}
	return b.read()
}

// Update implements domain.PositionBook. fn sees the current ledger; when
// it returns nil the whole document is replaced in one rename.
func (b *Book) Update(ctx context.Context, fn func(*domain.Ledger) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locker != nil {
		unlock, err := b.acquire(ctx)
		if err != nil {
			return err
		}
		defer unlock()
	}

	ledger, err := b.read()
	if err != nil {
		return err
	}
	if err := fn(&ledger); err != nil {
		return err
	}
	ledger.UpdatedBRT = b.clock.Stamp()

	realized := ledger.Realized
	if realized == nil {
		realized = []domain.Position{}
	}
	doc := bookDocument{UpdatedBRT: ledger.UpdatedBRT, Ops: ledger.Active, Real: &realized}
	if doc.Ops == nil {
		doc.Ops = []domain.Position{}
	}
	if err := writeJSONAtomic(b.cfg.Path, doc); err != nil {
		return fmt.Errorf("jsonfile: write book: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (b *Book) acquire(ctx context.Context) (func(), error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.cfg.LockRetryInterval
	policy.MaxInterval = b.cfg.LockRetryInterval * 10

	notify := func(err error, wait time.Duration) {
		b.logger.Debug("book lock busy", slog.String("error", err.Error()), slog.Duration("backoff", wait))
	}
	operation := func() (func(), error) {
		unlock, err := b.locker.Acquire(ctx, b.cfg.LockKey, b.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return unlock, nil
	}

	unlock, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(b.cfg.LockMaxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("jsonfile: acquire %s: %w: %w", b.cfg.LockKey, domain.ErrStorage, err)
	}
	return unlock, nil
}

func (b *Book) read() (domain.Ledger, error) {
	data, err := os.ReadFile(b.cfg.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.Ledger{}, fmt.Errorf("jsonfile: read book: %w: %v", domain.ErrStorage, err)
	}

	var doc bookDocument
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return domain.Ledger{}, fmt.Errorf("jsonfile: decode %s: %w: %v", b.cfg.Path, domain.ErrStorage, err)
		}
	}

	ledger := domain.Ledger{UpdatedBRT: doc.UpdatedBRT, Active: doc.Ops}
	if doc.Real != nil {
		ledger.Realized = *doc.Real
		return ledger, nil
	}
	legacy, err := b.readLegacyRealized()
	if err != nil {
		return domain.Ledger{}, err
	}
	ledger.Realized = legacy
	return ledger, nil
}

// readLegacyRealized imports records from a standalone realized file, which
// may be a bare array or hold the array under "real", "history" or "ops".
func (b *Book) readLegacyRealized() ([]domain.Position, error) {
	if b.cfg.LegacyRealizedPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(b.cfg.LegacyRealizedPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read legacy realized: %w: %v", domain.ErrStorage, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []domain.Position
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("jsonfile: decode legacy realized: %w: %v", domain.ErrStorage, err)
		}
	} else {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("jsonfile: decode legacy realized: %w: %v", domain.ErrStorage, err)
		}
		for _, key := range []string{"real", "history", "ops"} {
			raw, ok := wrapped[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("jsonfile: decode legacy realized %q: %w: %v", key, domain.ErrStorage, err)
			}
			break
		}
	}
	if len(records) > 0 {
		b.logger.Info("imported legacy realized records",
			slog.String("path", b.cfg.LegacyRealizedPath),
			slog.Int("count", len(records)),
		)
	}
	return records, nil
}
