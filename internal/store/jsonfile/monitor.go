package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// MonitorFile reads the snapshot written by the external refresh worker.
type MonitorFile struct {
	path   string
	logger *slog.Logger
}

// NewMonitorFile creates a MonitorFile for path.
func NewMonitorFile(path string, logger *slog.Logger) *MonitorFile {
	return &MonitorFile{
		path:   path,
		logger: logger.With(slog.String("component", "monitor_file")),
	}
}

// Load implements domain.MonitorSource. A missing snapshot is empty; an
// unreadable or corrupt one is logged and treated as empty.
func (m *MonitorFile) Load(ctx context.Context) (domain.MonitorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MonitorSnapshot{}, err
	}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.MonitorSnapshot{}, nil
	}
	if err != nil {
		m.logger.Warn("monitor snapshot unreadable", slog.String("path", m.path), slog.String("error", err.Error()))
		return domain.MonitorSnapshot{}, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.MonitorSnapshot{}, nil
	}

	var snap domain.MonitorSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("monitor snapshot corrupt", slog.String("path", m.path), slog.String("error", err.Error()))
		return domain.MonitorSnapshot{}, nil
	}
	return snap, nil
}
