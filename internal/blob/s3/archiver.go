package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 * 1024 * 1024
)

// RealizedSource provides the records to archive.
type RealizedSource interface {
	ListRealized(ctx context.Context) ([]domain.Position, error)
}

// Archiver implements domain.Archiver. Each run uploads a full JSONL
// snapshot of the Realized partition; the book itself is left unchanged.
type Archiver struct {
	writer domain.BlobWriter
	source RealizedSource
	audit  domain.AuditStore
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, source RealizedSource, audit domain.AuditStore, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		source: source,
		audit:  audit,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRealized uploads the Realized partition to
// {prefix}/realized/YYYY/MM/realized-YYYYMMDDTHHMMSSZ.jsonl.
func (a *Archiver) ArchiveRealized(ctx context.Context) (domain.ArchiveResult, error) {
	records, err := a.source.ListRealized(ctx)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized query: %w", err)
	}
	if len(records) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive")
		return domain.ArchiveResult{}, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized marshal: %w", err)
	}

	at := a.now().UTC()
	key := archiveKey(a.prefix, at)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized upload: %w", err)
	}

	res := domain.ArchiveResult{Key: key, Records: len(records), Bytes: int64(len(buf)), UploadedAt: at}
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.realized", map[string]any{
			"path":  key,
			"count": res.Records,
			"bytes": res.Bytes,
		}); err != nil {
			a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	a.logger.InfoContext(ctx, "realized history archived",
		slog.String("key", key),
		slog.Int("records", res.Records),
		slog.Int64("bytes", res.Bytes),
	)
	return res, nil
}

func archiveKey(prefix string, at time.Time) string {
	return path.Join(prefix, "realized", at.Format("2006"), at.Format("01"),
		"realized-"+at.Format("20060102T150405Z")+".jsonl")
}

// marshalJSONL encodes one JSON document per line.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
