package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
	"github.com/alanyoungcy/autotrader-saida/internal/monitor"
	"github.com/alanyoungcy/autotrader-saida/internal/service"
)

type fakeService struct {
	addReq    service.AddRequest
	exitReq   service.ExitRequest
	delID     string
	delScope  domain.Scope
	active    []domain.Position
	err       error
	quote     domain.TargetQuote
	events    []service.RecordedEvent
	lastAfter string
}

func (f *fakeService) Add(_ context.Context, req service.AddRequest) (domain.Position, error) {
	f.addReq = req
	if f.err != nil {
		return domain.Position{}, f.err
	}
	pos := domain.Position{ID: "ADA-1", Par: "ADA", Side: domain.SideLong, Entrada: domain.Float(req.Entrada), Alvo: domain.Float(0.6)}
	f.active = append(f.active, pos)
	return pos, nil
}

func (f *fakeService) ListActive(context.Context) ([]domain.Position, error) {
	return f.active, nil
}

func (f *fakeService) ListRealized(context.Context) ([]domain.Position, error) {
	return []domain.Position{}, f.err
}

func (f *fakeService) MonitorView(context.Context) (monitor.View, error) {
	return monitor.View{UpdatedBRT: "2024-05-01 10:30", Ops: f.active}, f.err
}

func (f *fakeService) Exit(_ context.Context, req service.ExitRequest) (domain.Position, error) {
	f.exitReq = req
	if f.err != nil {
		return domain.Position{}, f.err
	}
	return domain.Position{ID: req.ID, StatusFinal: domain.StatusEncerrada}, nil
}

func (f *fakeService) Delete(_ context.Context, id string, scope domain.Scope) (int, error) {
	f.delID, f.delScope = id, scope
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeService) LookupTarget(context.Context, string, string) (domain.TargetQuote, error) {
	return f.quote, f.err
}

func (f *fakeService) RecentEvents(_ context.Context, after string, _ int) ([]service.RecordedEvent, error) {
	f.lastAfter = after
	return f.events, f.err
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testClock() domain.Clock {
	loc, _ := time.LoadLocation(domain.DefaultTimezone)
	return domain.Clock{Loc: loc, Now: func() time.Time { return time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC) }}
}

func newSaida(svc *fakeService) *SaidaHandler {
	return NewSaidaHandler(svc, testClock(), testLogger())
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrTargetNotFound, http.StatusNotFound},
		{domain.ErrTargetInvalid, http.StatusNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{fmt.Errorf("x: %w", domain.ErrSourceUnavailable), http.StatusServiceUnavailable},
		{domain.ErrStorage, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAddPositionAcceptsNumericStrings(t *testing.T) {
	svc := &fakeService{}
	rec := post(t, newSaida(svc).AddPosition, `{"par":"ada","side":"LONG","entrada":"0,5","alav":10}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada", svc.addReq.Par)
	assert.InDelta(t, 0.5, svc.addReq.Entrada, 1e-12)
	require.NotNil(t, svc.addReq.Alav)
	assert.InDelta(t, 10, *svc.addReq.Alav, 1e-12)

	out := decode(t, rec)
	assert.Equal(t, true, out["ok"])
	assert.Len(t, out["ops"], 1)
}

func TestAddPositionErrors(t *testing.T) {
	t.Run("bad entrada", func(t *testing.T) {
		rec := post(t, newSaida(&fakeService{}).AddPosition, `{"par":"ADA","side":"LONG","entrada":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, false, out["ok"])
		assert.Contains(t, out["msg"], "entrada")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(t, newSaida(&fakeService{}).AddPosition, `{"par":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"par":"` + strings.Repeat("A", maxBodyBytes) + `"}`
		rec := post(t, newSaida(&fakeService{}).AddPosition, big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		svc := &fakeService{err: fmt.Errorf("svc: %w", domain.ErrAlreadyExists)}
		rec := post(t, newSaida(svc).AddPosition, `{"par":"ADA","side":"LONG","entrada":0.5}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("storage failure hides detail", func(t *testing.T) {
		svc := &fakeService{err: fmt.Errorf("%w: disk full at /data", domain.ErrStorage)}
		rec := post(t, newSaida(svc).AddPosition, `{"par":"ADA","side":"LONG","entrada":0.5}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/data")
	})
}

func TestExitPositionPriceAliases(t *testing.T) {
	svc := &fakeService{}
	rec := post(t, newSaida(svc).ExitPosition, `{"id":"ADA-1","price":"0.58"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.exitReq.Price)
	assert.InDelta(t, 0.58, *svc.exitReq.Price, 1e-12)

	rec = post(t, newSaida(svc).ExitPosition, `{"id":"ADA-1","preco_saida":0.61,"price":0.5,"motivo":"ALVO"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.61, *svc.exitReq.Price, 1e-12)
	assert.Equal(t, "ALVO", svc.exitReq.Motivo)

	rec = post(t, newSaida(svc).ExitPosition, `{"id":"ADA-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.exitReq.Price)
}

func TestDeletePositionScopes(t *testing.T) {
	svc := &fakeService{}
	rec := post(t, newSaida(svc).DeletePosition, `{"id":" ADA-1 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADA-1", svc.delID)
	assert.Equal(t, domain.ScopeActive, svc.delScope)
	assert.Contains(t, decode(t, rec), "ops")

	rec = post(t, newSaida(svc).DeletePosition, `{"id":"ADA-1","scope":"real"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ScopeRealized, svc.delScope)
	assert.EqualValues(t, 1, decode(t, rec)["removed"])

	rec = post(t, newSaida(svc).DeletePosition, `{"id":"ADA-1","scope":"archive"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = fmt.Errorf("svc: %w", domain.ErrNotFound)
	rec = post(t, newSaida(svc).DeletePosition, `{"id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTarget(t *testing.T) {
	svc := &fakeService{quote: domain.TargetQuote{Par: "ADA", Side: domain.SideLong, Alvo: 0.6, Source: "pro"}}
	rec := httptest.NewRecorder()
	newSaida(svc).GetTarget(rec, httptest.NewRequest(http.MethodGet, "/api/saida/alvo?par=ADA&side=LONG", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.6, decode(t, rec)["alvo"], 1e-12)

	svc.err = domain.ErrTargetNotFound
	rec = httptest.NewRecorder()
	newSaida(svc).GetTarget(rec, httptest.NewRequest(http.MethodGet, "/api/saida/alvo?par=ADA&side=LONG", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["msg"], "target")
}

func TestListActiveStampsUpdatedBRT(t *testing.T) {
	svc := &fakeService{active: []domain.Position{}}
	rec := httptest.NewRecorder()
	newSaida(svc).ListActive(rec, httptest.NewRequest(http.MethodGet, "/api/saida/ops", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated_brt":"2024-05-01 10:30","ops":[]}`, rec.Body.String())
}

func TestMonitorEmitsNullGains(t *testing.T) {
	svc := &fakeService{active: []domain.Position{{ID: "ADA-1", Par: "ADA"}}}
	rec := httptest.NewRecorder()
	newSaida(svc).Monitor(rec, httptest.NewRequest(http.MethodGet, "/api/saida/monitor", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated_brt":"2024-05-01 10:30","ops":[{"id":"ADA-1","par":"ADA","ganho_alvo":null,"ganho_atual":null}]}`, rec.Body.String())
}

func TestListEvents(t *testing.T) {
	svc := &fakeService{events: []service.RecordedEvent{{StreamID: "1-0"}}}
	rec := httptest.NewRecorder()
	newSaida(svc).ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/saida/events?after=0-5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0-5", svc.lastAfter)
	assert.Len(t, decode(t, rec)["events"], 1)
}

func TestVersionFallback(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "VERSION")

	h := NewVersionHandler(file, "build-7")
	assert.Equal(t, "build-7", h.Version())

	require.NoError(t, os.WriteFile(file, []byte("v2.3.1\n"), 0o644))
	assert.Equal(t, "v2.3.1", h.Version())

	assert.Equal(t, "unknown", NewVersionHandler("", "").Version())
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Checker{
		"redis": func(context.Context) error { return nil },
	}, testLogger())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler(map[string]Checker{
		"postgres": func(context.Context) error { return errors.New("refused") },
	}, testLogger())
	rec = httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

type fakeArchiver struct{ calls int }

func (f *fakeArchiver) ArchiveRealized(context.Context) (domain.ArchiveResult, error) {
	f.calls++
	return domain.ArchiveResult{Key: "saida/realized/x.jsonl", Records: 2}, nil
}

type fakeLister struct{ prefix string }

func (f *fakeLister) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.prefix = prefix
	return nil, nil
}

func TestArchiveHandler(t *testing.T) {
	arch, lister := &fakeArchiver{}, &fakeLister{}
	h := NewArchiveHandler(arch, lister, "saida/realized", testLogger())

	rec := httptest.NewRecorder()
	h.Archive(rec, httptest.NewRequest(http.MethodPost, "/api/saida/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, arch.calls)

	rec = httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/saida/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "saida/realized", lister.prefix)
	assert.JSONEq(t, `{"ok":true,"archives":[]}`, rec.Body.String())
}

type fakeAudit struct{ byID string }

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAudit) ListByPosition(_ context.Context, id string, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	f.byID = id
	return []domain.AuditEntry{{Event: domain.EventPositionAdded}}, nil
}

func TestAuditHandler(t *testing.T) {
	audit := &fakeAudit{}
	h := NewAuditHandler(audit, testLogger())

	rec := httptest.NewRecorder()
	h.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/api/saida/audit?id=ADA-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADA-1", audit.byID)
	assert.Len(t, decode(t, rec)["entries"], 1)

	rec = httptest.NewRecorder()
	h.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/api/saida/audit", nil))
	assert.JSONEq(t, `{"ok":true,"entries":[]}`, rec.Body.String())
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-1", nil)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 0}, parseListOpts(r))
}

func TestPanelHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saida.html"), []byte("<html>saida</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	h := NewPanelHandler(dir)

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/saida", nil))
	assert.Contains(t, rec.Body.String(), "saida")

	rec = httptest.NewRecorder()
	h.Dist(rec, httptest.NewRequest(http.MethodGet, "/dist/app.js", nil))
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = httptest.NewRecorder()
	h.Redirect(rec, httptest.NewRequest(http.MethodGet, "/saida2", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/saida", rec.Header().Get("Location"))
}
