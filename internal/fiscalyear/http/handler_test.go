package fiscalyearhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buchwerk/buchwerk/internal/fiscalyear"
	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/report"
)

type stubFiscal struct {
	year     fiscalyear.FiscalYear
	closeErr error
	result   fiscalyear.CloseResult
	reopened bool

	reopenReason string
}

func (s *stubFiscal) CreateYear(_ context.Context, companyID int64, year int) (fiscalyear.FiscalYear, error) {
	return fiscalyear.FiscalYear{ID: 7, CompanyID: companyID, Year: year,
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)}, nil
}

func (s *stubFiscal) Get(_ context.Context, id int64) (fiscalyear.FiscalYear, error) {
	if s.year.ID != id {
		return fiscalyear.FiscalYear{}, fiscalyear.ErrYearNotFound
	}
	return s.year, nil
}

func (s *stubFiscal) CreateOpeningBalance(context.Context, int64, int64) (ledger.JournalEntry, error) {
	return ledger.JournalEntry{ID: 42, Sequence: 0, Memo: "Eröffnungsbilanz 2025"}, nil
}

func (s *stubFiscal) Close(context.Context, int64, int64, fiscalyear.CloseOptions) (fiscalyear.CloseResult, error) {
	if s.closeErr != nil {
		return fiscalyear.CloseResult{}, s.closeErr
	}
	return s.result, nil
}

func (s *stubFiscal) Reopen(_ context.Context, _, _ int64, reason string) error {
	s.reopened = true
	s.reopenReason = reason
	return nil
}

type stubBalance struct{ snap report.Snapshot }

func (s stubBalance) Compute(context.Context, int64, int64) (report.Snapshot, error) {
	return s.snap, nil
}

type stubGuV struct{}

func (stubGuV) Compute(context.Context, int64, int64) (report.GuVSnapshot, error) {
	return report.GuVSnapshot{ResultLabel: report.LabelProfit}, nil
}

type stubReader struct{}

func (stubReader) PostedAccountBalances(context.Context, int64, int64) ([]report.AccountBalance, error) {
	return []report.AccountBalance{
		{Code: "1200", Name: "Bank", Debit: decimal.RequireFromString("100.00")},
		{Code: "8400", Name: "Erlöse", Credit: decimal.RequireFromString("100.00")},
	}, nil
}

// fakeReports is an in-memory reportCache recording invalidations.
type fakeReports struct {
	payloads    map[string][]byte
	sets        int
	invalidated bool
}

func newFakeReports() *fakeReports {
	return &fakeReports{payloads: map[string][]byte{}}
}

func (f *fakeReports) key(kind string, companyID, fiscalYearID int64) string {
	return fmt.Sprintf("%s:%d:%d", kind, companyID, fiscalYearID)
}

func (f *fakeReports) Get(_ context.Context, kind string, companyID, fiscalYearID int64, target any) (bool, error) {
	payload, ok := f.payloads[f.key(kind, companyID, fiscalYearID)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, target)
}

func (f *fakeReports) Set(_ context.Context, kind string, companyID, fiscalYearID int64, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.payloads[f.key(kind, companyID, fiscalYearID)] = payload
	f.sets++
	return nil
}

func (f *fakeReports) Invalidate(context.Context, int64, int64) error {
	f.invalidated = true
	f.payloads = map[string][]byte{}
	return nil
}

type fakeQueue struct{ warmups int }

func (f *fakeQueue) EnqueueReportWarmup(context.Context, int64, int64) error {
	f.warmups++
	return nil
}

func newTestRouter(fiscal *stubFiscal) chi.Router {
	h := NewHandler(slog.New(slog.DiscardHandler), fiscal, stubBalance{}, stubGuV{}, stubReader{})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func newCachedTestRouter(fiscal *stubFiscal, reports *fakeReports, queue *fakeQueue) chi.Router {
	h := NewHandler(slog.New(slog.DiscardHandler), fiscal, stubBalance{}, stubGuV{}, stubReader{}).
		WithReportCache(reports).
		WithQueue(queue)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestCreateYear(t *testing.T) {
	r := newTestRouter(&stubFiscal{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/fiscal-years",
		strings.NewReader(`{"companyId":1,"year":2025}`))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2025, resp["year"])
	assert.Equal(t, "2025-01-01", resp["startDate"])
	assert.Equal(t, string(fiscalyear.StatusOpen), resp["status"])
}

func TestCreateYearRejectsUnknownFields(t *testing.T) {
	r := newTestRouter(&stubFiscal{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/fiscal-years",
		strings.NewReader(`{"companyId":1,"year":2025,"bogus":true}`))
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetYearNotFound(t *testing.T) {
	r := newTestRouter(&stubFiscal{year: fiscalyear.FiscalYear{ID: 1}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fiscal-years/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseOutOfBalanceConflict(t *testing.T) {
	fiscal := &stubFiscal{closeErr: &fiscalyear.ImbalanceError{
		Aktiva:  decimal.RequireFromString("500.00"),
		Passiva: decimal.RequireFromString("480.00"),
	}}
	r := newTestRouter(fiscal)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fiscal-years/7/close", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Out Of Balance", problem["title"])
	assert.Contains(t, problem["detail"], "500.00")
	assert.Contains(t, problem["detail"], "480.00")
}

func TestCloseAlreadyClosedConflict(t *testing.T) {
	r := newTestRouter(&stubFiscal{closeErr: fiscalyear.ErrYearClosed})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fiscal-years/7/close", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReopen(t *testing.T) {
	fiscal := &stubFiscal{}
	r := newTestRouter(fiscal)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"reason":"Nachbuchung Abschreibungen"}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fiscal-years/7/reopen", body))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, fiscal.reopened)
	assert.Equal(t, "Nachbuchung Abschreibungen", fiscal.reopenReason)
}

func TestReopenRequiresReason(t *testing.T) {
	fiscal := &stubFiscal{}
	r := newTestRouter(fiscal)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fiscal-years/7/reopen", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, fiscal.reopened)
}

func TestTrialBalance(t *testing.T) {
	r := newTestRouter(&stubFiscal{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fiscal-years/7/trial-balance", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var tb report.TrialBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
}

func TestBalanceSheetFillsAndServesCache(t *testing.T) {
	reports := newFakeReports()
	r := newCachedTestRouter(&stubFiscal{}, reports, &fakeQueue{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fiscal-years/7/balance-sheet", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, reports.sets)

	// Second read comes from the cache; no further write happens.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fiscal-years/7/balance-sheet", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, reports.sets)
}

func TestCloseInvalidatesCacheAndQueuesWarmup(t *testing.T) {
	reports := newFakeReports()
	queue := &fakeQueue{}
	r := newCachedTestRouter(&stubFiscal{}, reports, queue)

	// Prime the cache, then close.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fiscal-years/7/guv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, reports.payloads)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fiscal-years/7/close", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, reports.invalidated)
	assert.Empty(t, reports.payloads)
	assert.Equal(t, 1, queue.warmups)
}
