// Package fiscalyearhttp exposes the fiscal year lifecycle and the derived
// reports over a JSON API.
package fiscalyearhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/buchwerk/buchwerk/internal/fiscalyear"
	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/platform/httpx"
	"github.com/buchwerk/buchwerk/internal/report"
)

type fiscalService interface {
	CreateYear(ctx context.Context, companyID int64, year int) (fiscalyear.FiscalYear, error)
	Get(ctx context.Context, fiscalYearID int64) (fiscalyear.FiscalYear, error)
	CreateOpeningBalance(ctx context.Context, companyID, fiscalYearID int64) (ledger.JournalEntry, error)
	Close(ctx context.Context, companyID, fiscalYearID int64, opts fiscalyear.CloseOptions) (fiscalyear.CloseResult, error)
	Reopen(ctx context.Context, companyID, fiscalYearID int64, reason string) error
}

type balanceService interface {
	Compute(ctx context.Context, companyID, fiscalYearID int64) (report.Snapshot, error)
}

type guvService interface {
	Compute(ctx context.Context, companyID, fiscalYearID int64) (report.GuVSnapshot, error)
}

type trialBalanceReader interface {
	PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]report.AccountBalance, error)
}

// reportCache caches computed report payloads between postings.
type reportCache interface {
	Get(ctx context.Context, kind string, companyID, fiscalYearID int64, target any) (bool, error)
	Set(ctx context.Context, kind string, companyID, fiscalYearID int64, value any) error
	Invalidate(ctx context.Context, companyID, fiscalYearID int64) error
}

// taskQueue submits background work after lifecycle operations.
type taskQueue interface {
	EnqueueReportWarmup(ctx context.Context, companyID, fiscalYearID int64) error
}

// Handler wires the fiscal year JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	fiscal   fiscalService
	balance  balanceService
	guv      guvService
	tb       trialBalanceReader
	reports  reportCache
	queue    taskQueue
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, fiscal fiscalService, balance balanceService, guv guvService, tb trialBalanceReader) *Handler {
	return &Handler{
		logger:   logger,
		fiscal:   fiscal,
		balance:  balance,
		guv:      guv,
		tb:       tb,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithReportCache serves balance sheet and GuV reads through the cache and
// invalidates it on lifecycle operations.
func (h *Handler) WithReportCache(c reportCache) *Handler {
	h.reports = c
	return h
}

// WithQueue enqueues report warmups after openings, closes, and reopens.
func (h *Handler) WithQueue(q taskQueue) *Handler {
	h.queue = q
	return h
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/fiscal-years", func(r chi.Router) {
		r.Post("/", h.createYear)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getYear)
			r.Post("/opening-balance", h.postOpening)
			r.Post("/close", h.closeYear)
			r.Post("/reopen", h.reopenYear)
			r.Get("/balance-sheet", h.balanceSheet)
			r.Get("/guv", h.guvReport)
			r.Get("/trial-balance", h.trialBalance)
		})
	})
}

type createYearRequest struct {
	CompanyID int64 `json:"companyId" validate:"required,gt=0"`
	Year      int   `json:"year" validate:"required,gte=1900,lte=9999"`
}

type yearResponse struct {
	ID              int64             `json:"id"`
	CompanyID       int64             `json:"companyId"`
	Year            int               `json:"year"`
	StartDate       string            `json:"startDate"`
	EndDate         string            `json:"endDate"`
	Status          fiscalyear.Status `json:"status"`
	OpeningPostedAt *string           `json:"openingPostedAt,omitempty"`
	ClosedAt        *string           `json:"closedAt,omitempty"`
}

func toYearResponse(fy fiscalyear.FiscalYear) yearResponse {
	resp := yearResponse{
		ID:        fy.ID,
		CompanyID: fy.CompanyID,
		Year:      fy.Year,
		StartDate: fy.StartDate.Format("2006-01-02"),
		EndDate:   fy.EndDate.Format("2006-01-02"),
		Status:    fy.Status(),
	}
	if fy.OpeningPostedAt != nil {
		s := fy.OpeningPostedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.OpeningPostedAt = &s
	}
	if fy.ClosedAt != nil {
		s := fy.ClosedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.ClosedAt = &s
	}
	return resp
}

func (h *Handler) createYear(w http.ResponseWriter, r *http.Request) {
	var req createYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	fy, err := h.fiscal.CreateYear(r.Context(), req.CompanyID, req.Year)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toYearResponse(fy))
}

func (h *Handler) getYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	fy, err := h.fiscal.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toYearResponse(fy))
}

type openingResponse struct {
	EntryID  int64  `json:"entryId"`
	Sequence int64  `json:"sequence"`
	Lines    int    `json:"lines"`
	Memo     string `json:"memo"`
}

func (h *Handler) postOpening(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	companyID := h.companyID(r)
	entry, err := h.fiscal.CreateOpeningBalance(r.Context(), companyID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.refreshReports(r.Context(), companyID, id)
	httpx.JSON(w, http.StatusCreated, openingResponse{
		EntryID:  entry.ID,
		Sequence: entry.Sequence,
		Lines:    len(entry.Lines),
		Memo:     entry.Memo,
	})
}

type closeRequest struct {
	CarryForward bool `json:"carryForward"`
}

type closeResponse struct {
	EntryID        int64           `json:"entryId,omitempty"`
	CarriedForward bool            `json:"carriedForward"`
	Snapshot       report.Snapshot `json:"snapshot"`
}

func (h *Handler) closeYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	var req closeRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	companyID := h.companyID(r)
	result, err := h.fiscal.Close(r.Context(), companyID, id, fiscalyear.CloseOptions{CarryForward: req.CarryForward})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.refreshReports(r.Context(), companyID, id)
	httpx.JSON(w, http.StatusOK, closeResponse{
		EntryID:        result.Entry.ID,
		CarriedForward: result.CarriedForward,
		Snapshot:       result.Snapshot,
	})
}

type reopenRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *Handler) reopenYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	var req reopenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	companyID := h.companyID(r)
	if err := h.fiscal.Reopen(r.Context(), companyID, id, req.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.refreshReports(r.Context(), companyID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	companyID := h.companyID(r)
	var snap report.Snapshot
	if !h.cachedReport(r.Context(), "balance", companyID, id, &snap) {
		var err error
		snap, err = h.balance.Compute(r.Context(), companyID, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.storeReport(r.Context(), "balance", companyID, id, snap)
	}
	// view=display formats amounts with the German locale for direct
	// rendering.
	if r.URL.Query().Get("view") == "display" {
		httpx.JSON(w, http.StatusOK, report.NewBalanceSheetView(report.NewFormatter(), snap))
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) guvReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	companyID := h.companyID(r)
	var snap report.GuVSnapshot
	if !h.cachedReport(r.Context(), "guv", companyID, id, &snap) {
		var err error
		snap, err = h.guv.Compute(r.Context(), companyID, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.storeReport(r.Context(), "guv", companyID, id, snap)
	}
	httpx.JSON(w, http.StatusOK, snap)
}

// cachedReport loads a report from the cache, tolerating cache failures.
func (h *Handler) cachedReport(ctx context.Context, kind string, companyID, fiscalYearID int64, target any) bool {
	if h.reports == nil {
		return false
	}
	hit, err := h.reports.Get(ctx, kind, companyID, fiscalYearID, target)
	if err != nil {
		h.logger.Warn("report cache read", slog.String("kind", kind), slog.Any("error", err))
		return false
	}
	return hit
}

func (h *Handler) storeReport(ctx context.Context, kind string, companyID, fiscalYearID int64, value any) {
	if h.reports == nil {
		return
	}
	if err := h.reports.Set(ctx, kind, companyID, fiscalYearID, value); err != nil {
		h.logger.Warn("report cache write", slog.String("kind", kind), slog.Any("error", err))
	}
}

// refreshReports drops cached reports made stale by a lifecycle operation
// and queues a warmup so the next read is cheap again. Best effort: cache
// and queue failures never fail the operation that triggered them.
func (h *Handler) refreshReports(ctx context.Context, companyID, fiscalYearID int64) {
	if h.reports != nil {
		if err := h.reports.Invalidate(ctx, companyID, fiscalYearID); err != nil {
			h.logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	if h.queue != nil {
		if err := h.queue.EnqueueReportWarmup(ctx, companyID, fiscalYearID); err != nil {
			h.logger.Warn("enqueue report warmup", slog.Any("error", err))
		}
	}
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.yearID(w, r)
	if !ok {
		return
	}
	balances, err := h.tb.PostedAccountBalances(r.Context(), h.companyID(r), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report.BuildTrialBalance(balances))
}

func (h *Handler) yearID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year id")
		return 0, false
	}
	return id, true
}

func (h *Handler) companyID(r *http.Request) int64 {
	if raw := r.URL.Query().Get("company"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var imbalance *fiscalyear.ImbalanceError
	switch {
	case errors.As(err, &imbalance):
		httpx.Problem(w, http.StatusConflict, "Out Of Balance", imbalance.Error())
	case errors.Is(err, fiscalyear.ErrYearNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, fiscalyear.ErrYearExists),
		errors.Is(err, fiscalyear.ErrSnapshotExists),
		errors.Is(err, fiscalyear.ErrOpeningAlreadyPosted),
		errors.Is(err, fiscalyear.ErrYearClosed),
		errors.Is(err, fiscalyear.ErrYearNotClosed),
		errors.Is(err, fiscalyear.ErrOpeningNotPosted),
		errors.Is(err, fiscalyear.ErrNextYearOpened):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, fiscalyear.ErrNoClosingSnapshot),
		errors.Is(err, fiscalyear.ErrDateOutOfRange),
		errors.Is(err, fiscalyear.ErrReasonRequired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("fiscal year request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
