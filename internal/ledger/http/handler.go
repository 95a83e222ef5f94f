// Package ledgerhttp exposes journal posting over a JSON API.
package ledgerhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/fiscalyear"
	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/platform/httpx"
)

type ledgerService interface {
	PostEntry(ctx context.Context, input ledger.PostingInput) (ledger.JournalEntry, error)
	GetEntry(ctx context.Context, entryID int64) (ledger.JournalEntry, error)
	UpdateMemo(ctx context.Context, entryID int64, memo string) error
}

// reportCache invalidates cached reports after postings change the ledger.
type reportCache interface {
	Invalidate(ctx context.Context, companyID, fiscalYearID int64) error
}

// Handler wires the journal JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ledgerService
	reports  reportCache
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service ledgerService) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithReportCache drops cached reports of the posted year after each entry.
func (h *Handler) WithReportCache(c reportCache) *Handler {
	h.reports = c
	return h
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/journal-entries", func(r chi.Router) {
		r.Post("/", h.postEntry)
		r.Get("/{id}", h.getEntry)
		r.Patch("/{id}/memo", h.updateMemo)
	})
}

type postLineRequest struct {
	AccountCode string `json:"accountCode" validate:"required,numeric,min=4,max=5"`
	Amount      string `json:"amount" validate:"required"`
	Direction   string `json:"direction" validate:"required,oneof=DEBIT CREDIT"`
}

type postEntryRequest struct {
	CompanyID    int64             `json:"companyId" validate:"required,gt=0"`
	FiscalYearID int64             `json:"fiscalYearId" validate:"required,gt=0"`
	BookingDate  string            `json:"bookingDate" validate:"required,datetime=2006-01-02"`
	Memo         string            `json:"memo" validate:"max=500"`
	SourceRef    string            `json:"sourceRef" validate:"omitempty,uuid4"`
	Lines        []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type lineResponse struct {
	AccountCode string `json:"accountCode"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Sequence    int64          `json:"sequence"`
	BookingDate string         `json:"bookingDate"`
	EntryType   string         `json:"entryType"`
	Memo        string         `json:"memo"`
	SourceRef   string         `json:"sourceRef"`
	PostedAt    *time.Time     `json:"postedAt,omitempty"`
	Lines       []lineResponse `json:"lines"`
}

func toEntryResponse(entry ledger.JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          entry.ID,
		Sequence:    entry.Sequence,
		BookingDate: entry.BookingDate.Format("2006-01-02"),
		EntryType:   string(entry.EntryType),
		Memo:        entry.Memo,
		SourceRef:   entry.SourceRef.String(),
		PostedAt:    entry.PostedAt,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountCode: line.AccountCode,
			Amount:      line.Amount.StringFixed(2),
			Direction:   string(line.Direction),
		})
	}
	return resp
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := toPostingInput(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.reports != nil {
		if err := h.reports.Invalidate(r.Context(), input.CompanyID, input.FiscalYearID); err != nil {
			h.logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

type memoRequest struct {
	Memo string `json:"memo" validate:"max=500"`
}

func (h *Handler) updateMemo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	var req memoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateMemo(r.Context(), id, req.Memo); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toPostingInput(req postEntryRequest) (ledger.PostingInput, error) {
	date, err := time.Parse("2006-01-02", req.BookingDate)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	sourceRef := uuid.New()
	if req.SourceRef != "" {
		if sourceRef, err = uuid.Parse(req.SourceRef); err != nil {
			return ledger.PostingInput{}, err
		}
	}
	input := ledger.PostingInput{
		CompanyID:    req.CompanyID,
		FiscalYearID: req.FiscalYearID,
		BookingDate:  date,
		EntryType:    ledger.EntryTypeNormal,
		Memo:         req.Memo,
		SourceRef:    sourceRef,
	}
	for _, line := range req.Lines {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			return ledger.PostingInput{}, err
		}
		input.Lines = append(input.Lines, ledger.PostingLineInput{
			AccountCode: line.AccountCode,
			Amount:      amount,
			Direction:   ledger.Direction(line.Direction),
		})
	}
	return input, nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrEntryImmutable),
		errors.Is(err, fiscalyear.ErrYearClosed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrTooFewLines),
		errors.Is(err, ledger.ErrAccountMissing),
		errors.Is(err, fiscalyear.ErrDateOutOfRange):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("journal request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
