package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/odds-crawler/internal/delivery/http/request"
	"github.com/user/odds-crawler/internal/delivery/http/response"
	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/internal/usecase"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/utils"
)

const defaultDeadLetterLimit = 100

type Handler struct {
	dates usecase.DateManager
	log   *slog.Logger
}

func NewHandler(dates usecase.DateManager, log *slog.Logger) *Handler {
	return &Handler{
		dates: dates,
		log:   logger.OrDiscard(log),
	}
}

func (h *Handler) HandleEnqueueDates(w http.ResponseWriter, r *http.Request) {
	var req request.EnqueueDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dates := req.Dates
	if req.From != "" || req.To != "" {
		to := req.To
		if to == "" {
			to = req.From
		}
		span, err := utils.DateRange(req.From, to)
		if err != nil {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		dates = append(dates, span...)
	}
	if len(dates) == 0 {
		h.writeJSONError(w, "At least one date is required", http.StatusBadRequest)
		return
	}

	res, err := h.dates.Enqueue(r.Context(), dates, req.Force)
	if err != nil {
		if errors.Is(err, usecase.ErrNoQueue) {
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.log.Error("Failed to enqueue dates", "dates", dates, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.EnqueueDatesResponse{
		Status:  "success",
		Message: "Dates submitted for crawling",
		Queued:  res.Queued,
		Skipped: res.Skipped,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	sum, err := h.dates.LedgerSummary(r.Context(), date)
	if err != nil {
		h.writeLookupError(w, "ledger", date, err)
		return
	}

	resp := response.LedgerResponse{LedgerSummary: *sum}
	if n, err := h.dates.QueueSize(r.Context()); err == nil {
		resp.QueueSize = &n
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	date, id := chi.URLParam(r, "date"), chi.URLParam(r, "id")
	rec, err := h.dates.ItemRecord(r.Context(), date, id)
	if err != nil {
		h.writeLookupError(w, "detail record", date, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) HandleGetDeadLetters(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := h.dates.DeadLetters(r.Context(), date, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrNoDeadLetters) {
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.writeLookupError(w, "dead letters", date, err)
		return
	}
	if items == nil {
		items = []*entity.FailedItem{}
	}
	h.writeJSON(w, http.StatusOK, response.DeadLettersResponse{Date: date, Items: items})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, what, date string, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidDate):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrLedgerNotFound), errors.Is(err, repository.ErrRecordNotFound):
		h.writeJSONError(w, "Not found", http.StatusNotFound)
	default:
		h.log.Error("Lookup failed", "what", what, "date", date, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
