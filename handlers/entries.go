package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/LWS49/reading-list-api/models"
	"github.com/LWS49/reading-list-api/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultEntryLimit = 5

// EntriesHandler serves the lightweight reading list. No accounts, no auth;
// every caller sees the same list.
type EntriesHandler struct {
	Entries store.EntryStore
}

type CreateEntryRequest struct {
	Title      string     `json:"title" validate:"required"`
	Author     string     `json:"author"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

type UpdateEntryRequest struct {
	Title      *string    `json:"title" validate:"omitempty,min=1"`
	Author     *string    `json:"author"`
	Status     *string    `json:"status"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

type ListEntriesResponse struct {
	Entries    []models.Entry `json:"entries"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := store.EntryQuery{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Page:   parsePositiveInt(r.URL.Query().Get("page"), defaultPage),
		Limit:  parsePositiveInt(r.URL.Query().Get("limit"), defaultEntryLimit),
	}
	if q.Status != "" && !models.StatusValid(q.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	entries, total, err := h.Entries.ListEntries(r.Context(), q)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	totalPages := (total + q.Limit - 1) / q.Limit
	writeJSON(w, http.StatusOK, ListEntriesResponse{Entries: entries, Total: total, TotalPages: totalPages})
}

func (h *EntriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if violations := ValidateStruct(req); len(violations) > 0 {
		writeValidationErrors(w, violations)
		return
	}
	status := req.Status
	if status == "" {
		status = models.StatusUnread
	}
	if !models.StatusValid(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	now := time.Now()
	entry := &models.Entry{
		ID:         uuid.New().String(),
		Title:      req.Title,
		Author:     req.Author,
		Status:     status,
		StartedAt:  req.StartedAt,
		FinishedAt: req.FinishedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Entries.CreateEntry(r.Context(), entry); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *EntriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Entries.EntryByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if violations := ValidateStruct(req); len(violations) > 0 {
		writeValidationErrors(w, violations)
		return
	}
	if req.Status != nil && !models.StatusValid(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	entry, err := h.Entries.EntryByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		respondError(w, err)
		return
	}

	if req.Title != nil {
		entry.Title = *req.Title
	}
	if req.Author != nil {
		entry.Author = *req.Author
	}
	if req.Status != nil {
		entry.Status = *req.Status
	}
	if req.StartedAt != nil {
		entry.StartedAt = req.StartedAt
	}
	if req.FinishedAt != nil {
		entry.FinishedAt = req.FinishedAt
	}
	entry.UpdatedAt = time.Now()

	if err := h.Entries.UpdateEntry(r.Context(), entry); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Entries.DeleteEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}
