package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/LWS49/reading-list-api/middleware"
	"github.com/LWS49/reading-list-api/models"
	"github.com/LWS49/reading-list-api/service"
	"github.com/LWS49/reading-list-api/store"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type BooksHandler struct {
	Books    store.BookStore
	Progress store.ProgressStore
	Metadata *service.MetadataClient
	S3       *service.S3Service // nil disables cover mirroring
}

type CreateBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn" validate:"omitempty,isbn13"`
	Description string `json:"description"`
	CoverURL    string `json:"coverUrl"`
	TotalPages  int    `json:"totalPages" validate:"omitempty,gte=0"`
}

type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Author      *string `json:"author"`
	ISBN        *string `json:"isbn" validate:"omitempty,isbn13"`
	Description *string `json:"description"`
	CoverURL    *string `json:"coverUrl"`
	TotalPages  *int    `json:"totalPages" validate:"omitempty,gte=0"`
}

type ProgressRequest struct {
	PagesRead        int    `json:"pagesRead" validate:"required,gt=0"`
	TimeSpentMinutes int    `json:"timeSpentMinutes" validate:"omitempty,gte=0"`
	Notes            string `json:"notes"`
}

type ListBooksResponse struct {
	Books      []models.Book `json:"books"`
	Total      int64         `json:"total"`
	TotalPages int64         `json:"totalPages"`
}

type BookWithProgress struct {
	models.Book
	ReadingProgress []models.ReadingProgress `json:"readingProgress"`
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if violations := ValidateStruct(req); len(violations) > 0 {
		writeValidationErrors(w, violations)
		return
	}

	now := time.Now()
	book := &models.Book{
		UserID:      userID,
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		TotalPages:  req.TotalPages,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.ISBN != "" {
		clean, ok := service.NormalizeISBN(req.ISBN)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid ISBN format")
			return
		}
		book.ISBN = clean
		h.enrich(r.Context(), book)
	}
	if book.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, err := h.Books.CreateBook(r.Context(), book)
	if err != nil {
		respondError(w, err)
		return
	}
	book.ID = id
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q := store.BookQuery{
		Page:   parsePositiveInt(r.URL.Query().Get("page"), defaultPage),
		Limit:  parsePositiveInt(r.URL.Query().Get("limit"), defaultLimit),
		Search: r.URL.Query().Get("search"),
	}
	books, total, err := h.Books.ListBooks(r.Context(), userID, q)
	if err != nil {
		respondError(w, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	totalPages := (total + int64(q.Limit) - 1) / int64(q.Limit)
	writeJSON(w, http.StatusOK, ListBooksResponse{Books: books, Total: total, TotalPages: totalPages})
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.Books.BookByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		respondError(w, err)
		return
	}
	progress, err := h.Progress.ProgressForBook(r.Context(), id, userID)
	if err != nil {
		respondError(w, err)
		return
	}
	if progress == nil {
		progress = []models.ReadingProgress{}
	}
	writeJSON(w, http.StatusOK, BookWithProgress{Book: *book, ReadingProgress: progress})
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if violations := ValidateStruct(req); len(violations) > 0 {
		writeValidationErrors(w, violations)
		return
	}

	book, err := h.Books.BookByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		respondError(w, err)
		return
	}

	// Partial merge: only supplied fields overwrite.
	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.CoverURL != nil {
		book.CoverURL = *req.CoverURL
	}
	if req.TotalPages != nil {
		book.TotalPages = *req.TotalPages
	}
	if req.ISBN != nil {
		clean, ok := service.NormalizeISBN(*req.ISBN)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid ISBN format")
			return
		}
		book.ISBN = clean
		h.enrich(r.Context(), book)
	}
	book.UpdatedAt = time.Now()

	if err := h.Books.UpdateBook(r.Context(), book); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	deleted, err := h.Books.DeleteBookCascade(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		respondError(w, err)
		return
	}
	if h.S3 != nil && deleted.CoverS3Key != "" {
		if err := h.S3.Delete(r.Context(), deleted.CoverS3Key); err != nil {
			log.Printf("delete mirrored cover %s: %v", deleted.CoverS3Key, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BooksHandler) AddProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if violations := ValidateStruct(req); len(violations) > 0 {
		writeValidationErrors(w, violations)
		return
	}

	if _, err := h.Books.BookByID(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		respondError(w, err)
		return
	}

	// Append-only: a new row every time, stamped with server time.
	now := time.Now()
	progress := &models.ReadingProgress{
		BookID:           id,
		UserID:           userID,
		PagesRead:        req.PagesRead,
		ReadingDate:      now,
		TimeSpentMinutes: req.TimeSpentMinutes,
		Notes:            req.Notes,
		CreatedAt:        now,
	}
	progressID, err := h.Progress.AddProgress(r.Context(), progress)
	if err != nil {
		respondError(w, err)
		return
	}
	progress.ID = progressID
	writeJSON(w, http.StatusOK, progress)
}

// Cover streams the mirrored cover image for an owned book.
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.Books.BookByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		respondError(w, err)
		return
	}
	if book.CoverS3Key == "" || h.S3 == nil {
		writeError(w, http.StatusNotFound, "no cover")
		return
	}
	body, contentType, err := h.S3.GetObject(r.Context(), book.CoverS3Key)
	if err != nil {
		respondError(w, err)
		return
	}
	defer body.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = io.Copy(w, body)
}

// enrich fills unset fields from an ISBN lookup. Lookup failures and misses
// never fail the request; they only lose the enrichment.
func (h *BooksHandler) enrich(ctx context.Context, book *models.Book) {
	if h.Metadata == nil {
		return
	}
	res := h.Metadata.LookupISBN(ctx, book.ISBN)
	switch res.Status {
	case service.Enriched:
		book.Metadata = res.Meta.Raw
		if book.Title == "" {
			book.Title = res.Meta.Title
		}
		if book.Author == "" {
			book.Author = res.Meta.Author
		}
		if book.CoverURL == "" {
			book.CoverURL = res.Meta.CoverURL
		}
		if book.TotalPages == 0 {
			book.TotalPages = res.Meta.PageCount
		}
		h.mirrorCover(ctx, book)
	case service.NoMatch:
		log.Printf("isbn %s: no metadata record", book.ISBN)
	case service.LookupFailed:
		log.Printf("isbn %s: metadata lookup failed: %v", book.ISBN, res.Err)
	}
}

// mirrorCover copies the remote cover into S3 so it survives upstream
// link rot. Best-effort.
func (h *BooksHandler) mirrorCover(ctx context.Context, book *models.Book) {
	if h.S3 == nil || book.CoverURL == "" || book.CoverS3Key != "" {
		return
	}
	key, err := h.S3.MirrorFromURL(ctx, "covers/", book.CoverURL)
	if err != nil {
		log.Printf("mirror cover for isbn %s: %v", book.ISBN, err)
		return
	}
	book.CoverS3Key = key
}

// parsePositiveInt coerces a query parameter to a positive integer, falling
// back to def on anything invalid.
func parsePositiveInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
