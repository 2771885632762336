package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LWS49/reading-list-api/middleware"
	"github.com/LWS49/reading-list-api/service"
	"github.com/LWS49/reading-list-api/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type booksEnv struct {
	mem    *store.Memory
	router http.Handler
}

func newBooksEnv(t *testing.T, metadataURL string) *booksEnv {
	t.Helper()
	mem, err := store.NewMemory("")
	require.NoError(t, err)

	var metadata *service.MetadataClient
	if metadataURL != "" {
		metadata = service.NewMetadataClient(metadataURL, "test", 100, 0)
	}
	h := &BooksHandler{Books: mem, Progress: mem, Metadata: metadata}

	r := chi.NewRouter()
	r.Post("/api/books", h.Create)
	r.Get("/api/books/list", h.List)
	r.Get("/api/books/{id}", h.Get)
	r.Patch("/api/books/{id}/update", h.Update)
	r.Delete("/api/books/{id}/delete", h.Delete)
	r.Post("/api/books/{id}/progress", h.AddProgress)

	return &booksEnv{mem: mem, router: r}
}

// doAs runs a request with the given user already resolved, as the auth
// middleware would leave it.
func (e *booksEnv) doAs(t *testing.T, userID primitive.ObjectID, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, reader)
	r = r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *booksEnv) createBook(t *testing.T, userID primitive.ObjectID, title string) string {
	t.Helper()
	w := e.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{Title: title})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestCreateBook(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("creates with title", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title:  "The Go Programming Language",
			Author: "Donovan",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("rejects missing title without isbn", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{Author: "Anonymous"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed isbn", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title: "Some Book",
			ISBN:  "12345",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("enrichment fills only unset fields", func(t *testing.T) {
		const isbn = "9780134190440"
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ISBN:` + isbn + `":{"title":"Upstream Title","authors":[{"name":"Upstream Author"}],"cover":{"large":"https://covers.example/c.jpg"},"number_of_pages":480}}`))
		}))
		defer ts.Close()

		env := newBooksEnv(t, ts.URL)
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title: "My Own Title",
			ISBN:  "978-0-13-419044-0",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var book struct {
			Title      string         `json:"title"`
			Author     string         `json:"author"`
			ISBN       string         `json:"isbn"`
			CoverURL   string         `json:"coverUrl"`
			TotalPages int            `json:"totalPages"`
			Metadata   map[string]any `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
		assert.Equal(t, "My Own Title", book.Title, "caller title wins over enrichment")
		assert.Equal(t, "Upstream Author", book.Author)
		assert.Equal(t, isbn, book.ISBN, "isbn stored normalized")
		assert.Equal(t, "https://covers.example/c.jpg", book.CoverURL)
		assert.Equal(t, 480, book.TotalPages)
		assert.NotEmpty(t, book.Metadata)
	})

	t.Run("enrichment failure does not fail the create", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		env := newBooksEnv(t, ts.URL)
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title: "Offline Book",
			ISBN:  "9780134190440",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestListBooks(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("paginates", func(t *testing.T) {
		env := newBooksEnv(t, "")
		for i := 0; i < 12; i++ {
			env.createBook(t, userID, fmt.Sprintf("Book %02d", i))
		}

		var resp ListBooksResponse
		for page, wantLen := range map[int]int{1: 5, 2: 5, 3: 2} {
			w := env.doAs(t, userID, http.MethodGet, fmt.Sprintf("/api/books/list?page=%d&limit=5", page), nil)
			require.Equal(t, http.StatusOK, w.Code)
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Len(t, resp.Books, wantLen, "page %d", page)
			assert.Equal(t, int64(12), resp.Total)
			assert.Equal(t, int64(3), resp.TotalPages)
		}
	})

	t.Run("defaults page and limit", func(t *testing.T) {
		env := newBooksEnv(t, "")
		for i := 0; i < 12; i++ {
			env.createBook(t, userID, fmt.Sprintf("Book %02d", i))
		}
		w := env.doAs(t, userID, http.MethodGet, "/api/books/list?page=bogus&limit=-3", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ListBooksResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Books, 10)
	})

	t.Run("searches title and author", func(t *testing.T) {
		env := newBooksEnv(t, "")
		env.createBook(t, userID, "Learning Go")
		env.createBook(t, userID, "The Rust Book")
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title: "Misc", Author: "Gopher",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		listed := env.doAs(t, userID, http.MethodGet, "/api/books/list?search=go", nil)
		require.Equal(t, http.StatusOK, listed.Code)

		var resp ListBooksResponse
		require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.Total, "matches title or author, case-insensitive")
	})

	t.Run("scoped to owner", func(t *testing.T) {
		env := newBooksEnv(t, "")
		otherID := primitive.NewObjectID()
		env.createBook(t, userID, "Mine")
		env.createBook(t, otherID, "Theirs")

		w := env.doAs(t, userID, http.MethodGet, "/api/books/list", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ListBooksResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, int64(1), resp.Total)
		assert.Equal(t, "Mine", resp.Books[0].Title)
	})
}

func TestGetBook(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("returns book with progress newest first", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Tracked Book")

		for _, pages := range []int{10, 25} {
			w := env.doAs(t, userID, http.MethodPost, "/api/books/"+id+"/progress", ProgressRequest{PagesRead: pages})
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := env.doAs(t, userID, http.MethodGet, "/api/books/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Title           string `json:"title"`
			ReadingProgress []struct {
				PagesRead int `json:"pagesRead"`
			} `json:"readingProgress"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Tracked Book", resp.Title)
		require.Len(t, resp.ReadingProgress, 2)
		assert.Equal(t, 25, resp.ReadingProgress[0].PagesRead)
		assert.Equal(t, 10, resp.ReadingProgress[1].PagesRead)
	})

	t.Run("hidden from other users", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Private Book")

		w := env.doAs(t, primitive.NewObjectID(), http.MethodGet, "/api/books/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects bad id", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodGet, "/api/books/not-a-hex-id", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateBook(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("merges only supplied fields", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodPost, "/api/books", CreateBookRequest{
			Title: "Original Title", Author: "Original Author",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

		newAuthor := "New Author"
		w = env.doAs(t, userID, http.MethodPatch, "/api/books/"+created.ID+"/update", UpdateBookRequest{Author: &newAuthor})
		require.Equal(t, http.StatusOK, w.Code)

		var updated struct {
			Title  string `json:"title"`
			Author string `json:"author"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "Original Title", updated.Title)
		assert.Equal(t, "New Author", updated.Author)
	})

	t.Run("new isbn re-runs enrichment", func(t *testing.T) {
		const isbn = "9780134190440"
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ISBN:` + isbn + `":{"title":"Upstream Title","authors":[{"name":"Upstream Author"}],"cover":{"large":"https://covers.example/c.jpg"},"number_of_pages":480}}`))
		}))
		defer ts.Close()

		env := newBooksEnv(t, ts.URL)
		id := env.createBook(t, userID, "My Own Title")

		newISBN := "978-0-13-419044-0"
		w := env.doAs(t, userID, http.MethodPatch, "/api/books/"+id+"/update", UpdateBookRequest{ISBN: &newISBN})
		require.Equal(t, http.StatusOK, w.Code)

		var updated struct {
			Title    string         `json:"title"`
			Author   string         `json:"author"`
			ISBN     string         `json:"isbn"`
			CoverURL string         `json:"coverUrl"`
			Metadata map[string]any `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "My Own Title", updated.Title, "existing title survives re-enrichment")
		assert.Equal(t, "Upstream Author", updated.Author)
		assert.Equal(t, isbn, updated.ISBN, "isbn stored normalized")
		assert.Equal(t, "https://covers.example/c.jpg", updated.CoverURL)
		assert.NotEmpty(t, updated.Metadata)
	})

	t.Run("rejects malformed isbn", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Some Book")
		bad := "not-an-isbn"
		w := env.doAs(t, userID, http.MethodPatch, "/api/books/"+id+"/update", UpdateBookRequest{ISBN: &bad})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found for other users", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Private Book")
		title := "Hijacked"
		w := env.doAs(t, primitive.NewObjectID(), http.MethodPatch, "/api/books/"+id+"/update", UpdateBookRequest{Title: &title})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteBook(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("removes book and its progress", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Doomed Book")
		w := env.doAs(t, userID, http.MethodPost, "/api/books/"+id+"/progress", ProgressRequest{PagesRead: 30})
		require.Equal(t, http.StatusOK, w.Code)

		w = env.doAs(t, userID, http.MethodDelete, "/api/books/"+id+"/delete", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = env.doAs(t, userID, http.MethodGet, "/api/books/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		bookID, err := primitive.ObjectIDFromHex(id)
		require.NoError(t, err)
		progress, err := env.mem.ProgressForBook(context.Background(), bookID, userID)
		require.NoError(t, err)
		assert.Empty(t, progress)
	})

	t.Run("not found for other users", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Private Book")
		w := env.doAs(t, primitive.NewObjectID(), http.MethodDelete, "/api/books/"+id+"/delete", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAddProgress(t *testing.T) {
	userID := primitive.NewObjectID()

	t.Run("appends a row per call", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Long Book")
		for i := 0; i < 3; i++ {
			w := env.doAs(t, userID, http.MethodPost, "/api/books/"+id+"/progress", ProgressRequest{PagesRead: 10 + i})
			require.Equal(t, http.StatusOK, w.Code)
		}

		bookID, err := primitive.ObjectIDFromHex(id)
		require.NoError(t, err)
		progress, err := env.mem.ProgressForBook(context.Background(), bookID, userID)
		require.NoError(t, err)
		assert.Len(t, progress, 3)
	})

	t.Run("rejects non-positive pages", func(t *testing.T) {
		env := newBooksEnv(t, "")
		id := env.createBook(t, userID, "Some Book")
		w := env.doAs(t, userID, http.MethodPost, "/api/books/"+id+"/progress", ProgressRequest{PagesRead: 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown book", func(t *testing.T) {
		env := newBooksEnv(t, "")
		w := env.doAs(t, userID, http.MethodPost, "/api/books/"+primitive.NewObjectID().Hex()+"/progress", ProgressRequest{PagesRead: 5})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
