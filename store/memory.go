package store

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/LWS49/reading-list-api/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is the in-memory backend. All access goes through one RWMutex, so
// concurrent handlers never corrupt state. When constructed with a snapshot
// path it loads the file on start and rewrites it after every mutation.
type Memory struct {
	mu   sync.RWMutex
	path string

	users    []models.User
	books    []models.Book
	progress []models.ReadingProgress
	entries  []models.Entry
}

type snapshot struct {
	Users    []models.User            `json:"users,omitempty"`
	Books    []models.Book            `json:"books,omitempty"`
	Progress []models.ReadingProgress `json:"progress,omitempty"`
	Entries  []models.Entry           `json:"entries,omitempty"`
}

// NewMemory creates an in-memory store. path may be empty (no persistence);
// a missing snapshot file is treated as an empty store.
func NewMemory(path string) (*Memory, error) {
	m := &Memory{path: path}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	m.users = snap.Users
	m.books = snap.Books
	m.progress = snap.Progress
	m.entries = snap.Entries
	return m, nil
}

// persist writes the snapshot file. Callers must hold the write lock.
// Failures are logged, not propagated: losing a snapshot must not fail the
// request that mutated the store.
func (m *Memory) persist() {
	if m.path == "" {
		return
	}
	snap := snapshot{Users: m.users, Books: m.books, Progress: m.progress, Entries: m.entries}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Printf("memory store: marshal snapshot: %v", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		log.Printf("memory store: write snapshot %s: %v", m.path, err)
	}
}

// --- UserStore ---

func (m *Memory) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Email == user.Email {
			return primitive.NilObjectID, ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users = append(m.users, *user)
	m.persist()
	return user.ID, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// --- BookStore ---

func (m *Memory) CreateBook(_ context.Context, book *models.Book) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	m.books = append(m.books, *book)
	m.persist()
	return book.ID, nil
}

func (m *Memory) BookByID(_ context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.books {
		if m.books[i].ID == id && m.books[i].UserID == userID {
			b := m.books[i]
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateBook(_ context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.books {
		if m.books[i].ID == book.ID && m.books[i].UserID == book.UserID {
			m.books[i] = *book
			m.persist()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteBookCascade(_ context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i := range m.books {
		if m.books[i].ID == id && m.books[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	// Progress first, then the book, inside the same critical section.
	kept := m.progress[:0]
	for _, p := range m.progress {
		if p.BookID != id {
			kept = append(kept, p)
		}
	}
	m.progress = kept
	deleted := m.books[idx]
	m.books = append(m.books[:idx], m.books[idx+1:]...)
	m.persist()
	return &deleted, nil
}

func (m *Memory) ListBooks(_ context.Context, userID primitive.ObjectID, q BookQuery) ([]models.Book, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(q.Search)
	var matched []models.Book
	for _, b := range m.books {
		if b.UserID != userID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		matched = append(matched, b)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// --- ProgressStore ---

func (m *Memory) AddProgress(_ context.Context, progress *models.ReadingProgress) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if progress.ID.IsZero() {
		progress.ID = primitive.NewObjectID()
	}
	m.progress = append(m.progress, *progress)
	m.persist()
	return progress.ID, nil
}

func (m *Memory) ProgressForBook(_ context.Context, bookID, userID primitive.ObjectID) ([]models.ReadingProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []models.ReadingProgress
	for _, p := range m.progress {
		if p.BookID == bookID && p.UserID == userID {
			entries = append(entries, p)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReadingDate.After(entries[j].ReadingDate)
	})
	return entries, nil
}

// --- EntryStore ---

func (m *Memory) CreateEntry(_ context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	m.persist()
	return nil
}

func (m *Memory) EntryByID(_ context.Context, id string) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateEntry(_ context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == entry.ID {
			m.entries[i] = *entry
			m.persist()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteEntry(_ context.Context, id string) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			deleted := m.entries[i]
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.persist()
			return &deleted, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListEntries(_ context.Context, q EntryQuery) ([]models.Entry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(q.Search)
	var matched []models.Entry
	for _, e := range m.entries {
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Author), search) {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start < 0 || start > total {
		start = total
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}
