package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LWS49/reading-list-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory("")
	require.NoError(t, err)

	id, err := m.CreateUser(ctx, &models.User{Email: "a@example.com", Password: "hash"})
	require.NoError(t, err)
	require.False(t, id.IsZero())

	t.Run("duplicate email", func(t *testing.T) {
		_, err := m.CreateUser(ctx, &models.User{Email: "a@example.com", Password: "hash"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("lookup by email and id", func(t *testing.T) {
		byEmail, err := m.UserByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, byEmail.ID)

		byID, err := m.UserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", byID.Email)

		_, err = m.UserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryCascadeDelete(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory("")
	require.NoError(t, err)
	userID := primitive.NewObjectID()

	bookID, err := m.CreateBook(ctx, &models.Book{UserID: userID, Title: "Doomed", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = m.AddProgress(ctx, &models.ReadingProgress{BookID: bookID, UserID: userID, PagesRead: 12, ReadingDate: time.Now()})
	require.NoError(t, err)

	deleted, err := m.DeleteBookCascade(ctx, bookID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Doomed", deleted.Title)

	_, err = m.BookByID(ctx, bookID, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	progress, err := m.ProgressForBook(ctx, bookID, userID)
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestMemoryListBooksOrder(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory("")
	require.NoError(t, err)
	userID := primitive.NewObjectID()

	base := time.Now()
	for i, title := range []string{"Oldest", "Middle", "Newest"} {
		_, err := m.CreateBook(ctx, &models.Book{
			UserID:    userID,
			Title:     title,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	books, total, err := m.ListBooks(ctx, userID, BookQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, books, 3)
	assert.Equal(t, "Newest", books[0].Title)
	assert.Equal(t, "Oldest", books[2].Title)
}

func TestMemorySnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	m, err := NewMemory(path)
	require.NoError(t, err)

	userID, err := m.CreateUser(ctx, &models.User{Email: "a@example.com", Password: "hash", CreatedAt: time.Now()})
	require.NoError(t, err)
	bookID, err := m.CreateBook(ctx, &models.Book{UserID: userID, Title: "Persisted", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, m.CreateEntry(ctx, &models.Entry{ID: "e1", Title: "Entry", Status: models.StatusUnread}))

	// A fresh store over the same file sees everything.
	reopened, err := NewMemory(path)
	require.NoError(t, err)

	user, err := reopened.UserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)

	book, err := reopened.BookByID(ctx, bookID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", book.Title)

	entry, err := reopened.EntryByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Entry", entry.Title)
}

func TestMemorySnapshotMissingFile(t *testing.T) {
	m, err := NewMemory(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	_, _, err = m.ListBooks(context.Background(), primitive.NewObjectID(), BookQuery{Page: 1, Limit: 10})
	assert.NoError(t, err)
}
