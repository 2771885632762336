// Package store provides the persistence layer. Two backends implement the
// same interfaces: a MongoDB-backed DB and a mutex-guarded in-memory Memory
// store with an optional JSON snapshot file. Handlers receive the interfaces,
// never a concrete backend.
package store

import (
	"context"
	"errors"

	"github.com/LWS49/reading-list-api/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a record does not exist or is not
	// owned by the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on a unique-key conflict (user email).
	ErrDuplicate = errors.New("duplicate key")
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// BookQuery selects a page of a user's books. Search, when non-empty, is a
// case-insensitive substring match on title or author.
type BookQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q BookQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type BookStore interface {
	CreateBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
	// BookByID resolves a book scoped to its owner; a mismatched user yields ErrNotFound.
	BookByID(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error
	// DeleteBookCascade removes the book's progress rows first, then the
	// book itself, inside a single transactional scope. Returns the deleted
	// book so callers can clean up derived resources (mirrored covers).
	DeleteBookCascade(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error)
	ListBooks(ctx context.Context, userID primitive.ObjectID, q BookQuery) ([]models.Book, int64, error)
}

type ProgressStore interface {
	AddProgress(ctx context.Context, progress *models.ReadingProgress) (primitive.ObjectID, error)
	// ProgressForBook returns entries ordered by reading date descending.
	ProgressForBook(ctx context.Context, bookID, userID primitive.ObjectID) ([]models.ReadingProgress, error)
}

// EntryQuery filters the flat reading list. Status empty means all statuses.
type EntryQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type EntryStore interface {
	CreateEntry(ctx context.Context, entry *models.Entry) error
	EntryByID(ctx context.Context, id string) (*models.Entry, error)
	UpdateEntry(ctx context.Context, entry *models.Entry) error
	DeleteEntry(ctx context.Context, id string) (*models.Entry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]models.Entry, int, error)
}
