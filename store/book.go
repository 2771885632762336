package store

import (
	"context"
	"regexp"

	"github.com/LWS49/reading-list-api/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) CreateBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	res, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) BookByID(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *DB) UpdateBook(ctx context.Context, book *models.Book) error {
	update := bson.M{
		"title":       book.Title,
		"author":      book.Author,
		"isbn":        book.ISBN,
		"description": book.Description,
		"coverUrl":    book.CoverURL,
		"coverS3Key":  book.CoverS3Key,
		"totalPages":  book.TotalPages,
		"metadata":    book.Metadata,
		"updatedAt":   book.UpdatedAt,
	}
	res, err := db.Books().UpdateOne(ctx,
		bson.M{"_id": book.ID, "userId": book.UserID},
		bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBookCascade removes the book's progress rows, then the book, inside
// one Mongo transaction. Progress goes first so no progress row ever
// references a deleted book.
func (db *DB) DeleteBookCascade(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	session, err := db.Client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := db.Progress().DeleteMany(sc, bson.M{"bookId": id, "userId": userID}); err != nil {
			return nil, err
		}
		var book models.Book
		err := db.Books().FindOneAndDelete(sc, bson.M{"_id": id, "userId": userID}).Decode(&book)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &book, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Book), nil
}

func (db *DB) ListBooks(ctx context.Context, userID primitive.ObjectID, q BookQuery) ([]models.Book, int64, error) {
	filter := bson.M{"userId": userID}
	if q.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"author": re},
		}
	}

	total, err := db.Books().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(q.Limit))
	cur, err := db.Books().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}
