package store

import (
	"context"

	"github.com/LWS49/reading-list-api/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) AddProgress(ctx context.Context, progress *models.ReadingProgress) (primitive.ObjectID, error) {
	res, err := db.Progress().InsertOne(ctx, progress, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) ProgressForBook(ctx context.Context, bookID, userID primitive.ObjectID) ([]models.ReadingProgress, error) {
	opts := options.Find().SetSort(bson.M{"readingDate": -1})
	cur, err := db.Progress().Find(ctx, bson.M{"bookId": bookID, "userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var entries []models.ReadingProgress
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
