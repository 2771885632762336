package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingProgress is append-only: every recorded session is a new row,
// stamped with the server time. History is never revised.
type ReadingProgress struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BookID           primitive.ObjectID `bson:"bookId" json:"bookId"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	PagesRead        int                `bson:"pagesRead" json:"pagesRead"`
	ReadingDate      time.Time          `bson:"readingDate" json:"readingDate"`
	TimeSpentMinutes int                `bson:"timeSpentMinutes,omitempty" json:"timeSpentMinutes,omitempty"`
	Notes            string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
