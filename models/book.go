package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Title       string             `bson:"title" json:"title"`
	Author      string             `bson:"author,omitempty" json:"author,omitempty"`
	ISBN        string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CoverURL    string             `bson:"coverUrl,omitempty" json:"coverUrl,omitempty"`
	CoverS3Key  string             `bson:"coverS3Key,omitempty" json:"-"` // mirrored cover object, if any
	TotalPages  int                `bson:"totalPages" json:"totalPages"`
	Metadata    map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
