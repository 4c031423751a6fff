package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Product is a catalog entry.
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description" json:"description"`
	Price        float64            `bson:"price" json:"price"`
	CountInStock int                `bson:"countInStock" json:"countInStock"`
	ImageURL     string             `bson:"imageUrl" json:"imageUrl"`
	Category     []string           `bson:"category" json:"category"`
	IsFeatured   bool               `bson:"isFeatured" json:"isFeatured"`
}
