// Package model defines domain types used by the service.
package model

import "go.mongodb.org/mongo-driver/bson"

// Stored field names of a product document.
const (
	FieldInternalID = "_id"
	FieldID         = "product_id"
	FieldName       = "product_name"
	FieldPrice      = "product_price"
	FieldQuantity   = "product_quantity"
)

// Product represents one inventory item as persisted in the collection.
type Product struct {
	ProductID int64   `bson:"product_id" json:"product_id"`
	Name      string  `bson:"product_name" json:"product_name"`
	Price     float64 `bson:"product_price" json:"product_price"`
	Quantity  int64   `bson:"product_quantity" json:"product_quantity"`
}

// Document returns the product as an ordered store document.
func (p Product) Document() bson.D {
	return bson.D{
		{Key: FieldID, Value: p.ProductID},
		{Key: FieldName, Value: p.Name},
		{Key: FieldPrice, Value: p.Price},
		{Key: FieldQuantity, Value: p.Quantity},
	}
}

// ByID returns the filter selecting the product with the given id.
func ByID(id int64) bson.D {
	return bson.D{{Key: FieldID, Value: id}}
}

// Credentials is the username/password pair supplied at login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}
