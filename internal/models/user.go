package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is a saved shipping address. Mexican addresses carry the colonia
// (neighborhood) as line 1 and street plus number as line 2.
type Address struct {
	ID             string    `bson:"id" json:"id"`
	FirstName      string    `bson:"firstName" json:"firstName"`
	LastName       string    `bson:"lastName" json:"lastName"`
	Email          string    `bson:"email" json:"email"`
	Phone          string    `bson:"phone" json:"phone"`
	Colonia        string    `bson:"colonia" json:"colonia"`
	Street         string    `bson:"street" json:"street"`
	ExteriorNumber string    `bson:"exteriorNumber,omitempty" json:"exteriorNumber,omitempty"`
	InteriorNumber string    `bson:"interiorNumber,omitempty" json:"interiorNumber,omitempty"`
	City           string    `bson:"city" json:"city"`
	State          string    `bson:"state" json:"state"`
	PostalCode     string    `bson:"postalCode" json:"postalCode"`
	Country        string    `bson:"country" json:"country"`
	IsDefault      bool      `bson:"isDefault" json:"isDefault"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// User represents the application user account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         string             `bson:"role" json:"role"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Addresses    []Address          `bson:"addresses" json:"addresses"`
	Favorites    []int64            `bson:"favorites,omitempty" json:"favorites,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
