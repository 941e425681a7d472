package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NewsletterSubscriber struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`
	Token          string             `bson:"token" json:"-"`
	Subscribed     bool               `bson:"subscribed" json:"subscribed"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UnsubscribedAt *time.Time         `bson:"unsubscribedAt,omitempty" json:"unsubscribedAt,omitempty"`
}
