package model

import "time"

// UnitLock is an advisory lock serializing conflict checks against a
// camera unit. The unique _id makes concurrent acquisition fail with a
// duplicate key error, which callers surface as "slot just taken".
type UnitLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
