// Package models holds the persistent account types shared by the auth
// and database layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. The UID string form of ID is what the
// game documents reference in visibility sets.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UID returns the identity string used in card visibility sets and room
// player maps.
func (u *User) UID() string { return u.ID.String() }
