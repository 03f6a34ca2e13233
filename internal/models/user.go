package models

import "time"

// User represents a customer account.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Name      *string   `json:"name" gorm:"type:varchar(255)"`
	Image     *string   `json:"image,omitempty"`
	Password  string    `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser is the part of a User that may leave the server.
type PublicUser struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Image *string `json:"image,omitempty"`
}

// Public returns the identity fields of u without the profile image.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Profile returns the public fields of u including the profile image.
func (u User) Profile() PublicUser {
	p := u.Public()
	p.Image = u.Image
	return p
}
