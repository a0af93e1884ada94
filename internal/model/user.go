package model

import "time"

// User represents a row of the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	Name         – display name.
//	PasswordHash – bcrypt hash; never leaves the repository/auth boundary.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the only user shape serialized to clients.
type PublicUser struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public copies the client-visible fields. The password hash is left out
// by construction rather than by tag.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUser is validated registration input. Password is plain text.
type NewUser struct {
	Email    string
	Name     string
	Password string
}

// UserUpdate is a partial profile update; nil fields are left unchanged.
type UserUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Name == nil && u.Password == nil
}
