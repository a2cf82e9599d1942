package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a user account
type User struct {
	ID                  int        `json:"id" db:"id"`
	Username            string     `json:"username" db:"username"`
	Email               string     `json:"email" db:"email"`
	Password            string     `json:"-" db:"password_hash"` // Never expose in JSON
	FirstName           string     `json:"first_name" db:"first_name"`
	LastName            string     `json:"last_name" db:"last_name"`
	XPPoints            int        `json:"xp_points" db:"xp_points"`
	UserLevel           int        `json:"user_level" db:"user_level"`
	NumRecipesCompleted int        `json:"num_recipes_completed" db:"num_recipes_completed"`
	HasLeveled          bool       `json:"has_leveled" db:"has_leveled"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt         *time.Time `json:"last_login_at" db:"last_login_at"`
	IsActive            bool       `json:"is_active" db:"is_active"`
}

// CreateUserRequest represents the request to create a new user
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=20"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CuisinePreference tracks a user's affinity for a cuisine. A row exists
// once the user either completes a recipe of that cuisine or selects it
// explicitly in their settings.
type CuisinePreference struct {
	UserID       int  `json:"user_id" db:"user_id"`
	CuisineID    int  `json:"cuisine_id" db:"cuisine_id"`
	NumComplete  int  `json:"num_complete" db:"num_complete"`
	UserSelected bool `json:"user_selected" db:"user_selected"`
}

// Notification is a message shown to the user in their profile feed
type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Text      string    `json:"text" db:"text"`
	Type      string    `json:"type" db:"type"` // achievement, level_up, challenge_reminder
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
