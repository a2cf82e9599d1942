package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser creates a new user account
func (s *UserService) CreateUser(req *models.CreateUserRequest) (*models.User, error) {
	// Check if username or email already exists
	if exists, err := s.UsernameExists(req.Username); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.New("username already exists")
	}

	if exists, err := s.EmailExists(req.Email); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.New("email already exists")
	}

	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		XPPoints:  0,
		UserLevel: 1,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, xp_points, user_level, num_recipes_completed, has_leveled, created_at, is_active)
		VALUES (:username, :email, :password_hash, :first_name, :last_name, :xp_points, :user_level, 0, FALSE, :created_at, :is_active)
	`

	result, err := s.db.NamedExec(query, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	user.ID = int(id)
	return user, nil
}

// AuthenticateUser validates login credentials and returns the user
func (s *UserService) AuthenticateUser(req *models.LoginRequest) (*models.User, error) {
	user, err := s.GetUserByUsername(req.Username)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	if !user.CheckPassword(req.Password) {
		return nil, errors.New("invalid credentials")
	}

	if !user.IsActive {
		return nil, errors.New("account is disabled")
	}

	// Update last login time
	if err := s.UpdateLastLogin(user.ID); err != nil {
		// Non-fatal error, just log it
		fmt.Printf("Warning: failed to update last login for user %d: %v\n", user.ID, err)
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(id int) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, first_name, last_name, xp_points, user_level, num_recipes_completed, has_leveled, created_at, last_login_at, is_active
			  FROM users WHERE id = ?`

	err := s.db.Get(&user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("user not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by their username
func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, first_name, last_name, xp_points, user_level, num_recipes_completed, has_leveled, created_at, last_login_at, is_active
			  FROM users WHERE username = ?`

	err := s.db.Get(&user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("user not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UsernameExists checks if a username is already taken
func (s *UserService) UsernameExists(username string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE username = ?`
	err := s.db.Get(&count, query, username)
	return count > 0, err
}

// EmailExists checks if an email is already registered
func (s *UserService) EmailExists(email string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE email = ?`
	err := s.db.Get(&count, query, email)
	return count > 0, err
}

// UpdateLastLogin updates the user's last login timestamp
func (s *UserService) UpdateLastLogin(userID int) error {
	query := `UPDATE users SET last_login_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, time.Now(), userID)
	return err
}
