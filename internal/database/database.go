package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sqlx.DB
}

// NewDB creates a new database connection
func NewDB(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		databaseURL = "plateful.db" // Default SQLite file
	}

	if strings.Contains(databaseURL, "?") {
		databaseURL += "&_foreign_keys=on"
	} else {
		databaseURL += "?_foreign_keys=on"
	}

	db, err := sqlx.Connect("sqlite3", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &DB{DB: db}

	// Initialize database schema
	if err := dbWrapper.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Database connection established and tables initialized")
	return dbWrapper, nil
}

// createTables creates the necessary database tables
func (db *DB) createTables() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		xp_points INTEGER NOT NULL DEFAULT 0,
		user_level INTEGER NOT NULL DEFAULT 1,
		num_recipes_completed INTEGER NOT NULL DEFAULT 0,
		has_leveled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_login_at DATETIME,
		is_active BOOLEAN DEFAULT TRUE
	);`

	cuisinesTable := `
	CREATE TABLE IF NOT EXISTS cuisines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);`

	recipesTable := `
	CREATE TABLE IF NOT EXISTS recipes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		difficulty INTEGER NOT NULL CHECK (difficulty BETWEEN 1 AND 5),
		xp_amount INTEGER NOT NULL,
		rating REAL NOT NULL DEFAULT 0,
		image TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT ''
	);`

	recipeCuisinesTable := `
	CREATE TABLE IF NOT EXISTS recipe_cuisines (
		recipe_id INTEGER NOT NULL,
		cuisine_id INTEGER NOT NULL,
		PRIMARY KEY (recipe_id, cuisine_id),
		FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
		FOREIGN KEY (cuisine_id) REFERENCES cuisines(id)
	);`

	recipeRestrictionsTable := `
	CREATE TABLE IF NOT EXISTS recipe_restrictions (
		recipe_id INTEGER NOT NULL,
		restriction TEXT NOT NULL,
		PRIMARY KEY (recipe_id, restriction),
		FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE
	);`

	cuisinePreferencesTable := `
	CREATE TABLE IF NOT EXISTS cuisine_preferences (
		user_id INTEGER NOT NULL,
		cuisine_id INTEGER NOT NULL,
		num_complete INTEGER NOT NULL DEFAULT 0,
		user_selected BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, cuisine_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (cuisine_id) REFERENCES cuisines(id)
	);`

	achievementsTable := `
	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		is_visible BOOLEAN NOT NULL DEFAULT TRUE
	);`

	userAchievementsTable := `
	CREATE TABLE IF NOT EXISTS user_achievements (
		user_id INTEGER NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, achievement_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (achievement_id) REFERENCES achievements(id)
	);`

	reviewsTable := `
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipe_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		rating REAL NOT NULL,
		difficulty INTEGER,
		text TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	cookedRecipesTable := `
	CREATE TABLE IF NOT EXISTS cooked_recipes (
		recipe_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		completed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	notificationsTable := `
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	challengesTable := `
	CREATE TABLE IF NOT EXISTS challenges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		creator INTEGER NOT NULL,
		theme TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		difficulty INTEGER NOT NULL CHECK (difficulty BETWEEN 1 AND 5),
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		xp_awarded BOOLEAN NOT NULL DEFAULT FALSE,
		FOREIGN KEY (creator) REFERENCES users(id)
	);`

	challengeParticipantsTable := `
	CREATE TABLE IF NOT EXISTS challenge_participants (
		challenge_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (challenge_id, user_id),
		FOREIGN KEY (challenge_id) REFERENCES challenges(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`

	challengeVotesTable := `
	CREATE TABLE IF NOT EXISTS challenge_votes (
		challenge_id INTEGER NOT NULL,
		given_by INTEGER NOT NULL,
		first_choice INTEGER NOT NULL,
		second_choice INTEGER,
		third_choice INTEGER,
		PRIMARY KEY (challenge_id, given_by),
		FOREIGN KEY (challenge_id) REFERENCES challenges(id) ON DELETE CASCADE,
		FOREIGN KEY (given_by) REFERENCES users(id) ON DELETE CASCADE
	);`

	tables := []string{
		usersTable,
		cuisinesTable,
		recipesTable,
		recipeCuisinesTable,
		recipeRestrictionsTable,
		cuisinePreferencesTable,
		achievementsTable,
		userAchievementsTable,
		reviewsTable,
		cookedRecipesTable,
		notificationsTable,
		challengesTable,
		challengeParticipantsTable,
		challengeVotesTable,
	}

	// Create indexes for better performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		`CREATE INDEX IF NOT EXISTS idx_recipes_name ON recipes(name);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_recipe_user ON reviews(recipe_id, user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_cooked_user ON cooked_recipes(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_votes_challenge ON challenge_votes(challenge_id);`,
	}

	// Execute table creation
	for _, query := range tables {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
