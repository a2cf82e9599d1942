package models

import "time"

// Recipe is the catalog entry for a single dish. The aggregate rating is
// maintained by the review pipeline; the engine only reads it.
type Recipe struct {
	ID         int     `json:"id" db:"id"`
	Name       string  `json:"name" db:"name"`
	Difficulty int     `json:"difficulty" db:"difficulty"` // 1-5
	XPAmount   int     `json:"xp_amount" db:"xp_amount"`
	Rating     float64 `json:"rating" db:"rating"`
	Image      string  `json:"image" db:"image"`
	Category   string  `json:"category" db:"category"`
}

type Cuisine struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Review is a user's rating of a recipe. Ratings are halves from 0 to 5.
type Review struct {
	ID         int       `json:"id" db:"id"`
	RecipeID   int       `json:"recipe_id" db:"recipe_id"`
	UserID     int       `json:"user_id" db:"user_id"`
	Rating     float64   `json:"rating" db:"rating"`
	Difficulty *int      `json:"difficulty" db:"difficulty"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CookedRecipe records one completion of a recipe by a user
type CookedRecipe struct {
	RecipeID    int       `json:"recipe_id" db:"recipe_id"`
	UserID      int       `json:"user_id" db:"user_id"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}
