package models

import (
	"time"
)

// Achievement is a catalog-defined milestone. The catalog is static and
// seeded at startup; the engine never mutates it.
type Achievement struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Image       string `json:"image" db:"image"`
	IsVisible   bool   `json:"is_visible" db:"is_visible"`
}

// UserAchievement marks an achievement as unlocked for a user. At most one
// row exists per (user, achievement) pair.
type UserAchievement struct {
	UserID        int       `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// UserAchievementView joins the catalog entry with the user's unlock state
type UserAchievementView struct {
	Achievement
	Unlocked   bool       `json:"unlocked" db:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at" db:"unlocked_at"`
}
