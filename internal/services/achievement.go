package services

import (
	"fmt"
	"time"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

// Achievement IDs. Handlers map trigger events to these; the evaluator
// itself only knows how to unlock a given id exactly once.
const (
	AchievementFirstRecipe    = "first-recipe"
	AchievementTenRecipes     = "ten-recipes"
	AchievementFiftyRecipes   = "fifty-recipes"
	AchievementDifficultyFive = "difficulty-five"
	AchievementEasterEgg      = "easter-egg"
	AchievementThreeCuisines  = "three-cuisines"
	AchievementAllCuisines    = "all-cuisines"
	AchievementFiveStarReview = "five-star-review"
	AchievementHalfStarReview = "half-star-review"
	AchievementFirstFriend    = "first-friend"
)

// Trigger thresholds
const (
	// XP bonus granted with every unlock
	AchievementXPBonus = 100

	TenRecipesThreshold   = 10
	FiftyRecipesThreshold = 50

	ThreeCuisinesThreshold = 3
	AllCuisinesThreshold   = 29

	FiveStarRating = 5.0
	HalfStarRating = 0.5
)

// Notifier receives unlock events for live delivery. Implemented by the
// websocket hub; delivery is best-effort.
type Notifier interface {
	NotifyUser(userID int, message string)
}

type AchievementService struct {
	db          *database.DB
	progression *ProgressionService
	notifier    Notifier
}

func NewAchievementService(db *database.DB, progression *ProgressionService) *AchievementService {
	return &AchievementService{db: db, progression: progression}
}

// SetNotifier attaches a live-delivery channel for unlock events
func (s *AchievementService) SetNotifier(n Notifier) {
	s.notifier = n
}

// TryUnlock unlocks the achievement for the user if they do not already
// hold it. The junction insert, the XP bonus and the notification are one
// transactional unit; if the achievement was already unlocked the call is a
// side-effect-free no-op and returns false.
func (s *AchievementService) TryUnlock(userID int, achievementID string) (bool, error) {
	var achievement models.Achievement
	err := s.db.Get(&achievement, `SELECT id, title, description, image, is_visible FROM achievements WHERE id = ?`, achievementID)
	if err != nil {
		return false, fmt.Errorf("achievement %q not found: %w", achievementID, err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The primary key on (user_id, achievement_id) makes this insert the
	// atomic check-then-act: zero rows affected means already unlocked.
	res, err := tx.Exec(`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)`,
		userID, achievementID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	} else if n == 0 {
		return false, nil // already unlocked
	}

	if err := s.progression.AwardXPTx(tx, userID, AchievementXPBonus); err != nil {
		return false, fmt.Errorf("failed to award unlock bonus: %w", err)
	}

	text := fmt.Sprintf("Achievement unlocked: %s", achievement.Title)
	if _, err := tx.Exec(`INSERT INTO notifications (user_id, text, type) VALUES (?, ?, 'achievement')`, userID, text); err != nil {
		return false, fmt.Errorf("failed to create unlock notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit unlock: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyUser(userID, text)
	}
	return true, nil
}

// UnlockForFriendship evaluates the friendship achievement for both parties
// of a newly formed friendship.
func (s *AchievementService) UnlockForFriendship(userA, userB int) error {
	if _, err := s.TryUnlock(userA, AchievementFirstFriend); err != nil {
		return err
	}
	if _, err := s.TryUnlock(userB, AchievementFirstFriend); err != nil {
		return err
	}
	return nil
}

// GetUserAchievements returns the visible catalog with the user's unlock state
func (s *AchievementService) GetUserAchievements(userID int) ([]models.UserAchievementView, error) {
	query := `
		SELECT
			a.id, a.title, a.description, a.image, a.is_visible,
			ua.user_id IS NOT NULL as unlocked,
			ua.unlocked_at
		FROM achievements a
		LEFT JOIN user_achievements ua ON a.id = ua.achievement_id AND ua.user_id = ?
		WHERE a.is_visible = TRUE
		ORDER BY unlocked DESC, a.id
	`

	var achievements []models.UserAchievementView
	if err := s.db.Select(&achievements, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user achievements: %w", err)
	}
	return achievements, nil
}

// GetNotifications returns the user's notification feed, newest first
func (s *AchievementService) GetNotifications(userID int, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, text, type, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	var notifications []models.Notification
	err := s.db.Select(&notifications, query, userID, limit)
	return notifications, err
}

// MarkNotificationsRead marks all of the user's notifications as read
func (s *AchievementService) MarkNotificationsRead(userID int) error {
	_, err := s.db.Exec(`UPDATE notifications SET is_read = TRUE WHERE user_id = ?`, userID)
	return err
}

// SeedDefaultAchievements loads the static catalog
func (s *AchievementService) SeedDefaultAchievements() error {
	achievements := []models.Achievement{
		{ID: AchievementFirstRecipe, Title: "First Plate", Description: "Complete your first recipe", Image: "🍽️", IsVisible: true},
		{ID: AchievementTenRecipes, Title: "Line Cook", Description: "Complete 10 recipes", Image: "👨‍🍳", IsVisible: true},
		{ID: AchievementFiftyRecipes, Title: "Sous Chef", Description: "Complete 50 recipes", Image: "⭐", IsVisible: true},
		{ID: AchievementDifficultyFive, Title: "Fearless", Description: "Complete a difficulty-5 recipe", Image: "🔥", IsVisible: true},
		{ID: AchievementEasterEgg, Title: "Secret Ingredient", Description: "You found the secret ingredient", Image: "🥚", IsVisible: false},
		{ID: AchievementThreeCuisines, Title: "Globetrotter", Description: "Cook recipes from 3 different cuisines", Image: "🌍", IsVisible: true},
		{ID: AchievementAllCuisines, Title: "World Tour", Description: "Cook recipes from every cuisine", Image: "🗺️", IsVisible: true},
		{ID: AchievementFiveStarReview, Title: "Rave Review", Description: "Rate a recipe 5 stars", Image: "🌟", IsVisible: true},
		{ID: AchievementHalfStarReview, Title: "Tough Crowd", Description: "Rate a recipe half a star", Image: "🍅", IsVisible: true},
		{ID: AchievementFirstFriend, Title: "Dinner Party", Description: "Make your first friend", Image: "🤝", IsVisible: true},
	}

	for _, achievement := range achievements {
		query := `
			INSERT OR IGNORE INTO achievements (id, title, description, image, is_visible)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := s.db.Exec(query, achievement.ID, achievement.Title,
			achievement.Description, achievement.Image, achievement.IsVisible)
		if err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", achievement.ID, err)
		}
	}

	return nil
}
