package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

// CuisineService tracks per-user, per-cuisine completion counts. The
// counts feed both achievement thresholds and recommendation scoring.
type CuisineService struct {
	db           *database.DB
	achievements *AchievementService
}

func NewCuisineService(db *database.DB, achievements *AchievementService) *CuisineService {
	return &CuisineService{db: db, achievements: achievements}
}

// RecordCompletion increments the user's completion count for the recipe's
// cuisine, creating the preference row on first completion, and evaluates
// the distinct-cuisine achievements.
func (s *CuisineService) RecordCompletion(userID, recipeID int) error {
	var cuisineID int
	err := s.db.Get(&cuisineID, `SELECT cuisine_id FROM recipe_cuisines WHERE recipe_id = ?`, recipeID)
	if errors.Is(err, sql.ErrNoRows) {
		// Recipe without a cuisine contributes nothing to affinity
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve recipe cuisine: %w", err)
	}

	query := `
		INSERT INTO cuisine_preferences (user_id, cuisine_id, num_complete, user_selected)
		VALUES (?, ?, 1, FALSE)
		ON CONFLICT(user_id, cuisine_id) DO UPDATE SET num_complete = num_complete + 1
	`
	if _, err := s.db.Exec(query, userID, cuisineID); err != nil {
		return fmt.Errorf("failed to record cuisine completion: %w", err)
	}

	distinct, err := s.DistinctCuisinesCompleted(userID)
	if err != nil {
		return err
	}

	// TryUnlock is idempotent, so re-checking past the threshold is harmless
	if distinct >= ThreeCuisinesThreshold {
		if _, err := s.achievements.TryUnlock(userID, AchievementThreeCuisines); err != nil {
			return err
		}
	}
	if distinct >= AllCuisinesThreshold {
		if _, err := s.achievements.TryUnlock(userID, AchievementAllCuisines); err != nil {
			return err
		}
	}
	return nil
}

// DistinctCuisinesCompleted counts cuisines the user has completed at
// least one recipe in.
func (s *CuisineService) DistinctCuisinesCompleted(userID int) (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM cuisine_preferences WHERE user_id = ? AND num_complete > 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed cuisines: %w", err)
	}
	return count, nil
}

// SelectCuisine marks a cuisine as explicitly preferred by the user
func (s *CuisineService) SelectCuisine(userID, cuisineID int) error {
	query := `
		INSERT INTO cuisine_preferences (user_id, cuisine_id, num_complete, user_selected)
		VALUES (?, ?, 0, TRUE)
		ON CONFLICT(user_id, cuisine_id) DO UPDATE SET user_selected = TRUE
	`
	if _, err := s.db.Exec(query, userID, cuisineID); err != nil {
		return fmt.Errorf("failed to select cuisine: %w", err)
	}
	return nil
}

// DeselectCuisine removes the explicit preference. The row itself is only
// deleted when no completions are recorded against it.
func (s *CuisineService) DeselectCuisine(userID, cuisineID int) error {
	res, err := s.db.Exec(`DELETE FROM cuisine_preferences WHERE user_id = ? AND cuisine_id = ? AND num_complete = 0`, userID, cuisineID)
	if err != nil {
		return fmt.Errorf("failed to deselect cuisine: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.Exec(`UPDATE cuisine_preferences SET user_selected = FALSE WHERE user_id = ? AND cuisine_id = ?`, userID, cuisineID)
	if err != nil {
		return fmt.Errorf("failed to deselect cuisine: %w", err)
	}
	return nil
}

// GetPreferences returns the user's cuisine affinity rows
func (s *CuisineService) GetPreferences(userID int) ([]models.CuisinePreference, error) {
	var prefs []models.CuisinePreference
	query := `
		SELECT user_id, cuisine_id, num_complete, user_selected
		FROM cuisine_preferences
		WHERE user_id = ?
		ORDER BY cuisine_id
	`
	err := s.db.Select(&prefs, query, userID)
	return prefs, err
}
