package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

// ErrRecipeNotFound is returned for lookups of unknown recipes
var ErrRecipeNotFound = errors.New("recipe not found")

// RecipeService owns recipe reads and the completion and review flows that
// feed the progression engine.
type RecipeService struct {
	db           *database.DB
	progression  *ProgressionService
	cuisines     *CuisineService
	achievements *AchievementService
}

func NewRecipeService(db *database.DB, progression *ProgressionService, cuisines *CuisineService, achievements *AchievementService) *RecipeService {
	return &RecipeService{
		db:           db,
		progression:  progression,
		cuisines:     cuisines,
		achievements: achievements,
	}
}

// GetRecipe returns a recipe by id
func (s *RecipeService) GetRecipe(id int) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Get(&recipe, `SELECT id, name, difficulty, xp_amount, rating, image, category FROM recipes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &recipe, nil
}

// CompleteRecipe marks a recipe as cooked by the user: it logs the
// completion, awards the recipe's XP, updates cuisine affinity and
// evaluates the completion-count and difficulty achievements.
func (s *RecipeService) CompleteRecipe(userID, recipeID int) error {
	recipe, err := s.GetRecipe(recipeID)
	if err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO cooked_recipes (recipe_id, user_id) VALUES (?, ?)`, recipeID, userID); err != nil {
		return fmt.Errorf("failed to log completion: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET num_recipes_completed = num_recipes_completed + 1 WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to update completion count: %w", err)
	}
	if err := s.progression.AwardXPTx(tx, userID, recipe.XPAmount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	if err := s.cuisines.RecordCompletion(userID, recipeID); err != nil {
		return err
	}
	return s.evaluateCompletionAchievements(userID, recipe)
}

func (s *RecipeService) evaluateCompletionAchievements(userID int, recipe *models.Recipe) error {
	var completed int
	if err := s.db.Get(&completed, `SELECT num_recipes_completed FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to read completion count: %w", err)
	}

	// TryUnlock no-ops past unlocks, so >= keeps retries safe
	if completed >= 1 {
		if _, err := s.achievements.TryUnlock(userID, AchievementFirstRecipe); err != nil {
			return err
		}
	}
	if completed >= TenRecipesThreshold {
		if _, err := s.achievements.TryUnlock(userID, AchievementTenRecipes); err != nil {
			return err
		}
	}
	if completed >= FiftyRecipesThreshold {
		if _, err := s.achievements.TryUnlock(userID, AchievementFiftyRecipes); err != nil {
			return err
		}
	}
	if recipe.Difficulty == 5 {
		if _, err := s.achievements.TryUnlock(userID, AchievementDifficultyFive); err != nil {
			return err
		}
	}
	return nil
}

// SubmitReview stores a review, refreshes the recipe's aggregate rating
// and evaluates the extreme-rating achievements.
func (s *RecipeService) SubmitReview(review *models.Review) error {
	if review.Rating < 0 || review.Rating > 5 {
		return errors.New("rating must be between 0 and 5")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO reviews (recipe_id, user_id, rating, difficulty, text) VALUES (?, ?, ?, ?, ?)`,
		review.RecipeID, review.UserID, review.Rating, review.Difficulty, review.Text)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		review.ID = int(id)
	}

	_, err = tx.Exec(`UPDATE recipes SET rating = (SELECT AVG(rating) FROM reviews WHERE recipe_id = ?) WHERE id = ?`,
		review.RecipeID, review.RecipeID)
	if err != nil {
		return fmt.Errorf("failed to refresh recipe rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}

	switch review.Rating {
	case FiveStarRating:
		if _, err := s.achievements.TryUnlock(review.UserID, AchievementFiveStarReview); err != nil {
			return err
		}
	case HalfStarRating:
		if _, err := s.achievements.TryUnlock(review.UserID, AchievementHalfStarReview); err != nil {
			return err
		}
	}
	return nil
}

// GetReviews returns a recipe's reviews, newest first
func (s *RecipeService) GetReviews(recipeID int) ([]models.Review, error) {
	var reviews []models.Review
	query := `
		SELECT id, recipe_id, user_id, rating, difficulty, text, created_at
		FROM reviews
		WHERE recipe_id = ?
		ORDER BY created_at DESC, id DESC
	`
	err := s.db.Select(&reviews, query, recipeID)
	return reviews, err
}

// ListCuisines returns the cuisine catalog
func (s *RecipeService) ListCuisines() ([]models.Cuisine, error) {
	var cuisines []models.Cuisine
	err := s.db.Select(&cuisines, `SELECT id, name FROM cuisines ORDER BY name`)
	return cuisines, err
}
