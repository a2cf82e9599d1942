package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plateful/plateful-web/internal/database"
)

// newTestDB opens a per-test in-memory database to avoid cross-test
// interference.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *database.DB, username string) int {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO users (username, email, password_hash, xp_points, user_level)
		VALUES (?, ?, 'x', 0, 1)`,
		username, username+"@example.com")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func createTestCuisine(t *testing.T, db *database.DB, name string) int {
	t.Helper()
	res, err := db.Exec(`INSERT INTO cuisines (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func createTestRecipe(t *testing.T, db *database.DB, name string, difficulty, xpAmount int, rating float64, category string) int {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO recipes (name, difficulty, xp_amount, rating, category)
		VALUES (?, ?, ?, ?, ?)`,
		name, difficulty, xpAmount, rating, category)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func linkRecipeCuisine(t *testing.T, db *database.DB, recipeID, cuisineID int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO recipe_cuisines (recipe_id, cuisine_id) VALUES (?, ?)`, recipeID, cuisineID)
	require.NoError(t, err)
}

func userXP(t *testing.T, db *database.DB, userID int) int {
	t.Helper()
	var xp int
	require.NoError(t, db.Get(&xp, `SELECT xp_points FROM users WHERE id = ?`, userID))
	return xp
}

// newAchievementService returns an achievement service with a seeded
// catalog, plus the progression service it awards bonuses through.
func newAchievementService(t *testing.T, db *database.DB) (*AchievementService, *ProgressionService) {
	t.Helper()
	progression := NewProgressionService(db)
	achievements := NewAchievementService(db, progression)
	require.NoError(t, achievements.SeedDefaultAchievements())
	return achievements, progression
}
