package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/plateful/plateful-web/internal/auth"
	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
	"github.com/plateful/plateful-web/internal/services"
)

const testSecretPhrase = "the secret ingredient is love"

type testEnv struct {
	db     *database.DB
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	viper.Set("auth.session_secret", "test-session-secret")

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := services.NewUserService(db)
	progression := services.NewProgressionService(db)
	achievements := services.NewAchievementService(db, progression)
	cuisines := services.NewCuisineService(db, achievements)
	recipes := services.NewRecipeService(db, progression, cuisines, achievements)
	recommendations := services.NewRecommendationService(db)
	challenges := services.NewChallengeService(db, progression)
	require.NoError(t, achievements.SeedDefaultAchievements())

	auth.Init(users)

	r := mux.NewRouter()
	r.HandleFunc("/register", auth.RegisterHandler).Methods("POST")
	r.HandleFunc("/login", auth.LoginHandler).Methods("POST")
	r.HandleFunc("/logout", auth.LogoutHandler).Methods("POST")

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(auth.AuthMiddleware)
	RegisterRoutes(authed.PathPrefix("/api/v1").Subrouter(),
		NewHandler(users, progression, recipes, recommendations, achievements, cuisines, challenges, testSecretPhrase))

	return &testEnv{db: db, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return rec.Result().Cookies()
}

func (e *testEnv) seedRecipe(t *testing.T, name string, difficulty, xpAmount int) int {
	t.Helper()
	res, err := e.db.Exec(`INSERT INTO recipes (name, difficulty, xp_amount, rating, category) VALUES (?, ?, ?, 0, 'main')`,
		name, difficulty, xpAmount)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/profile", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/profile", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	require.Equal(t, "alice", user.Username)
	require.Equal(t, 1, user.UserLevel)
	require.Zero(t, user.XPPoints)

	rec = env.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCompleteRecipeFlow(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "cook")
	recipeID := env.seedRecipe(t, "Beef Wellington", 5, 250)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recipes/%d/complete", recipeID), nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	// Recipe XP plus the first-recipe and difficulty-five unlock bonuses
	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	require.Equal(t, 450, user.XPPoints)
	require.Equal(t, 1, user.NumRecipesCompleted)
	require.Equal(t, 1, user.UserLevel)

	rec = env.do(t, http.MethodGet, "/api/v1/achievements", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var achievements []models.UserAchievementView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&achievements))
	unlocked := map[string]bool{}
	for _, a := range achievements {
		if a.Unlocked {
			unlocked[a.ID] = true
		}
	}
	require.True(t, unlocked[services.AchievementFirstRecipe])
	require.True(t, unlocked[services.AchievementDifficultyFive])
	require.Len(t, unlocked, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/notifications", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []models.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notifications))
	require.Len(t, notifications, 2)
}

func TestCompleteUnknownRecipe(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "cook")

	rec := env.do(t, http.MethodPost, "/api/v1/recipes/99/complete", nil, cookies)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEasterEggSearch(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "seeker")
	env.seedRecipe(t, "Carbonara", 3, 150)

	path := "/api/v1/recipes?search_query=" + url.QueryEscape("The Secret Ingredient Is Love")
	rec := env.do(t, http.MethodGet, path, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int
	require.NoError(t, env.db.Get(&count, `SELECT COUNT(*) FROM user_achievements ua JOIN users u ON u.id = ua.user_id WHERE u.username = 'seeker' AND ua.achievement_id = ?`, services.AchievementEasterEgg))
	require.Equal(t, 1, count)

	// An ordinary search does not unlock anything for a fresh user
	cookies = env.register(t, "browser")
	rec = env.do(t, http.MethodGet, "/api/v1/recipes?search_query=carbonara", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Get(&count, `SELECT COUNT(*) FROM user_achievements ua JOIN users u ON u.id = ua.user_id WHERE u.username = 'browser'`))
	require.Equal(t, 0, count)
}

func TestSubmitAndFetchReviews(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "critic")
	recipeID := env.seedRecipe(t, "Ramen", 4, 200)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recipes/%d/reviews", recipeID),
		map[string]interface{}{"rating": 5.0, "text": "perfect broth"}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recipes/%d/reviews", recipeID),
		map[string]interface{}{"rating": 7.5}, cookies)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/recipes/%d/reviews", recipeID), nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []models.Review
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reviews))
	require.Len(t, reviews, 1)
	require.Equal(t, "perfect broth", reviews[0].Text)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/recipes/%d", recipeID), nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var recipe models.Recipe
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recipe))
	require.InDelta(t, 5.0, recipe.Rating, 0.001)
}

func TestFriendshipHook(t *testing.T) {
	env := newTestEnv(t)
	aliceCookies := env.register(t, "alice")
	bobCookies := env.register(t, "bob")

	var bobID int
	require.NoError(t, env.db.Get(&bobID, `SELECT id FROM users WHERE username = 'bob'`))

	rec := env.do(t, http.MethodPost, "/api/v1/friendships", map[string]int{"friend_id": bobID}, aliceCookies)
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, cookies := range [][]*http.Cookie{aliceCookies, bobCookies} {
		rec = env.do(t, http.MethodGet, "/api/v1/achievements", nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code)
		var achievements []models.UserAchievementView
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&achievements))
		found := false
		for _, a := range achievements {
			if a.ID == services.AchievementFirstFriend && a.Unlocked {
				found = true
			}
		}
		require.True(t, found)
	}
}

func TestLevelUpAcknowledgement(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register(t, "cook")
	recipeID := env.seedRecipe(t, "Feast", 3, 950)

	// 950 recipe XP plus the first-recipe bonus crosses the 1000 XP
	// boundary into level 2
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recipes/%d/complete", recipeID), nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	require.Equal(t, 1050, user.XPPoints)
	require.Equal(t, 2, user.UserLevel)
	require.True(t, user.HasLeveled)

	rec = env.do(t, http.MethodPost, "/api/v1/profile/levelup/ack", nil, cookies)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/profile", nil, cookies)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	require.False(t, user.HasLeveled)
}
