package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/schollz/closestmatch"

	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/models"
)

// Recommendation weights. Any prior rating demotes the recipe: the point
// of the feed is surfacing recipes the user has not tried yet.
const (
	weightAlreadyReviewed = -20
	weightNegativeReview  = 2 // unreachable with the 0-5 rating scale, kept for parity with the stored ratings
	weightHighGlobalScore = 2
	weightSelectedCuisine = 5

	weightDeepAffinity    = 10
	weightMediumAffinity  = 5
	weightShallowAffinity = 1

	deepAffinityThreshold   = 20
	mediumAffinityThreshold = 5

	featuredCount  = 4
	defaultPerPage = 10
	ratingFloor    = 2.5
)

// ListRecipesRequest are the caller-supplied listing parameters
type ListRecipesRequest struct {
	UserID              int
	Search              string
	DietaryRestrictions []string
	Page                int
	PerPage             int
}

// ListRecipesResponse is the ranker output. Featured is empty in search
// mode; Suggestions is only populated when a search found nothing.
type ListRecipesResponse struct {
	Featured    []models.Recipe `json:"featured_recipes"`
	Recipes     []models.Recipe `json:"recipes"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// RecommendationService ranks recipes for a requesting user
type RecommendationService struct {
	db *database.DB
}

func NewRecommendationService(db *database.DB) *RecommendationService {
	return &RecommendationService{db: db}
}

// ListRecipes serves both browse mode (personalized scoring plus a
// name-ordered listing) and search mode (substring matching with tie-break
// precedence), selected by the presence of a search term.
func (s *RecommendationService) ListRecipes(req ListRecipesRequest) (*ListRecipesResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = defaultPerPage
	}

	recipes, err := s.loadRecipes(req.DietaryRestrictions)
	if err != nil {
		return nil, err
	}

	cuisineByRecipe, cuisineNames, err := s.loadCuisines()
	if err != nil {
		return nil, err
	}

	if term := strings.TrimSpace(req.Search); term != "" {
		return s.searchRecipes(recipes, cuisineByRecipe, cuisineNames, term, req.Page, req.PerPage)
	}
	return s.browseRecipes(recipes, cuisineByRecipe, req)
}

// loadRecipes fetches the catalog in name order, dropping any recipe that
// carries one of the excluded dietary restriction tags.
func (s *RecommendationService) loadRecipes(excluded []string) ([]models.Recipe, error) {
	query := `SELECT id, name, difficulty, xp_amount, rating, image, category FROM recipes ORDER BY name, id`
	args := []interface{}{}

	if len(excluded) > 0 {
		query = `
			SELECT id, name, difficulty, xp_amount, rating, image, category FROM recipes r
			WHERE NOT EXISTS (
				SELECT 1 FROM recipe_restrictions rr
				WHERE rr.recipe_id = r.id AND rr.restriction IN (?)
			)
			ORDER BY name, id
		`
		var err error
		query, args, err = sqlx.In(query, excluded)
		if err != nil {
			return nil, fmt.Errorf("failed to build restriction filter: %w", err)
		}
	}

	var recipes []models.Recipe
	if err := s.db.Select(&recipes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecommendationService) loadCuisines() (map[int]int, map[int]string, error) {
	var links []struct {
		RecipeID  int `db:"recipe_id"`
		CuisineID int `db:"cuisine_id"`
	}
	if err := s.db.Select(&links, `SELECT recipe_id, cuisine_id FROM recipe_cuisines`); err != nil {
		return nil, nil, fmt.Errorf("failed to load recipe cuisines: %w", err)
	}
	cuisineByRecipe := make(map[int]int, len(links))
	for _, l := range links {
		cuisineByRecipe[l.RecipeID] = l.CuisineID
	}

	var cuisines []models.Cuisine
	if err := s.db.Select(&cuisines, `SELECT id, name FROM cuisines`); err != nil {
		return nil, nil, fmt.Errorf("failed to load cuisines: %w", err)
	}
	cuisineNames := make(map[int]string, len(cuisines))
	for _, c := range cuisines {
		cuisineNames[c.ID] = c.Name
	}
	return cuisineByRecipe, cuisineNames, nil
}

// searchRecipes filters by case-insensitive substring over name, category
// and cuisine, ordered by match precedence: exact name prefix, then name
// substring, then category, then cuisine.
func (s *RecommendationService) searchRecipes(recipes []models.Recipe, cuisineByRecipe map[int]int, cuisineNames map[int]string, term string, page, perPage int) (*ListRecipesResponse, error) {
	q := strings.ToLower(term)

	type match struct {
		recipe                          models.Recipe
		prefix, name, category, cuisine bool
	}

	var matches []match
	for _, r := range recipes {
		name := strings.ToLower(r.Name)
		category := strings.ToLower(r.Category)
		cuisine := strings.ToLower(cuisineNames[cuisineByRecipe[r.ID]])

		m := match{
			recipe:   r,
			prefix:   strings.HasPrefix(name, q),
			name:     strings.Contains(name, q),
			category: strings.Contains(category, q),
			cuisine:  cuisine != "" && strings.Contains(cuisine, q),
		}
		if m.name || m.category || m.cuisine {
			matches = append(matches, m)
		}
	}

	if len(matches) == 0 {
		return &ListRecipesResponse{
			Featured:    []models.Recipe{},
			Recipes:     []models.Recipe{},
			TotalPages:  0,
			CurrentPage: page,
			Suggestions: suggestNames(recipes, term),
		}, nil
	}

	// Each key is a binary descending sort, evaluated in precedence order
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.name != b.name {
			return a.name
		}
		if a.category != b.category {
			return a.category
		}
		if a.cuisine != b.cuisine {
			return a.cuisine
		}
		return false
	})

	ordered := make([]models.Recipe, len(matches))
	for i, m := range matches {
		ordered[i] = m.recipe
	}

	pageItems, totalPages := paginate(ordered, page, perPage)
	return &ListRecipesResponse{
		Featured:    []models.Recipe{},
		Recipes:     pageItems,
		TotalPages:  totalPages,
		CurrentPage: page,
	}, nil
}

// browseRecipes scores every recipe for the user and returns the top
// scorers as the featured set alongside the full name-ordered listing.
func (s *RecommendationService) browseRecipes(recipes []models.Recipe, cuisineByRecipe map[int]int, req ListRecipesRequest) (*ListRecipesResponse, error) {
	reviewed, err := s.loadUserReviews(req.UserID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.loadUserPreferences(req.UserID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		recipe models.Recipe
		weight int
	}
	weights := make([]scored, len(recipes))
	for i, r := range recipes {
		weights[i] = scored{recipe: r, weight: s.scoreRecipe(r, cuisineByRecipe[r.ID], reviewed, prefs)}
	}

	sort.Slice(weights, func(i, j int) bool {
		if weights[i].weight != weights[j].weight {
			return weights[i].weight > weights[j].weight
		}
		return weights[i].recipe.ID < weights[j].recipe.ID
	})

	featured := make([]models.Recipe, 0, featuredCount)
	for _, w := range weights {
		if len(featured) == featuredCount {
			break
		}
		featured = append(featured, w.recipe)
	}

	// The full listing stays in name order regardless of score
	pageItems, totalPages := paginate(recipes, req.Page, req.PerPage)
	return &ListRecipesResponse{
		Featured:    featured,
		Recipes:     pageItems,
		TotalPages:  totalPages,
		CurrentPage: req.Page,
	}, nil
}

// scoreRecipe is the composite recommendation weight: the sum of the
// own-review, global-rating, cuisine-selection and completion-depth terms.
func (s *RecommendationService) scoreRecipe(r models.Recipe, cuisineID int, reviewed map[int]float64, prefs map[int]models.CuisinePreference) int {
	weight := 0

	if rating, ok := reviewed[r.ID]; ok {
		// Any rating on the 0-5 scale demotes; see weightNegativeReview
		if rating >= 0 {
			weight += weightAlreadyReviewed
		} else {
			weight += weightNegativeReview
		}
	}

	if r.Rating >= ratingFloor {
		weight += weightHighGlobalScore
	}

	if pref, ok := prefs[cuisineID]; ok {
		if pref.UserSelected {
			weight += weightSelectedCuisine
		}
		switch {
		case pref.NumComplete > deepAffinityThreshold:
			weight += weightDeepAffinity
		case pref.NumComplete > mediumAffinityThreshold:
			weight += weightMediumAffinity
		case pref.NumComplete > 0:
			weight += weightShallowAffinity
		}
	}

	return weight
}

func (s *RecommendationService) loadUserReviews(userID int) (map[int]float64, error) {
	var reviews []struct {
		RecipeID int     `db:"recipe_id"`
		Rating   float64 `db:"rating"`
	}
	if err := s.db.Select(&reviews, `SELECT recipe_id, rating FROM reviews WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to load user reviews: %w", err)
	}
	reviewed := make(map[int]float64, len(reviews))
	for _, r := range reviews {
		reviewed[r.RecipeID] = r.Rating
	}
	return reviewed, nil
}

func (s *RecommendationService) loadUserPreferences(userID int) (map[int]models.CuisinePreference, error) {
	var rows []models.CuisinePreference
	if err := s.db.Select(&rows, `SELECT user_id, cuisine_id, num_complete, user_selected FROM cuisine_preferences WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to load cuisine preferences: %w", err)
	}
	prefs := make(map[int]models.CuisinePreference, len(rows))
	for _, p := range rows {
		prefs[p.CuisineID] = p
	}
	return prefs, nil
}

// suggestNames offers close recipe-name matches for a search that found
// nothing.
func suggestNames(recipes []models.Recipe, term string) []string {
	if len(recipes) == 0 {
		return nil
	}
	names := make([]string, len(recipes))
	for i, r := range recipes {
		names[i] = r.Name
	}
	cm := closestmatch.New(names, []int{2, 3, 4})
	var suggestions []string
	for _, s := range cm.ClosestN(term, 3) {
		if s != "" {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions
}

func paginate(recipes []models.Recipe, page, perPage int) ([]models.Recipe, int) {
	totalPages := (len(recipes) + perPage - 1) / perPage

	start := (page - 1) * perPage
	if start >= len(recipes) {
		return []models.Recipe{}, totalPages
	}
	end := start + perPage
	if end > len(recipes) {
		end = len(recipes)
	}
	return recipes[start:end], totalPages
}
