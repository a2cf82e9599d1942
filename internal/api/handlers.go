package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/plateful/plateful-web/internal/auth"
	"github.com/plateful/plateful-web/internal/logger"
	"github.com/plateful/plateful-web/internal/models"
	"github.com/plateful/plateful-web/internal/services"
)

// Handler wires the HTTP surface to the progression engine. Every core
// call takes the acting user resolved from the session here at the edge.
type Handler struct {
	users           *services.UserService
	progression     *services.ProgressionService
	recipes         *services.RecipeService
	recommendations *services.RecommendationService
	achievements    *services.AchievementService
	cuisines        *services.CuisineService
	challenges      *services.ChallengeService
	secretPhrase    string
	log             *logger.Log
}

func NewHandler(
	users *services.UserService,
	progression *services.ProgressionService,
	recipes *services.RecipeService,
	recommendations *services.RecommendationService,
	achievements *services.AchievementService,
	cuisines *services.CuisineService,
	challenges *services.ChallengeService,
	secretPhrase string,
) *Handler {
	return &Handler{
		users:           users,
		progression:     progression,
		recipes:         recipes,
		recommendations: recommendations,
		achievements:    achievements,
		cuisines:        cuisines,
		challenges:      challenges,
		secretPhrase:    secretPhrase,
		log:             logger.New(),
	}
}

// RegisterRoutes mounts the API under the given (authenticated) router
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile/levelup/ack", h.AcknowledgeLevelUp).Methods("POST")

	r.HandleFunc("/recipes", h.ListRecipes).Methods("GET")
	r.HandleFunc("/recipes/{id:[0-9]+}", h.GetRecipe).Methods("GET")
	r.HandleFunc("/recipes/{id:[0-9]+}/complete", h.CompleteRecipe).Methods("POST")
	r.HandleFunc("/recipes/{id:[0-9]+}/reviews", h.GetReviews).Methods("GET")
	r.HandleFunc("/recipes/{id:[0-9]+}/reviews", h.SubmitReview).Methods("POST")

	r.HandleFunc("/cuisines", h.ListCuisines).Methods("GET")
	r.HandleFunc("/cuisines/{id:[0-9]+}/select", h.SelectCuisine).Methods("POST")
	r.HandleFunc("/cuisines/{id:[0-9]+}/deselect", h.DeselectCuisine).Methods("POST")

	r.HandleFunc("/achievements", h.ListAchievements).Methods("GET")
	r.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/notifications/read", h.MarkNotificationsRead).Methods("POST")

	r.HandleFunc("/friendships", h.RecordFriendship).Methods("POST")

	r.HandleFunc("/challenges", h.ListChallenges).Methods("GET")
	r.HandleFunc("/challenges", h.CreateChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id:[0-9]+}", h.GetChallenge).Methods("GET")
	r.HandleFunc("/challenges/{id:[0-9]+}/join", h.JoinChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id:[0-9]+}/leave", h.LeaveChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id:[0-9]+}/participants", h.ListParticipants).Methods("GET")
	r.HandleFunc("/challenges/{id:[0-9]+}/vote", h.SubmitVote).Methods("POST")
	r.HandleFunc("/challenges/{id:[0-9]+}/results", h.ChallengeResults).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

// GET /api/v1/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(auth.GetUserIDFromSession(r))
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /api/v1/profile/levelup/ack - clear the one-shot level-up flag
func (h *Handler) AcknowledgeLevelUp(w http.ResponseWriter, r *http.Request) {
	if err := h.progression.AcknowledgeLevelUp(auth.GetUserIDFromSession(r)); err != nil {
		http.Error(w, "Failed to acknowledge level up", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/recipes - personalized listing, or search when search_query is set
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromSession(r)
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	var restrictions []string
	if raw := q.Get("dietary_restrictions"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				restrictions = append(restrictions, tag)
			}
		}
	}

	search := q.Get("search_query")
	if search != "" && strings.EqualFold(strings.TrimSpace(search), h.secretPhrase) {
		if _, err := h.achievements.TryUnlock(userID, services.AchievementEasterEgg); err != nil {
			h.log.WithError(err).Warn("easter egg unlock failed")
		}
	}

	resp, err := h.recommendations.ListRecipes(services.ListRecipesRequest{
		UserID:              userID,
		Search:              search,
		DietaryRestrictions: restrictions,
		Page:                page,
		PerPage:             perPage,
	})
	if err != nil {
		h.log.WithError(err).Error("failed to list recipes")
		http.Error(w, "Failed to list recipes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/recipes/{id}
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.recipes.GetRecipe(pathID(r))
	if errors.Is(err, services.ErrRecipeNotFound) {
		http.Error(w, "Recipe not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get recipe", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// POST /api/v1/recipes/{id}/complete - mark cooked, award XP, update affinity
func (h *Handler) CompleteRecipe(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromSession(r)
	recipeID := pathID(r)

	if err := h.recipes.CompleteRecipe(userID, recipeID); err != nil {
		if errors.Is(err, services.ErrRecipeNotFound) {
			http.Error(w, "Recipe not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("failed to complete recipe")
		http.Error(w, "Failed to complete recipe", http.StatusInternalServerError)
		return
	}

	user, err := h.users.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /api/v1/recipes/{id}/reviews
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating     float64 `json:"rating"`
		Difficulty *int    `json:"difficulty"`
		Text       string  `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	review := &models.Review{
		RecipeID:   pathID(r),
		UserID:     auth.GetUserIDFromSession(r),
		Rating:     req.Rating,
		Difficulty: req.Difficulty,
		Text:       req.Text,
	}
	if err := h.recipes.SubmitReview(review); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// GET /api/v1/recipes/{id}/reviews
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.recipes.GetReviews(pathID(r))
	if err != nil {
		http.Error(w, "Failed to get reviews", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// GET /api/v1/cuisines
func (h *Handler) ListCuisines(w http.ResponseWriter, r *http.Request) {
	cuisines, err := h.recipes.ListCuisines()
	if err != nil {
		http.Error(w, "Failed to list cuisines", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cuisines)
}

// POST /api/v1/cuisines/{id}/select
func (h *Handler) SelectCuisine(w http.ResponseWriter, r *http.Request) {
	if err := h.cuisines.SelectCuisine(auth.GetUserIDFromSession(r), pathID(r)); err != nil {
		http.Error(w, "Failed to select cuisine", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/cuisines/{id}/deselect
func (h *Handler) DeselectCuisine(w http.ResponseWriter, r *http.Request) {
	if err := h.cuisines.DeselectCuisine(auth.GetUserIDFromSession(r), pathID(r)); err != nil {
		http.Error(w, "Failed to deselect cuisine", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/achievements
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.achievements.GetUserAchievements(auth.GetUserIDFromSession(r))
	if err != nil {
		http.Error(w, "Failed to list achievements", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

// GET /api/v1/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := h.achievements.GetNotifications(auth.GetUserIDFromSession(r), limit)
	if err != nil {
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// POST /api/v1/notifications/read
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.achievements.MarkNotificationsRead(auth.GetUserIDFromSession(r)); err != nil {
		http.Error(w, "Failed to mark notifications read", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/friendships - hook invoked when a friendship is formed;
// evaluates the friendship achievement for both parties
func (h *Handler) RecordFriendship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendID int `json:"friend_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := auth.GetUserIDFromSession(r)
	if err := h.achievements.UnlockForFriendship(userID, req.FriendID); err != nil {
		h.log.WithError(err).Error("failed to evaluate friendship achievement")
		http.Error(w, "Failed to record friendship", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/challenges
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.ListChallenges()
	if err != nil {
		http.Error(w, "Failed to list challenges", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

// POST /api/v1/challenges
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string    `json:"name"`
		Theme      string    `json:"theme"`
		Location   string    `json:"location"`
		Difficulty int       `json:"difficulty"`
		StartTime  time.Time `json:"start_time"`
		EndTime    time.Time `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	challenge := &models.Challenge{
		Name:       req.Name,
		Creator:    auth.GetUserIDFromSession(r),
		Theme:      req.Theme,
		Location:   req.Location,
		Difficulty: req.Difficulty,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	if err := h.challenges.CreateChallenge(challenge); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

// GET /api/v1/challenges/{id}
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.challenges.GetChallenge(pathID(r))
	if errors.Is(err, services.ErrChallengeNotFound) {
		http.Error(w, "Challenge not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get challenge", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*models.Challenge
		Status models.ChallengeStatus `json:"status"`
	}{challenge, challenge.Status(time.Now())})
}

// POST /api/v1/challenges/{id}/join
func (h *Handler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	err := h.challenges.Join(pathID(r), auth.GetUserIDFromSession(r))
	h.respondChallengeMutation(w, err, "Joined challenge")
}

// POST /api/v1/challenges/{id}/leave
func (h *Handler) LeaveChallenge(w http.ResponseWriter, r *http.Request) {
	err := h.challenges.Leave(pathID(r), auth.GetUserIDFromSession(r))
	h.respondChallengeMutation(w, err, "Left challenge")
}

func (h *Handler) respondChallengeMutation(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, services.ErrChallengeNotFound):
		http.Error(w, "Challenge not found", http.StatusNotFound)
	case errors.Is(err, services.ErrChallengeStarted):
		http.Error(w, "Challenge has already started", http.StatusForbidden)
	case err != nil:
		http.Error(w, "Challenge update failed", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": message})
	}
}

// GET /api/v1/challenges/{id}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	ids, err := h.challenges.Participants(pathID(r))
	if err != nil {
		http.Error(w, "Failed to list participants", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// POST /api/v1/challenges/{id}/vote
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstChoice  int  `json:"first_choice"`
		SecondChoice *int `json:"second_choice"`
		ThirdChoice  *int `json:"third_choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	voterID := auth.GetUserIDFromSession(r)
	err := h.challenges.SubmitVote(pathID(r), voterID, req.FirstChoice, req.SecondChoice, req.ThirdChoice)
	switch {
	case errors.Is(err, services.ErrChallengeNotFound):
		http.Error(w, "Challenge not found", http.StatusNotFound)
	case errors.Is(err, services.ErrVotingClosed):
		http.Error(w, "Voting is not allowed at this time", http.StatusForbidden)
	case errors.Is(err, services.ErrNotParticipant):
		http.Error(w, "You must be a participant to vote", http.StatusForbidden)
	case errors.Is(err, services.ErrSelfVote), errors.Is(err, services.ErrMissingFirstChoice):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		http.Error(w, "Failed to submit vote", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"message": "Vote submitted"})
	}
}

// GET /api/v1/challenges/{id}/results - final standings; pays out XP on
// first call, a no-op on every call after
func (h *Handler) ChallengeResults(w http.ResponseWriter, r *http.Request) {
	challengeID := pathID(r)

	results, err := h.challenges.ComputeResults(challengeID)
	switch {
	case errors.Is(err, services.ErrChallengeNotFound):
		http.Error(w, "Challenge not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrResultsNotReady):
		http.Error(w, "Results are not available yet", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, "Failed to compute results", http.StatusInternalServerError)
		return
	}

	if err := h.challenges.Payout(challengeID, results); err != nil {
		h.log.WithError(err).Error("challenge payout failed")
		http.Error(w, "Failed to pay out challenge rewards", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
