// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/plateful/plateful-web/config"
	"github.com/plateful/plateful-web/internal/api"
	"github.com/plateful/plateful-web/internal/auth"
	"github.com/plateful/plateful-web/internal/database"
	"github.com/plateful/plateful-web/internal/services"
	"github.com/plateful/plateful-web/internal/websocket"
)

func main() {
	// Load config from files and environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize services
	userService := services.NewUserService(db)
	progressionService := services.NewProgressionService(db)
	achievementService := services.NewAchievementService(db, progressionService)
	cuisineService := services.NewCuisineService(db, achievementService)
	recipeService := services.NewRecipeService(db, progressionService, cuisineService, achievementService)
	recommendationService := services.NewRecommendationService(db)
	challengeService := services.NewChallengeService(db, progressionService)

	if err := achievementService.SeedDefaultAchievements(); err != nil {
		log.Fatalf("Failed to seed achievements: %v", err)
	}

	// Initialize auth with user service
	auth.Init(userService)

	// Live notification hub for achievement unlocks
	hub := websocket.NewHub()
	go hub.Run()
	achievementService.SetNotifier(hub)

	r := mux.NewRouter()

	// Public routes (no authentication required)
	publicRouter := r.PathPrefix("/").Subrouter()
	publicRouter.HandleFunc("/register", auth.RegisterHandler).Methods("POST")
	publicRouter.HandleFunc("/login", auth.LoginHandler).Methods("POST")
	publicRouter.HandleFunc("/logout", auth.LogoutHandler).Methods("POST")

	// Authenticated routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(auth.AuthMiddleware)

	// API routes
	apiRouter := authRouter.PathPrefix("/api/v1").Subrouter()
	handler := api.NewHandler(
		userService,
		progressionService,
		recipeService,
		recommendationService,
		achievementService,
		cuisineService,
		challengeService,
		cfg.Search.SecretPhrase,
	)
	api.RegisterRoutes(apiRouter, handler)

	// WebSocket routes
	websocket.RegisterRoutes(authRouter, hub)

	// CORS setup for development
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	corsHandler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	log.Printf("🍽️ Plateful server starting on port %s", port)
	log.Printf("🗄️ Database: %s", cfg.Database.Path)

	if err := http.ListenAndServe(":"+port, corsHandler); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
