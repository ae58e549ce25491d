package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mohinkhan13/MyBlog-Api/auth"
	"github.com/mohinkhan13/MyBlog-Api/common"
	"github.com/mohinkhan13/MyBlog-Api/community"
	"github.com/mohinkhan13/MyBlog-Api/content"
	"github.com/mohinkhan13/MyBlog-Api/database"
	"github.com/mohinkhan13/MyBlog-Api/engagement"
	"github.com/mohinkhan13/MyBlog-Api/outreach"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Self-healing pass: every post gets its 1:1 stats row before traffic.
	if _, err := engagement.ReconcileStats(db); err != nil {
		log.Fatal("Failed to reconcile post stats:", err)
	}

	router := gin.Default()

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.Static("/uploads", "./uploads")

	engagementModule := engagement.NewEngagementModule(db)
	authModule := auth.NewAuthModule(db, engagementModule.Recorder())
	contentModule := content.NewContentModule(db, engagementModule.Recorder(), authModule)
	communityModule := community.NewCommunityModule(db, engagementModule.Recorder(), authModule)
	outreachModule := outreach.NewOutreachModule(db, engagementModule.Recorder(), authModule)

	authModule.RegisterRoutes(router)
	contentModule.RegisterRoutes(router)
	communityModule.RegisterRoutes(router)
	outreachModule.RegisterRoutes(router)
	engagementModule.RegisterRoutes(router, authModule.RequireAuth)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s...", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
