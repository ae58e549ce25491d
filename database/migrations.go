package database

import (
	"log"

	"github.com/mohinkhan13/MyBlog-Api/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Post{},
		&models.PostStats{},
		&models.Comment{},
		&models.Reply{},
		&models.Contact{},
		&models.Newsletter{},
		&models.ActivityLog{},
		&models.RevokedToken{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}
