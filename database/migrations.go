package database

import (
	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Quest{},
		&models.QuestContributer{},
		&models.Contribution{},
		&models.Achievement{},
		&models.UserAchievement{},
	}
}

// Migrate runs AutoMigrate for all models inside a transaction.
func Migrate(db *gorm.DB) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.AutoMigrate(Models()...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
