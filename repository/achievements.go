package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) Create(ctx context.Context, a *models.Achievement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// AssignToUser grants an achievement earned on questID (0 for none). It
// returns ErrNotFound for an unknown achievement and ErrConflict when the
// user already holds it.
func (r *AchievementRepository) AssignToUser(ctx context.Context, userID, achievementID, questID uint) (models.UserAchievement, error) {
	var grant models.UserAchievement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Achievement
		if err := tx.Scopes(active).First(&a, achievementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var n int64
		if err := tx.Model(&models.UserAchievement{}).
			Where("user_id = ? AND achievement_id = ?", userID, achievementID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}

		grant = models.UserAchievement{UserID: userID, AchievementID: achievementID, QuestID: questRef(questID), ReceivedAt: time.Now()}
		if err := tx.Create(&grant).Error; err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	return grant, err
}

func (r *AchievementRepository) ListForUser(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("received_at ASC").Find(&out).Error
	return out, err
}

func questRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
