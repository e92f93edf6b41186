package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

// ContributerRepository is the registry of quest participants.
type ContributerRepository struct {
	db *gorm.DB
}

func NewContributerRepository(db *gorm.DB) *ContributerRepository {
	return &ContributerRepository{db: db}
}

// Join registers an unconfirmed participant. A previously removed
// participant is reactivated rather than duplicated.
func (r *ContributerRepository) Join(ctx context.Context, questID, userID uint) (models.QuestContributer, error) {
	var out models.QuestContributer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.QuestContributer
		err := tx.Where("quest_id = ? AND user_id = ?", questID, userID).First(&existing).Error
		switch {
		case err == nil && existing.RecordStatus.IsActive():
			return ErrConflict
		case err == nil:
			existing.RecordStatus = models.Active
			existing.Confirmed = false
			existing.ConfirmedAt = nil
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"record_status": models.Active,
				"confirmed":     false,
				"confirmed_at":  nil,
			}).Error; err != nil {
				return err
			}
			out = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		out = models.QuestContributer{QuestID: questID, UserID: userID}
		if err := tx.Create(&out).Error; err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
	return out, err
}

func (r *ContributerRepository) Confirm(ctx context.Context, questID, userID uint) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.QuestContributer{}).Scopes(active).
		Where("quest_id = ? AND user_id = ?", questID, userID).
		Updates(map[string]interface{}{"confirmed": true, "confirmed_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ContributerRepository) Remove(ctx context.Context, questID, userID uint) error {
	res := r.db.WithContext(ctx).Model(&models.QuestContributer{}).Scopes(active).
		Where("quest_id = ? AND user_id = ?", questID, userID).
		Updates(map[string]interface{}{"record_status": models.Deleted, "confirmed": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ContributerRepository) ConfirmedCount(ctx context.Context, questID uint) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.QuestContributer{}).Scopes(active).
		Where("quest_id = ? AND confirmed = ?", questID, true).
		Count(&n).Error
	return int(n), err
}

// ConfirmedUsers lists the user ids of confirmed participants, ascending.
func (r *ContributerRepository) ConfirmedUsers(ctx context.Context, questID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.QuestContributer{}).Scopes(active).
		Where("quest_id = ? AND confirmed = ?", questID, true).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}
