package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

type QuestRepository struct {
	db *gorm.DB
}

func NewQuestRepository(db *gorm.DB) *QuestRepository {
	return &QuestRepository{db: db}
}

func (r *QuestRepository) Create(ctx context.Context, q *models.Quest) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// FindQuestWithDetails loads the quest as a snapshot. The bool is false when
// the quest does not exist or is deleted.
func (r *QuestRepository) FindQuestWithDetails(ctx context.Context, id uint) (models.QuestSnapshot, bool, error) {
	var q models.Quest
	err := r.db.WithContext(ctx).Scopes(active).First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.QuestSnapshot{}, false, nil
	}
	if err != nil {
		return models.QuestSnapshot{}, false, err
	}
	return q.Snapshot(), true, nil
}

// UpdateQuestSteps replaces the whole step list.
func (r *QuestRepository) UpdateQuestSteps(ctx context.Context, id uint, steps []models.Step) error {
	res := r.db.WithContext(ctx).Model(&models.Quest{}).Scopes(active).
		Where("id = ?", id).
		Update("steps", datatypes.JSONSlice[models.Step](steps))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuestRepository) SetStatus(ctx context.Context, id uint, status models.QuestStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Quest{}).Scopes(active).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuestRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Quest{}).Scopes(active).
		Where("id = ?", id).
		Update("record_status", models.Deleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
