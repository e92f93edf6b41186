package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

// ContributionRepository is the contribution ledger.
type ContributionRepository struct {
	db *gorm.DB
}

func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func (r *ContributionRepository) Add(ctx context.Context, c *models.Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Sum totals the recorded amounts of one step of a quest.
func (r *ContributionRepository) Sum(ctx context.Context, questID uint, stepType models.StepType) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Contribution{}).Scopes(active).
		Where("quest_id = ? AND step_type = ?", questID, stepType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return int(total), err
}
