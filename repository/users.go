package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Level == 0 {
		u.Level = 1
	}
	err := r.db.WithContext(ctx).Create(u).Error
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *UserRepository) Get(ctx context.Context, id uint) (models.User, bool, error) {
	var u models.User
	err := r.db.WithContext(ctx).Scopes(active).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

func (r *UserRepository) GetExperience(ctx context.Context, id uint) (int, error) {
	u, ok, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return u.Experience, nil
}

// UpdateExperienceAndLevel writes both columns in one statement.
func (r *UserRepository) UpdateExperienceAndLevel(ctx context.Context, id uint, experience, level int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Scopes(active).
		Where("id = ?", id).
		Updates(map[string]interface{}{"experience": experience, "level": level})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustExperience locks the user row, passes the stored experience to fn
// and writes back the pair it returns, all in one transaction. Concurrent
// grants for the same user therefore never lose an update.
func (r *UserRepository) AdjustExperience(ctx context.Context, id uint, fn func(current int) (experience, level int)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(active).First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		xp, lvl := fn(u.Experience)
		return tx.Model(&models.User{}).Where("id = ?", id).
			Updates(map[string]interface{}{"experience": xp, "level": lvl}).Error
	})
}
