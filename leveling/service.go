package leveling

import (
	"context"
	"fmt"
	"log"
)

// UserStore persists the experience/level pair. UpdateExperienceAndLevel must
// write both values in a single update.
type UserStore interface {
	GetExperience(ctx context.Context, userID uint) (int, error)
	UpdateExperienceAndLevel(ctx context.Context, userID uint, experience, level int) error
}

// Adjuster is implemented by stores that can apply a read-modify-write of the
// experience column atomically. Service prefers it when available.
type Adjuster interface {
	AdjustExperience(ctx context.Context, userID uint, fn func(current int) (experience, level int)) error
}

type Service struct {
	users  UserStore
	logger *log.Logger
}

func NewService(users UserStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{users: users, logger: logger}
}

// AddExperience adds amount (which may be negative) to the user's total and
// stores the new total together with its level.
func (s *Service) AddExperience(ctx context.Context, userID uint, amount int) (Progress, error) {
	if adj, ok := s.users.(Adjuster); ok {
		var before int
		var next Progress
		err := adj.AdjustExperience(ctx, userID, func(current int) (int, int) {
			before = current
			next = ProgressFor(current + amount)
			return next.Experience, next.Level
		})
		if err != nil {
			return Progress{}, fmt.Errorf("adjust experience of user %d: %w", userID, err)
		}
		s.logLevelChange(userID, before, next)
		return next, nil
	}

	current, err := s.users.GetExperience(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("read experience of user %d: %w", userID, err)
	}
	next := ProgressFor(current + amount)
	if err := s.users.UpdateExperienceAndLevel(ctx, userID, next.Experience, next.Level); err != nil {
		return Progress{}, fmt.Errorf("store experience of user %d: %w", userID, err)
	}
	s.logLevelChange(userID, current, next)
	return next, nil
}

func (s *Service) logLevelChange(userID uint, before int, next Progress) {
	if lvl := Level(float64(before)); next.Level != lvl {
		s.logger.Printf("[leveling] user %d level %d -> %d (xp %d)", userID, lvl, next.Level, next.Experience)
	}
}

// Get returns the stored progress of a user.
func (s *Service) Get(ctx context.Context, userID uint) (Progress, error) {
	xp, err := s.users.GetExperience(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	return ProgressFor(xp), nil
}
