package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

type QuestStore interface {
	Create(ctx context.Context, q *models.Quest) error
	FindQuestWithDetails(ctx context.Context, id uint) (models.QuestSnapshot, bool, error)
	UpdateQuestSteps(ctx context.Context, id uint, steps []models.Step) error
	SetStatus(ctx context.Context, id uint, status models.QuestStatus) error
	Delete(ctx context.Context, id uint) error
}

type ContributerStore interface {
	Join(ctx context.Context, questID, userID uint) (models.QuestContributer, error)
	Confirm(ctx context.Context, questID, userID uint) error
	Remove(ctx context.Context, questID, userID uint) error
	ConfirmedCount(ctx context.Context, questID uint) (int, error)
	ConfirmedUsers(ctx context.Context, questID uint) ([]uint, error)
}

type ContributionStore interface {
	Add(ctx context.Context, c *models.Contribution) error
	Sum(ctx context.Context, questID uint, stepType models.StepType) (int, error)
}

type AchievementStore interface {
	Create(ctx context.Context, a *models.Achievement) error
	AssignToUser(ctx context.Context, userID, achievementID, questID uint) (models.UserAchievement, error)
	ListForUser(ctx context.Context, userID uint) ([]models.UserAchievement, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uint) (models.User, bool, error)
	GetExperience(ctx context.Context, id uint) (int, error)
	UpdateExperienceAndLevel(ctx context.Context, id uint, experience, level int) error
}

// Stores bundles every collaborator the engine and the HTTP layer use.
type Stores struct {
	Quests        QuestStore
	Contributers  ContributerStore
	Contributions ContributionStore
	Achievements  AchievementStore
	Users         UserStore
}

// NewGormStores builds MySQL-backed stores sharing one connection pool.
func NewGormStores(db *gorm.DB) Stores {
	return Stores{
		Quests:        NewQuestRepository(db),
		Contributers:  NewContributerRepository(db),
		Contributions: NewContributionRepository(db),
		Achievements:  NewAchievementRepository(db),
		Users:         NewUserRepository(db),
	}
}

// NewMemoryStores builds in-process stores.
func NewMemoryStores() Stores {
	seq := &sequence{}
	quests := NewMemoryQuests()
	quests.seq = seq
	contributers := NewMemoryContributers()
	contributers.seq = seq
	contributions := NewMemoryContributions()
	contributions.seq = seq
	achievements := NewMemoryAchievements()
	achievements.seq = seq
	users := NewMemoryUsers()
	users.seq = seq
	return Stores{
		Quests:        quests,
		Contributers:  contributers,
		Contributions: contributions,
		Achievements:  achievements,
		Users:         users,
	}
}
