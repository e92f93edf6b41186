package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestArchived  QuestStatus = "archived"
)

type Quest struct {
	ID               uint                      `gorm:"primaryKey" json:"id"`
	Title            string                    `gorm:"size:255;not null" json:"title"`
	Description      string                    `gorm:"type:text" json:"description"`
	Status           QuestStatus               `gorm:"size:20;not null;default:'active'" json:"status"`
	OwnerID          uint                      `gorm:"index" json:"owner_id"`
	AchievementID    *uint                     `gorm:"column:achievement_id" json:"achievement_id,omitempty"`
	ExperienceReward int                       `gorm:"not null;default:0" json:"experience_reward"`
	Steps            datatypes.JSONSlice[Step] `json:"steps"`
	RecordStatus     Lifecycle                 `gorm:"column:record_status;size:10;not null;default:'CREATED'" json:"-"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (Quest) TableName() string {
	return "quests"
}

// Snapshot returns the denormalized, cacheable view of the quest.
func (q Quest) Snapshot() QuestSnapshot {
	return QuestSnapshot{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		Status:           q.Status,
		OwnerID:          q.OwnerID,
		AchievementID:    q.AchievementID,
		ExperienceReward: q.ExperienceReward,
		Steps:            CloneSteps(q.Steps),
		UpdatedAt:        q.UpdatedAt,
	}
}

// QuestSnapshot is what the cache stores under quest:{id}.
type QuestSnapshot struct {
	ID               uint        `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Status           QuestStatus `json:"status"`
	OwnerID          uint        `json:"ownerId"`
	AchievementID    *uint       `json:"achievementId,omitempty"`
	ExperienceReward int         `json:"experienceReward"`
	Steps            []Step      `json:"steps"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Step returns the first step of the given type.
func (s *QuestSnapshot) Step(t StepType) (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].Type == t {
			return &s.Steps[i], true
		}
	}
	return nil, false
}
