package models

import "time"

type Achievement struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Icon         string    `gorm:"size:255" json:"icon,omitempty"`
	RecordStatus Lifecycle `gorm:"column:record_status;size:10;not null;default:'CREATED'" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement is a grant. (user_id, achievement_id) is unique, so a
// second grant of the same achievement is rejected by the store.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint      `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	QuestID       *uint     `json:"quest_id,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}
