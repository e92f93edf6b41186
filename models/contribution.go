package models

import "time"

// QuestContributer is a user's participation in a quest's contributers step.
// Only confirmed rows count toward progress.
type QuestContributer struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	QuestID      uint       `gorm:"not null;uniqueIndex:idx_quest_contributer" json:"quest_id"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_quest_contributer" json:"user_id"`
	Confirmed    bool       `gorm:"not null;default:false" json:"confirmed"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	RecordStatus Lifecycle  `gorm:"column:record_status;size:10;not null;default:'CREATED'" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (QuestContributer) TableName() string {
	return "quest_contributers"
}

// Contribution is a ledger entry: an amount given by a user toward a
// finance or material step.
type Contribution struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	QuestID      uint      `gorm:"not null;index:idx_contribution_step" json:"quest_id"`
	StepType     StepType  `gorm:"size:20;not null;index:idx_contribution_step" json:"step_type"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Amount       int       `gorm:"not null" json:"amount"`
	RecordStatus Lifecycle `gorm:"column:record_status;size:10;not null;default:'CREATED'" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Contribution) TableName() string {
	return "contributions"
}
