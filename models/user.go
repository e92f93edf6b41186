package models

import "time"

// User carries the experience/level pair. The two columns are always written
// together so level never disagrees with experience.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Experience   int       `gorm:"not null;default:0" json:"experience"`
	Level        int       `gorm:"not null;default:1" json:"level"`
	RecordStatus Lifecycle `gorm:"column:record_status;size:10;not null;default:'CREATED'" json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}
