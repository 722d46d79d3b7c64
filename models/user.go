// models/user.go
package models

import (
	"time"
)

const DefaultTitle = "Novice Challenger"

type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"not null" json:"display_name"`

	// Progression
	Level  int    `gorm:"not null;default:1" json:"level"`
	XP     int    `gorm:"not null;default:0" json:"xp"`
	XPass  int    `gorm:"column:xpass;not null;default:0" json:"xpass"`
	Streak int    `gorm:"not null;default:0" json:"streak"`
	Title  string `gorm:"not null;default:'Novice Challenger'" json:"title"`

	// Set while the user has a failed quest waiting for a punishment.
	IsLocked bool `gorm:"not null;default:false" json:"is_locked"`

	LastLoginDate          time.Time  `json:"last_login_date"`
	LastTaskGenerationDate *time.Time `json:"last_task_generation_date,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Quests       []Quest       `gorm:"foreignKey:UserID" json:"quests,omitempty"`
	Achievements []Achievement `gorm:"foreignKey:UserID" json:"achievements,omitempty"`
}

func (User) TableName() string {
	return "users"
}
