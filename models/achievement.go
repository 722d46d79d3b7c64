// models/achievement.go
package models

import "time"

// Achievement is unlocked by achievement logic outside the quest engine;
// the store only reads and records them.
type Achievement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	UnlockedAt  time.Time `gorm:"not null" json:"unlocked_at"`
	XPReward    int       `gorm:"not null;default:0" json:"xp_reward"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}
