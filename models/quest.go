// models/quest.go - Quest and Punishment Data Models
package models

import (
	"time"
)

// Quest status constants
type QuestStatus string

const (
	QuestStatusActive    QuestStatus = "active"
	QuestStatusCompleted QuestStatus = "completed"
	QuestStatusFailed    QuestStatus = "failed"
	QuestStatusPunished  QuestStatus = "punished"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the generation buckets in the order they are requested.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

const (
	CreatedByUser       = "user"
	CreatedByAI         = "ai"
	CreatedBySuggestion = "suggestion"
)

const (
	ProofTypePhoto = "photo"
	ProofTypeText  = "text"
)

// Penalty types a provider may attach to a generated quest.
const (
	PenaltyCredits = "credits"
	PenaltyXP      = "xp"
)

// Penalty is the provider-supplied failure consequence of an AI quest.
type Penalty struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
}

// Quest represents a time-boxed task owned by one user
type Quest struct {
	ID                 uint        `json:"id" gorm:"primaryKey"`
	UserID             uint        `json:"user_id" gorm:"not null;index"`
	User               *User       `json:"-" gorm:"foreignKey:UserID"`
	Title              string      `json:"title" gorm:"not null"`
	Description        string      `json:"description" gorm:"type:text;not null"`
	Difficulty         Difficulty  `json:"difficulty" gorm:"not null;size:10"`
	XPReward           int         `json:"xp_reward" gorm:"not null"`
	CreatedBy          string      `json:"created_by" gorm:"not null;size:20"`
	ProofType          string      `json:"proof_type" gorm:"not null;size:10"`
	Status             QuestStatus `json:"status" gorm:"not null;default:'active';size:20;index"`
	ExpiresAt          time.Time   `json:"expires_at" gorm:"not null;index"`
	CompletedAt        *time.Time  `json:"completed_at"`
	Proof              *string     `json:"proof"`
	Category           *string     `json:"category"`
	AIRecommendation   *string     `json:"ai_recommendation" gorm:"type:text"`
	FailurePenalty     *Penalty    `json:"failure_penalty,omitempty" gorm:"type:text;serializer:json"`
	IsSpecialChallenge bool        `json:"is_special_challenge" gorm:"not null;default:false"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" gorm:"index"`

	PunishmentOptions []PunishmentOption `json:"punishment_options,omitempty" gorm:"foreignKey:QuestID"`
}

type PunishmentType string

const (
	PunishmentXP       PunishmentType = "xp"
	PunishmentXPass    PunishmentType = "xpass"
	PunishmentPhysical PunishmentType = "physical"
	// PunishmentCredits comes from provider penalties and is paid in xpass.
	PunishmentCredits PunishmentType = "credits"
)

// PunishmentOption is created together with its quest and never changes.
type PunishmentOption struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	QuestID   uint           `json:"quest_id" gorm:"not null;index"`
	Type      PunishmentType `json:"type" gorm:"not null;size:20"`
	Value     string         `json:"value" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Quest) TableName() string {
	return "quests"
}

func (PunishmentOption) TableName() string {
	return "punishment_options"
}
