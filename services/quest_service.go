// services/quest_service.go - Quest lifecycle state machine
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"questlock/database"
	"questlock/models"
)

// DefaultQuestDuration applies when a quest is created without a deadline.
const DefaultQuestDuration = 24 * time.Hour

var difficultyReward = map[models.Difficulty]int{
	models.DifficultyEasy:   50,
	models.DifficultyMedium: 150,
	models.DifficultyHard:   300,
}

// RewardFor returns the XP a user-authored quest of difficulty d is worth.
func RewardFor(d models.Difficulty) int {
	return difficultyReward[d]
}

// QuestService owns every quest status change. Each transition is a
// compare-and-set on the stored status, run in the same transaction as the
// user mutation it causes.
type QuestService struct {
	store  *database.Store
	events Emitter
	now    func() time.Time
	punish PunishmentResolver
}

// NewQuestService wires the controller. A nil clock means time.Now in UTC;
// a nil emitter discards events.
func NewQuestService(store *database.Store, events Emitter, clock func() time.Time) *QuestService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if events == nil {
		events = discardEmitter{}
	}
	return &QuestService{store: store, events: events, now: clock}
}

type discardEmitter struct{}

func (discardEmitter) Emit(uint, string, any) {}

// CreateQuestInput is a user-authored quest.
type CreateQuestInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  models.Difficulty `json:"difficulty"`
	ProofType   string            `json:"proof_type"`
	Category    *string           `json:"category"`
	ExpiresAt   *time.Time        `json:"expires_at"`
}

// SuggestionInput is a catalogue suggestion the user accepted. Its reward is
// taken as given once validated.
type SuggestionInput struct {
	CreateQuestInput
	XPReward int `json:"xp_reward"`
}

// QuestDraft is a validated AI proposal ready to persist.
type QuestDraft struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Difficulty         models.Difficulty `json:"difficulty"`
	Category           string            `json:"category"`
	ProofType          string            `json:"proof_type"`
	XPReward           int               `json:"xp_reward"`
	AIRecommendation   string            `json:"ai_recommendation"`
	FailurePenalty     *models.Penalty   `json:"failure_penalty,omitempty"`
	IsSpecialChallenge bool              `json:"is_special_challenge"`
}

type CompletionResult struct {
	Quest       *models.Quest `json:"task"`
	User        *models.User  `json:"user"`
	Progression Progression   `json:"progression"`
}

type PunishmentResult struct {
	Quest      *models.Quest            `json:"task"`
	Punishment *models.PunishmentOption `json:"punishment"`
	User       *models.User             `json:"user"`
}

// UserStats is the dashboard summary.
type UserStats struct {
	Active       int64 `json:"active"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
	Streak       int   `json:"streak"`
	Level        int   `json:"level"`
	CurrentXP    int   `json:"current_xp"`
	NextLevelXP  int   `json:"next_level_xp"`
	XPPercentage int   `json:"xp_percentage"`
	XPass        int   `json:"xpass"`
	IsLocked     bool  `json:"is_locked"`
}

func (s *QuestService) validateAuthored(in *CreateQuestInput, now time.Time) (time.Time, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return time.Time{}, &ValidationError{Field: "title", Reason: "is required"}
	}
	if in.Description == "" {
		return time.Time{}, &ValidationError{Field: "description", Reason: "is required"}
	}
	if !in.Difficulty.Valid() {
		return time.Time{}, &ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"}
	}
	switch in.ProofType {
	case "":
		in.ProofType = models.ProofTypeText
	case models.ProofTypePhoto, models.ProofTypeText:
	default:
		return time.Time{}, &ValidationError{Field: "proof_type", Reason: "must be photo or text"}
	}

	expires := now.Add(DefaultQuestDuration)
	if in.ExpiresAt != nil {
		expires = in.ExpiresAt.UTC()
		if !expires.After(now) {
			return time.Time{}, &ValidationError{Field: "expires_at", Reason: "must be in the future"}
		}
	}
	return expires, nil
}

// CreateQuest persists a user-authored quest with its three punishment
// options. The reward follows from difficulty.
func (s *QuestService) CreateQuest(ctx context.Context, userID uint, in CreateQuestInput) (*models.Quest, error) {
	now := s.now()
	expires, err := s.validateAuthored(&in, now)
	if err != nil {
		return nil, err
	}
	reward := RewardFor(in.Difficulty)
	quest := &models.Quest{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		XPReward:    reward,
		CreatedBy:   models.CreatedByUser,
		ProofType:   in.ProofType,
		Status:      models.QuestStatusActive,
		ExpiresAt:   expires,
		Category:    in.Category,
		CreatedAt:   now,
	}
	if err := s.insert(ctx, s.store, quest, s.punish.OptionsFor(in.Difficulty, reward)); err != nil {
		return nil, err
	}
	s.events.Emit(userID, EventNewTask, quest)
	return quest, nil
}

// AcceptSuggestion persists an accepted suggestion. Options are built as for
// authored quests.
func (s *QuestService) AcceptSuggestion(ctx context.Context, userID uint, in SuggestionInput) (*models.Quest, error) {
	now := s.now()
	expires, err := s.validateAuthored(&in.CreateQuestInput, now)
	if err != nil {
		return nil, err
	}
	if in.XPReward <= 0 {
		return nil, &ValidationError{Field: "xp_reward", Reason: "must be positive"}
	}
	quest := &models.Quest{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		XPReward:    in.XPReward,
		CreatedBy:   models.CreatedBySuggestion,
		ProofType:   in.ProofType,
		Status:      models.QuestStatusActive,
		ExpiresAt:   expires,
		Category:    in.Category,
		CreatedAt:   now,
	}
	if err := s.insert(ctx, s.store, quest, s.punish.OptionsFor(in.Difficulty, in.XPReward)); err != nil {
		return nil, err
	}
	s.events.Emit(userID, EventNewTask, quest)
	return quest, nil
}

func (s *QuestService) insert(ctx context.Context, store *database.Store, quest *models.Quest, options []models.PunishmentOption) error {
	if _, err := store.GetUser(ctx, quest.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Entity: "user", ID: quest.UserID}
		}
		return err
	}
	return store.CreateQuest(ctx, quest, options)
}

func (s *QuestService) draftQuest(userID uint, d QuestDraft, now time.Time) *models.Quest {
	quest := &models.Quest{
		UserID:             userID,
		Title:              d.Title,
		Description:        d.Description,
		Difficulty:         d.Difficulty,
		XPReward:           d.XPReward,
		CreatedBy:          models.CreatedByAI,
		ProofType:          d.ProofType,
		Status:             models.QuestStatusActive,
		ExpiresAt:          now.Add(DefaultQuestDuration),
		FailurePenalty:     d.FailurePenalty,
		IsSpecialChallenge: d.IsSpecialChallenge,
		CreatedAt:          now,
	}
	if d.Category != "" {
		category := d.Category
		quest.Category = &category
	}
	recommendation := d.AIRecommendation
	quest.AIRecommendation = &recommendation
	return quest
}

// CreateGeneratedQuest persists one AI quest with its single penalty option.
func (s *QuestService) CreateGeneratedQuest(ctx context.Context, userID uint, d QuestDraft) (*models.Quest, error) {
	quests, err := s.CreateGeneratedQuests(ctx, userID, []QuestDraft{d}, nil)
	if err != nil {
		return nil, err
	}
	return quests[0], nil
}

// GenerationMark claims the daily gate in the same transaction as the batch.
// Previous is the lastTaskGenerationDate the caller observed.
type GenerationMark struct {
	Previous *time.Time
}

// CreateGeneratedQuests persists drafts in order. With a non-nil mark the
// user's generation date is advanced atomically; if another batch claimed
// the day first nothing is written and a StateConflictError is returned.
func (s *QuestService) CreateGeneratedQuests(ctx context.Context, userID uint, drafts []QuestDraft, mark *GenerationMark) ([]*models.Quest, error) {
	now := s.now()
	quests := make([]*models.Quest, 0, len(drafts))
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		for _, d := range drafts {
			quest := s.draftQuest(userID, d, now)
			if err := s.insert(ctx, tx, quest, s.punish.OptionsFromPenalty(d.FailurePenalty, d.XPReward)); err != nil {
				return err
			}
			quests = append(quests, quest)
		}
		if mark == nil {
			return nil
		}
		if err := tx.MarkGenerated(ctx, userID, mark.Previous, now); err != nil {
			if errors.Is(err, database.ErrStatusConflict) {
				return &StateConflictError{Reason: "daily quests were already generated"}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, q := range quests {
		s.events.Emit(userID, EventNewTask, q)
	}
	return quests, nil
}

// ownedQuest loads a quest and checks ownership.
func ownedQuest(ctx context.Context, store *database.Store, questID, userID uint) (*models.Quest, error) {
	quest, err := store.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "quest", ID: questID}
		}
		return nil, err
	}
	if quest.UserID != userID {
		return nil, &AuthorizationError{UserID: userID, QuestID: questID}
	}
	return quest, nil
}

// CompleteQuest moves an active quest to completed, awards its XP and bumps
// the streak. It fails with StateConflictError once expiresAt has passed,
// whether or not the sweeper has run.
func (s *QuestService) CompleteQuest(ctx context.Context, questID, userID uint, proof string) (*CompletionResult, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, &ValidationError{Field: "proof", Reason: "is required"}
	}

	now := s.now()
	var result CompletionResult
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		quest, err := ownedQuest(ctx, tx, questID, userID)
		if err != nil {
			return err
		}
		if quest.Status != models.QuestStatusActive {
			return &StateConflictError{QuestID: questID, Status: quest.Status, Reason: "only active quests can be completed"}
		}
		if !now.Before(quest.ExpiresAt) {
			return &StateConflictError{QuestID: questID, Status: quest.Status, Reason: "quest has expired"}
		}

		updated, err := tx.UpdateQuest(ctx, questID, database.Fields{
			"status":       models.QuestStatusCompleted,
			"completed_at": now,
			"proof":        proof,
		}, models.QuestStatusActive)
		if err != nil {
			return questConflict(ctx, tx, questID, err, "quest changed before completion")
		}

		if err := tx.AddUserCounters(ctx, userID, map[string]int{"xp": quest.XPReward, "streak": 1}); err != nil {
			return err
		}
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		before := models.User{XP: user.XP - quest.XPReward, Level: user.Level}
		progression := ApplyReward(&before, quest.XPReward)
		if progression.LeveledUp {
			user, err = tx.UpdateUser(ctx, userID, database.Fields{
				"level": progression.NewLevel,
				"title": TitleForLevel(progression.NewLevel),
			})
			if err != nil {
				return err
			}
		}

		result = CompletionResult{Quest: updated, User: user, Progression: progression}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(userID, EventTaskCompleted, eventData{
		"task":       result.Quest,
		"userUpdate": result.Progression,
	})
	return &result, nil
}

// FailExpiredQuest moves an overdue active quest to failed and locks its
// owner. Only the sweeper calls this.
func (s *QuestService) FailExpiredQuest(ctx context.Context, questID uint) (*models.Quest, error) {
	now := s.now()
	var failed *models.Quest
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		quest, err := tx.GetQuest(ctx, questID)
		if err != nil {
			return questConflict(ctx, tx, questID, err, "")
		}
		// User row first, same order as ApplyPunishment.
		if _, err := tx.LockUser(ctx, quest.UserID); err != nil {
			return err
		}
		if quest.Status != models.QuestStatusActive {
			return &StateConflictError{QuestID: questID, Status: quest.Status, Reason: "only active quests can fail"}
		}
		if !quest.ExpiresAt.Before(now) {
			return &StateConflictError{QuestID: questID, Status: quest.Status, Reason: "quest has not expired"}
		}

		failed, err = tx.UpdateQuest(ctx, questID, database.Fields{"status": models.QuestStatusFailed}, models.QuestStatusActive)
		if err != nil {
			return questConflict(ctx, tx, questID, err, "quest changed before expiry")
		}
		_, err = tx.UpdateUser(ctx, quest.UserID, database.Fields{"is_locked": true})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(failed.UserID, EventTaskFailed, eventData{"task": failed})
	return failed, nil
}

// ApplyPunishment resolves a failed quest with one of its own options. A
// rejected charge leaves the quest failed and the user locked.
func (s *QuestService) ApplyPunishment(ctx context.Context, questID, userID, optionID uint) (*PunishmentResult, error) {
	var result PunishmentResult
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		quest, err := ownedQuest(ctx, tx, questID, userID)
		if err != nil {
			return err
		}
		if quest.Status != models.QuestStatusFailed {
			return &StateConflictError{QuestID: questID, Status: quest.Status, Reason: "only failed quests can be punished"}
		}

		option, err := tx.GetPunishmentOption(ctx, optionID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return &NotFoundError{Entity: "punishment option", ID: optionID}
			}
			return err
		}
		if option.QuestID != questID {
			return &ValidationError{Field: "punishment_id", Reason: "option does not belong to this quest"}
		}

		// Serializes with expiry of the user's other quests.
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		punished, err := tx.UpdateQuest(ctx, questID, database.Fields{"status": models.QuestStatusPunished}, models.QuestStatusFailed)
		if err != nil {
			return questConflict(ctx, tx, questID, err, "punishment already applied")
		}
		if err := s.punish.Apply(ctx, tx, user, option); err != nil {
			return err
		}

		user, err = tx.SyncLock(ctx, userID)
		if err != nil {
			return err
		}

		result = PunishmentResult{Quest: punished, Punishment: option, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(userID, EventPunishmentApplied, eventData{
		"task":       result.Quest,
		"punishment": result.Punishment,
		"user":       result.User,
	})
	return &result, nil
}

// GetQuest returns an owned quest with its punishment options.
func (s *QuestService) GetQuest(ctx context.Context, questID, userID uint) (*models.Quest, error) {
	quest, err := ownedQuest(ctx, s.store, questID, userID)
	if err != nil {
		return nil, err
	}
	options, err := s.store.ListPunishmentOptions(ctx, questID)
	if err != nil {
		return nil, err
	}
	quest.PunishmentOptions = options
	return quest, nil
}

func (s *QuestService) ListQuests(ctx context.Context, userID uint, statuses ...models.QuestStatus) ([]models.Quest, error) {
	for _, st := range statuses {
		switch st {
		case models.QuestStatusActive, models.QuestStatusCompleted, models.QuestStatusFailed, models.QuestStatusPunished:
		default:
			return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(st)}
		}
	}
	return s.store.ListQuestsByUser(ctx, userID, statuses...)
}

// PollOverlap is how far before the cursor each poll looks again. updated_at
// is stamped before commit, so a slow transaction can land behind a cursor
// already handed out. Results may repeat across polls; clients dedupe by id.
const PollOverlap = 5 * time.Second

// PollQuests returns quests changed after since minus PollOverlap and the
// cursor to send next time. The cursor is the newest updated_at seen, or
// since when nothing changed.
func (s *QuestService) PollQuests(ctx context.Context, userID uint, since time.Time) ([]models.Quest, time.Time, error) {
	quests, err := s.store.ListQuestsUpdatedSince(ctx, userID, since.UTC().Add(-PollOverlap))
	if err != nil {
		return nil, since, err
	}
	cursor := since.UTC()
	for _, q := range quests {
		if q.UpdatedAt.After(cursor) {
			cursor = q.UpdatedAt.UTC()
		}
	}
	return quests, cursor, nil
}

func (s *QuestService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{Entity: "user", ID: userID}
	}
	return user, err
}

func (s *QuestService) Stats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &UserStats{
		Streak:      user.Streak,
		Level:       user.Level,
		CurrentXP:   user.XP,
		NextLevelXP: NextLevelXP(user.Level),
		XPass:       user.XPass,
		IsLocked:    user.IsLocked,
	}
	stats.XPPercentage = XPPercentage(stats.CurrentXP, stats.NextLevelXP)
	if stats.Active, err = s.store.CountQuestsByStatus(ctx, userID, models.QuestStatusActive); err != nil {
		return nil, err
	}
	if stats.Completed, err = s.store.CountQuestsByStatus(ctx, userID, models.QuestStatusCompleted); err != nil {
		return nil, err
	}
	if stats.Failed, err = s.store.CountQuestsByStatus(ctx, userID, models.QuestStatusFailed); err != nil {
		return nil, err
	}
	return stats, nil
}

// AddXPass credits a user's spendable balance.
func (s *QuestService) AddXPass(ctx context.Context, userID uint, amount int) (*models.User, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if err := s.store.AddUserCounters(ctx, userID, map[string]int{"xpass": amount}); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: userID}
		}
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *QuestService) Achievements(ctx context.Context, userID uint) ([]models.Achievement, error) {
	return s.store.ListAchievements(ctx, userID)
}

// eventData is the JSON body of a broadcast event.
type eventData map[string]any
