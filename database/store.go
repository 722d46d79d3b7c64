// database/store.go - Entity Store over gorm
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questlock/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a conditional write finds a
	// different current state than the caller expected.
	ErrStatusConflict = errors.New("current state does not match expected state")
	// ErrInsufficientBalance is returned when a guarded deduction would go
	// below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Fields is a partial update: only the listed columns change.
type Fields map[string]any

// Store is the persistence boundary for users, quests, punishment options
// and achievements.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations and tooling.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single SQL transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ================== USERS ==================

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("user get: %w", notFound(err))
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user get by username: %w", notFound(err))
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user get by email: %w", notFound(err))
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

// UpdateUser applies a partial update to one user.
func (s *Store) UpdateUser(ctx context.Context, id uint, fields Fields) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any(fields))
	if res.Error != nil {
		return nil, fmt.Errorf("user update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user update: %w", ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

// LockUser reads a user with a row lock held until the transaction ends.
// SQLite ignores the FOR UPDATE clause; its single connection already
// serializes writers.
func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, fmt.Errorf("user lock: %w", notFound(err))
	}
	return &user, nil
}

// SyncLock derives is_locked from the quests table in a single statement so
// the flag reflects every failed quest committed before it runs.
func (s *Store) SyncLock(ctx context.Context, id uint) (*models.User, error) {
	failed := s.db.Model(&models.Quest{}).
		Select("1").
		Where("quests.user_id = users.id AND quests.status = ?", models.QuestStatusFailed)
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_locked", gorm.Expr("EXISTS (?)", failed))
	if res.Error != nil {
		return nil, fmt.Errorf("user sync lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user sync lock: %w", ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

// AddUserCounters atomically adds deltas to integer columns (xp, xpass,
// streak) so concurrent completions never lose an increment.
func (s *Store) AddUserCounters(ctx context.Context, id uint, deltas map[string]int) error {
	updates := make(map[string]any, len(deltas))
	for col, delta := range deltas {
		updates[col] = gorm.Expr(col+" + ?", delta)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("user add counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user add counters: %w", ErrNotFound)
	}
	return nil
}

// DeductXP lowers xp by amount, clamping at zero.
func (s *Store) DeductXP(ctx context.Context, id uint, amount int) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("xp", gorm.Expr("CASE WHEN xp > ? THEN xp - ? ELSE 0 END", amount, amount))
	if res.Error != nil {
		return fmt.Errorf("user deduct xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user deduct xp: %w", ErrNotFound)
	}
	return nil
}

// SpendXPass lowers xpass by amount only when the balance covers it.
func (s *Store) SpendXPass(ctx context.Context, id uint, amount int) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND xpass >= ?", id, amount).
		Update("xpass", gorm.Expr("xpass - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("user spend xpass: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("user spend xpass: %w", ErrInsufficientBalance)
	}
	return nil
}

// MarkGenerated records a generation batch. It only succeeds if the stored
// lastTaskGenerationDate still equals previous, so two racing batches cannot
// both claim the same day.
func (s *Store) MarkGenerated(ctx context.Context, id uint, previous *time.Time, at time.Time) error {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
	if previous == nil {
		q = q.Where("last_task_generation_date IS NULL")
	} else {
		q = q.Where("last_task_generation_date = ?", *previous)
	}
	res := q.Update("last_task_generation_date", at)
	if res.Error != nil {
		return fmt.Errorf("user mark generated: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user mark generated: %w", ErrStatusConflict)
	}
	return nil
}

// ================== QUESTS ==================

func (s *Store) GetQuest(ctx context.Context, id uint) (*models.Quest, error) {
	var quest models.Quest
	if err := s.db.WithContext(ctx).First(&quest, id).Error; err != nil {
		return nil, fmt.Errorf("quest get: %w", notFound(err))
	}
	return &quest, nil
}

// ListQuestsByUser returns a user's quests, newest first, optionally
// restricted to the given statuses.
func (s *Store) ListQuestsByUser(ctx context.Context, userID uint, statuses ...models.QuestStatus) ([]models.Quest, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var quests []models.Quest
	if err := q.Order("created_at DESC, id DESC").Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("quest list: %w", err)
	}
	return quests, nil
}

// ListQuestsUpdatedSince backs cursor polling: quests changed strictly after
// since, oldest change first.
func (s *Store) ListQuestsUpdatedSince(ctx context.Context, userID uint, since time.Time) ([]models.Quest, error) {
	var quests []models.Quest
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, since).
		Order("updated_at ASC, id ASC").
		Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("quest list since: %w", err)
	}
	return quests, nil
}

// ListExpiredQuests returns active quests whose deadline is before now.
func (s *Store) ListExpiredQuests(ctx context.Context, now time.Time) ([]models.Quest, error) {
	var quests []models.Quest
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.QuestStatusActive, now).
		Order("expires_at ASC, id ASC").
		Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("quest list expired: %w", err)
	}
	return quests, nil
}

func (s *Store) CountQuestsByStatus(ctx context.Context, userID uint, status models.QuestStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Quest{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("quest count: %w", err)
	}
	return n, nil
}

// CreateQuest inserts a quest and its punishment options together.
func (s *Store) CreateQuest(ctx context.Context, quest *models.Quest, options []models.PunishmentOption) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quest.PunishmentOptions = nil
		if err := tx.Omit(clause.Associations).Create(quest).Error; err != nil {
			return fmt.Errorf("quest create: %w", err)
		}
		for i := range options {
			options[i].QuestID = quest.ID
		}
		if len(options) > 0 {
			if err := tx.Create(&options).Error; err != nil {
				return fmt.Errorf("punishment options create: %w", err)
			}
		}
		quest.PunishmentOptions = options
		return nil
	})
}

// UpdateQuest applies fields to a quest only if its stored status equals
// expected. A mismatch yields ErrStatusConflict, a missing row ErrNotFound.
func (s *Store) UpdateQuest(ctx context.Context, id uint, fields Fields, expected models.QuestStatus) (*models.Quest, error) {
	res := s.db.WithContext(ctx).Model(&models.Quest{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any(fields))
	if res.Error != nil {
		return nil, fmt.Errorf("quest update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetQuest(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("quest update: %w", ErrStatusConflict)
	}
	return s.GetQuest(ctx, id)
}

// ================== PUNISHMENT OPTIONS ==================

func (s *Store) ListPunishmentOptions(ctx context.Context, questID uint) ([]models.PunishmentOption, error) {
	var options []models.PunishmentOption
	if err := s.db.WithContext(ctx).Where("quest_id = ?", questID).Order("id ASC").Find(&options).Error; err != nil {
		return nil, fmt.Errorf("punishment options list: %w", err)
	}
	return options, nil
}

func (s *Store) GetPunishmentOption(ctx context.Context, id uint) (*models.PunishmentOption, error) {
	var option models.PunishmentOption
	if err := s.db.WithContext(ctx).First(&option, id).Error; err != nil {
		return nil, fmt.Errorf("punishment option get: %w", notFound(err))
	}
	return &option, nil
}

// ================== ACHIEVEMENTS ==================

func (s *Store) ListAchievements(ctx context.Context, userID uint) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("unlocked_at DESC").Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("achievement list: %w", err)
	}
	return achievements, nil
}

func (s *Store) CreateAchievement(ctx context.Context, achievement *models.Achievement) error {
	if achievement.UnlockedAt.IsZero() {
		achievement.UnlockedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(achievement).Error; err != nil {
		return fmt.Errorf("achievement create: %w", err)
	}
	return nil
}
