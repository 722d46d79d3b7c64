// services/punishment.go - Punishment option generation and resolution
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"questlock/database"
	"questlock/models"
)

var physicalChallenge = map[models.Difficulty]string{
	models.DifficultyEasy:   "20 Push-ups",
	models.DifficultyMedium: "35 Burpees",
	models.DifficultyHard:   "50 Burpees",
}

// PunishmentResolver builds a quest's penalty options and applies the one a
// user picks after failing.
type PunishmentResolver struct{}

// OptionsFor returns the three options attached to user-authored and
// accepted-suggestion quests.
func (PunishmentResolver) OptionsFor(difficulty models.Difficulty, reward int) []models.PunishmentOption {
	physical, ok := physicalChallenge[difficulty]
	if !ok {
		physical = physicalChallenge[models.DifficultyMedium]
	}
	return []models.PunishmentOption{
		{Type: models.PunishmentXP, Value: strconv.Itoa(reward)},
		{Type: models.PunishmentXPass, Value: strconv.Itoa(reward / 3)},
		{Type: models.PunishmentPhysical, Value: physical},
	}
}

// OptionsFromPenalty returns the single option of an AI quest: its provider
// penalty, or a credits fallback worth a third of the reward.
func (PunishmentResolver) OptionsFromPenalty(penalty *models.Penalty, reward int) []models.PunishmentOption {
	if penalty != nil && penalty.Amount > 0 {
		switch penalty.Type {
		case models.PenaltyXP:
			return []models.PunishmentOption{{Type: models.PunishmentXP, Value: strconv.Itoa(penalty.Amount)}}
		case models.PenaltyCredits:
			return []models.PunishmentOption{{Type: models.PunishmentCredits, Value: strconv.Itoa(penalty.Amount)}}
		}
	}
	return []models.PunishmentOption{{Type: models.PunishmentCredits, Value: strconv.Itoa(reward / 3)}}
}

// Apply charges the user for option inside tx. Physical options are taken on
// trust and change no balance.
func (PunishmentResolver) Apply(ctx context.Context, tx *database.Store, user *models.User, option *models.PunishmentOption) error {
	switch option.Type {
	case models.PunishmentPhysical:
		return nil
	case models.PunishmentXP:
		amount, err := optionAmount(option)
		if err != nil {
			return err
		}
		return tx.DeductXP(ctx, user.ID, amount)
	case models.PunishmentXPass, models.PunishmentCredits:
		amount, err := optionAmount(option)
		if err != nil {
			return err
		}
		if err := tx.SpendXPass(ctx, user.ID, amount); err != nil {
			if errors.Is(err, database.ErrInsufficientBalance) {
				return &InsufficientResourceError{Resource: "xpass", Required: amount, Available: user.XPass}
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("punishment option %d: unknown type %q", option.ID, option.Type)
	}
}

func optionAmount(option *models.PunishmentOption) (int, error) {
	amount, err := strconv.Atoi(option.Value)
	if err != nil || amount < 0 {
		return 0, fmt.Errorf("punishment option %d: invalid amount %q", option.ID, option.Value)
	}
	return amount, nil
}
