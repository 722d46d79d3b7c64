// services/errors.go - Domain error taxonomy
package services

import (
	"context"
	"errors"
	"fmt"

	"questlock/database"
	"questlock/models"
)

// ValidationError reports malformed input to an operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing quest, user or punishment option.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// AuthorizationError is returned when a user acts on a quest they do not own.
type AuthorizationError struct {
	UserID  uint
	QuestID uint
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("quest %d does not belong to user %d", e.QuestID, e.UserID)
}

// StateConflictError is returned when a transition is attempted from a
// disallowed state, including the loser of a completion/expiry race.
type StateConflictError struct {
	QuestID uint
	Status  models.QuestStatus
	Reason  string
}

func (e *StateConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("quest %d: %s", e.QuestID, e.Reason)
	}
	return fmt.Sprintf("quest %d is %s: %s", e.QuestID, e.Status, e.Reason)
}

// InsufficientResourceError is returned when xpass is below a punishment cost.
type InsufficientResourceError struct {
	Resource  string
	Required  int
	Available int
}

func (e *InsufficientResourceError) Error() string {
	return fmt.Sprintf("not enough %s: need %d, have %d", e.Resource, e.Required, e.Available)
}

// ExternalProviderError wraps a failed or unusable generation request.
type ExternalProviderError struct {
	Op  string
	Err error
}

func (e *ExternalProviderError) Error() string {
	return fmt.Sprintf("quest provider %s: %v", e.Op, e.Err)
}

func (e *ExternalProviderError) Unwrap() error {
	return e.Err
}

// questConflict converts a store precondition failure into the domain error,
// re-reading the quest so the caller sees the state that won.
func questConflict(ctx context.Context, store *database.Store, questID uint, err error, reason string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return &NotFoundError{Entity: "quest", ID: questID}
	case errors.Is(err, database.ErrStatusConflict):
		conflict := &StateConflictError{QuestID: questID, Reason: reason}
		if q, getErr := store.GetQuest(ctx, questID); getErr == nil {
			conflict.Status = q.Status
		}
		return conflict
	}
	return err
}
