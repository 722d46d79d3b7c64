// Package provider talks to the external quest generation service.
package provider

import (
	"context"
	"errors"
	"fmt"

	"questlock/models"
)

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("quest provider is not configured")

// Request describes the quests wanted for one user. Difficulty is empty for
// a special challenge, where the provider picks it.
type Request struct {
	UserLevel   int
	DisplayName string
	Difficulty  models.Difficulty
	Count       int
	Special     bool
}

// RawPenalty is a penalty exactly as the provider sent it.
type RawPenalty struct {
	Type   string `json:"type"`
	Amount any    `json:"amount"`
}

// Proposal is one unvalidated quest from the provider. Numeric fields stay
// loosely typed because providers return numbers, numeric strings or nothing.
type Proposal struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Difficulty       string      `json:"difficulty"`
	Category         string      `json:"category"`
	ProofType        string      `json:"proofType"`
	XPReward         any         `json:"xpReward"`
	AIRecommendation string      `json:"aiRecommendation"`
	FailurePenalty   *RawPenalty `json:"failurePenalty"`
}

type Client interface {
	Propose(ctx context.Context, req Request) ([]Proposal, error)
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether a later attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Propose(context.Context, Request) ([]Proposal, error) {
	return nil, ErrNotConfigured
}
