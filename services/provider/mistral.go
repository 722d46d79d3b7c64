package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"questlock/models"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2"
)

type MistralConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries uint
	// InitialInterval is the first retry delay; it doubles per attempt.
	InitialInterval time.Duration
}

// Mistral generates quests through the chat-completions API.
type Mistral struct {
	cfg MistralConfig
}

func NewMistral(cfg MistralConfig) *Mistral {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "open-mixtral-8x7b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Mistral{cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// envelope covers the three shapes the prompts ask for.
type envelope struct {
	Tasks     []Proposal `json:"tasks"`
	Task      *Proposal  `json:"task"`
	Challenge *Proposal  `json:"challenge"`
}

var rewardRange = map[models.Difficulty]string{
	models.DifficultyEasy:   "50-100",
	models.DifficultyMedium: "150-200",
	models.DifficultyHard:   "250-350",
}

func buildPrompt(req Request) (string, float64) {
	if req.Special {
		return fmt.Sprintf(`Generate 1 special daily challenge for a level %d user named %s.
It must be original, combine more than one skill (for example physical and creative),
fit in a single day and feel like a small adventure. Avoid routine activities such as
stair climbing, hikes or planks.

Provide: title, description, difficulty (easy, medium or hard), category, proofType
(photo or text), xpReward (100-400), aiRecommendation and failurePenalty
(an object with type "credits" and amount 25-50).

Respond with a JSON object with a "challenge" object holding those fields.`,
			req.UserLevel, req.DisplayName), 0.8
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}
	return fmt.Sprintf(`Generate %d %s difficulty self-improvement tasks for a level %d user named %s.

For each task provide: title, description, category (for example fitness, productivity,
learning, mindfulness), proofType (photo or text), xpReward (%s), aiRecommendation and
failurePenalty (an object with type "credits" or "xp" and a positive amount).

Respond with a JSON object with a "tasks" array. Every task must have difficulty "%s".`,
		count, req.Difficulty, req.UserLevel, req.DisplayName, rewardRange[req.Difficulty], req.Difficulty), 0.7
}

// Propose asks the provider for quests, retrying transient failures with
// exponential backoff. Every attempt is bounded by the configured timeout.
func (m *Mistral) Propose(ctx context.Context, req Request) ([]Proposal, error) {
	if m.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	prompt, temperature := buildPrompt(req)
	body := chatRequest{
		Model:          m.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.InitialInterval

	attempt := 0
	operation := func() ([]Proposal, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		proposals, err := m.call(body)
		if err == nil {
			return proposals, nil
		}
		var status *StatusError
		if errors.As(err, &status) && !status.Retryable() {
			return nil, backoff.Permanent(err)
		}
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typeErr) || errors.Is(err, errEmptyResponse) {
			return nil, backoff.Permanent(err)
		}
		log.Printf("⚠️ Quest provider attempt %d failed: %v", attempt, err)
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.cfg.MaxRetries+1),
	)
}

var errEmptyResponse = errors.New("provider response has no choices")

func (m *Mistral) call(body chatRequest) ([]Proposal, error) {
	agent := fiber.Post(m.cfg.BaseURL + "/chat/completions")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+m.cfg.APIKey)
	agent.JSON(body)
	agent.Timeout(m.cfg.Timeout)

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, fmt.Errorf("build provider request: %w", err)
	}

	code, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("provider request: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		text := string(raw)
		if len(text) > 512 {
			text = text[:512]
		}
		return nil, &StatusError{Code: code, Body: text}
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyResponse
	}

	var env envelope
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &env); err != nil {
		return nil, fmt.Errorf("decode provider content: %w", err)
	}
	proposals := env.Tasks
	if env.Task != nil {
		proposals = append(proposals, *env.Task)
	}
	if env.Challenge != nil {
		proposals = append(proposals, *env.Challenge)
	}
	return proposals, nil
}
