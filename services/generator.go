// services/generator.go - Daily AI quest generation
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"questlock/database"
	"questlock/models"
	"questlock/services/provider"
)

// DailyQuestsPerDifficulty is how many quests each bucket contributes to a
// daily batch. One special challenge is added on top.
const DailyQuestsPerDifficulty = 2

type rewardBounds struct{ min, max int }

var (
	bucketRewards = map[models.Difficulty]rewardBounds{
		models.DifficultyEasy:   {50, 100},
		models.DifficultyMedium: {150, 200},
		models.DifficultyHard:   {250, 350},
	}
	specialRewards = rewardBounds{100, 400}
)

// ShouldGenerateToday reports whether last falls on an earlier calendar day
// than now, both read in loc.
func ShouldGenerateToday(last *time.Time, now time.Time, loc *time.Location) bool {
	if last == nil {
		return true
	}
	return !sameDay(*last, now, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Generator gates provider calls to one batch per user per calendar day and
// turns provider output into persisted quests.
type Generator struct {
	quests *QuestService
	store  *database.Store
	client provider.Client
	loc    *time.Location

	locks sync.Map // user id -> *sync.Mutex
}

func NewGenerator(quests *QuestService, store *database.Store, client provider.Client, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{quests: quests, store: store, client: client, loc: loc}
}

func (g *Generator) lockUser(userID uint) func() {
	m, _ := g.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (g *Generator) user(ctx context.Context, userID uint) (*models.User, error) {
	return g.quests.GetUser(ctx, userID)
}

// GenerateDailyQuests returns today's AI quests, generating the batch first
// when the user has not had one today. A provider failure aborts the batch
// and persists nothing.
func (g *Generator) GenerateDailyQuests(ctx context.Context, userID uint) ([]models.Quest, error) {
	unlock := g.lockUser(userID)
	defer unlock()
	return g.generateDaily(ctx, userID)
}

func (g *Generator) generateDaily(ctx context.Context, userID uint) ([]models.Quest, error) {
	user, err := g.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := g.quests.now()
	if !ShouldGenerateToday(user.LastTaskGenerationDate, now, g.loc) {
		return g.todaysQuests(ctx, userID, now)
	}

	var drafts []QuestDraft
	for _, d := range models.Difficulties {
		batch, err := g.proposeBucket(ctx, user, d)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, batch...)
	}

	existing, err := g.todaysChallenge(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		challenge, err := g.proposeChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, challenge)
	}

	_, err = g.quests.CreateGeneratedQuests(ctx, userID, drafts, &GenerationMark{Previous: user.LastTaskGenerationDate})
	if err != nil {
		var conflict *StateConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		log.Printf("Daily quests for user %d were generated concurrently, returning existing batch", userID)
	} else {
		log.Printf("✨ Generated %d daily quests for user %d", len(drafts), userID)
	}
	return g.todaysQuests(ctx, userID, now)
}

// DailyChallenge returns today's special challenge, creating it if needed.
// When the daily batch is due it is generated along with the challenge.
func (g *Generator) DailyChallenge(ctx context.Context, userID uint) (*models.Quest, error) {
	unlock := g.lockUser(userID)
	defer unlock()

	now := g.quests.now()
	if existing, err := g.todaysChallenge(ctx, userID, now); err != nil || existing != nil {
		return existing, err
	}

	user, err := g.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ShouldGenerateToday(user.LastTaskGenerationDate, now, g.loc) {
		if _, err := g.generateDaily(ctx, userID); err != nil {
			return nil, err
		}
		challenge, err := g.todaysChallenge(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if challenge == nil {
			return nil, &ExternalProviderError{Op: "daily challenge", Err: errors.New("batch produced no challenge")}
		}
		return challenge, nil
	}

	draft, err := g.proposeChallenge(ctx, user)
	if err != nil {
		return nil, err
	}
	return g.quests.CreateGeneratedQuest(ctx, userID, draft)
}

// Suggest returns one validated proposal without saving it. An empty
// difficulty picks a random bucket.
func (g *Generator) Suggest(ctx context.Context, userID uint, difficulty models.Difficulty, special bool) (*QuestDraft, error) {
	if difficulty != "" && !difficulty.Valid() {
		return nil, &ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"}
	}
	user, err := g.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if special {
		draft, err := g.proposeChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		return &draft, nil
	}
	if difficulty == "" {
		difficulty = models.Difficulties[rand.IntN(len(models.Difficulties))]
	}

	proposals, err := g.client.Propose(ctx, provider.Request{
		UserLevel: user.Level, DisplayName: user.DisplayName, Difficulty: difficulty, Count: 1,
	})
	if err != nil {
		return nil, &ExternalProviderError{Op: "suggest", Err: err}
	}
	drafts := normalizeAll(proposals, difficulty, false, 1)
	if len(drafts) == 0 {
		return nil, &ExternalProviderError{Op: "suggest", Err: errors.New("no usable proposals")}
	}
	return &drafts[0], nil
}

func (g *Generator) proposeBucket(ctx context.Context, user *models.User, d models.Difficulty) ([]QuestDraft, error) {
	op := fmt.Sprintf("generate %s quests", d)
	proposals, err := g.client.Propose(ctx, provider.Request{
		UserLevel:   user.Level,
		DisplayName: user.DisplayName,
		Difficulty:  d,
		Count:       DailyQuestsPerDifficulty,
	})
	if err != nil {
		return nil, &ExternalProviderError{Op: op, Err: err}
	}
	drafts := normalizeAll(proposals, d, false, DailyQuestsPerDifficulty)
	if len(drafts) == 0 {
		return nil, &ExternalProviderError{Op: op, Err: errors.New("no usable proposals")}
	}
	return drafts, nil
}

func (g *Generator) proposeChallenge(ctx context.Context, user *models.User) (QuestDraft, error) {
	proposals, err := g.client.Propose(ctx, provider.Request{
		UserLevel:   user.Level,
		DisplayName: user.DisplayName,
		Count:       1,
		Special:     true,
	})
	if err != nil {
		return QuestDraft{}, &ExternalProviderError{Op: "generate daily challenge", Err: err}
	}
	drafts := normalizeAll(proposals, "", true, 1)
	if len(drafts) == 0 {
		return QuestDraft{}, &ExternalProviderError{Op: "generate daily challenge", Err: errors.New("no usable proposals")}
	}
	return drafts[0], nil
}

// todaysQuests lists the user's active AI quests created today.
func (g *Generator) todaysQuests(ctx context.Context, userID uint, now time.Time) ([]models.Quest, error) {
	quests, err := g.store.ListQuestsByUser(ctx, userID, models.QuestStatusActive)
	if err != nil {
		return nil, err
	}
	out := make([]models.Quest, 0, len(quests))
	for _, q := range quests {
		if q.CreatedBy == models.CreatedByAI && sameDay(q.CreatedAt, now, g.loc) {
			out = append(out, q)
		}
	}
	return out, nil
}

// todaysChallenge finds a special challenge created today in any status.
func (g *Generator) todaysChallenge(ctx context.Context, userID uint, now time.Time) (*models.Quest, error) {
	quests, err := g.store.ListQuestsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range quests {
		if quests[i].IsSpecialChallenge && sameDay(quests[i].CreatedAt, now, g.loc) {
			return &quests[i], nil
		}
	}
	return nil, nil
}

func normalizeAll(proposals []provider.Proposal, d models.Difficulty, special bool, limit int) []QuestDraft {
	var drafts []QuestDraft
	for _, p := range proposals {
		if len(drafts) == limit {
			break
		}
		draft, err := Normalize(p, d, special)
		if err != nil {
			log.Printf("⚠️ Dropping provider proposal %q: %v", p.Title, err)
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

// Normalize validates a provider proposal and fills defaults. Regular
// quests take the requested difficulty; a special challenge keeps its own
// if valid. The reward is clamped to the bucket's range.
func Normalize(p provider.Proposal, want models.Difficulty, special bool) (QuestDraft, error) {
	draft := QuestDraft{
		Title:              strings.TrimSpace(p.Title),
		Description:        strings.TrimSpace(p.Description),
		Category:           strings.TrimSpace(p.Category),
		AIRecommendation:   strings.TrimSpace(p.AIRecommendation),
		IsSpecialChallenge: special,
	}
	if draft.Title == "" {
		return QuestDraft{}, &ValidationError{Field: "title", Reason: "is required"}
	}
	if draft.Description == "" {
		return QuestDraft{}, &ValidationError{Field: "description", Reason: "is required"}
	}

	draft.Difficulty = want
	if special {
		draft.Difficulty = models.Difficulty(strings.ToLower(strings.TrimSpace(p.Difficulty)))
		if !draft.Difficulty.Valid() {
			draft.Difficulty = models.DifficultyMedium
		}
	}

	switch pt := strings.ToLower(strings.TrimSpace(p.ProofType)); pt {
	case models.ProofTypePhoto, models.ProofTypeText:
		draft.ProofType = pt
	default:
		draft.ProofType = models.ProofTypeText
	}
	if draft.Category == "" {
		draft.Category = "general"
	}

	bounds := bucketRewards[draft.Difficulty]
	if special {
		bounds = specialRewards
	}
	if reward, ok := positiveInt(p.XPReward); ok {
		draft.XPReward = min(max(reward, bounds.min), bounds.max)
	} else {
		draft.XPReward = RewardFor(draft.Difficulty)
	}

	if p.FailurePenalty != nil {
		typ := strings.ToLower(strings.TrimSpace(p.FailurePenalty.Type))
		amount, ok := positiveInt(p.FailurePenalty.Amount)
		if ok && (typ == models.PenaltyCredits || typ == models.PenaltyXP) {
			draft.FailurePenalty = &models.Penalty{Type: typ, Amount: amount}
		}
	}
	return draft, nil
}

// positiveInt accepts whole JSON numbers and numeric strings above zero.
func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, n > 0
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i <= 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
