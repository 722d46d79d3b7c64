// services/sweeper.go - Background expiry of overdue quests
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"questlock/database"
	"questlock/models"

	"github.com/google/uuid"
)

const sweeperLeaseName = "quest-expiry"

// QuestFailer is the lifecycle transition the sweeper drives.
type QuestFailer interface {
	FailExpiredQuest(ctx context.Context, questID uint) (*models.Quest, error)
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Failed    []*models.Quest `json:"failed"`
	Conflicts int             `json:"conflicts"`
	Errors    int             `json:"errors"`
	// Skipped is set when another instance holds the sweep lease.
	Skipped bool `json:"skipped"`
}

// Sweeper periodically fails active quests whose deadline has passed. With a
// positive lease TTL only the instance holding the database lease sweeps.
type Sweeper struct {
	failer   QuestFailer
	store    *database.Store
	now      func() time.Time
	interval time.Duration
	leaseTTL time.Duration
	holder   string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(failer QuestFailer, store *database.Store, clock func() time.Time, interval, leaseTTL time.Duration) *Sweeper {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		failer:   failer,
		store:    store,
		now:      clock,
		interval: interval,
		leaseTTL: leaseTTL,
		holder:   uuid.NewString(),
	}
}

// Start launches the sweep loop. A second call while running is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	log.Printf("🧹 Expiration sweeper started (every %s)", s.interval)
}

// Stop cancels the loop, waits for the current pass and releases the lease.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	if s.leaseTTL > 0 {
		ctx, cancelRelease := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelRelease()
		if err := s.store.ReleaseLease(ctx, sweeperLeaseName, s.holder); err != nil {
			log.Printf("⚠️ Failed to release sweeper lease: %v", err)
		}
	}
	log.Println("🧹 Expiration sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("❌ Sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single pass. A failure on one quest is logged and the
// pass continues; only a failed expired-query aborts it.
func (s *Sweeper) SweepOnce(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	result := &SweepResult{}

	if s.leaseTTL > 0 {
		ok, err := s.store.AcquireLease(ctx, sweeperLeaseName, s.holder, s.leaseTTL, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Skipped = true
			return result, nil
		}
	}

	expired, err := s.store.ListExpiredQuests(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, q := range expired {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		failed, err := s.failer.FailExpiredQuest(ctx, q.ID)
		if err != nil {
			var conflict *StateConflictError
			if errors.As(err, &conflict) {
				result.Conflicts++
				continue
			}
			result.Errors++
			log.Printf("❌ Failed to expire quest %d: %v", q.ID, err)
			continue
		}
		result.Failed = append(result.Failed, failed)
	}

	if len(result.Failed) > 0 {
		log.Printf("⏰ Expired %d quests", len(result.Failed))
	}
	return result, nil
}
