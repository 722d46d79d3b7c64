package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"questlock/database"
	"questlock/models"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordedEvent struct {
	UserID uint
	Type   string
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Emit(userID uint, eventType string, _ any) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{userID, eventType})
	r.mu.Unlock()
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	conn, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database.NewStore(conn)
}

func newTestService(t *testing.T) (*QuestService, *database.Store, *testClock, *recorder) {
	t.Helper()
	store := newTestStore(t)
	clock := newTestClock()
	rec := &recorder{}
	return NewQuestService(store, rec, clock.Now), store, clock, rec
}

func createUser(t *testing.T, store *database.Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    name,
		Email:       name + "@example.com",
		Password:    "hash",
		DisplayName: name,
		Level:       1,
		Title:       models.DefaultTitle,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func setUser(t *testing.T, store *database.Store, id uint, fields database.Fields) {
	t.Helper()
	if _, err := store.UpdateUser(context.Background(), id, fields); err != nil {
		t.Fatalf("update user: %v", err)
	}
}

func mustUser(t *testing.T, store *database.Store, id uint) *models.User {
	t.Helper()
	u, err := store.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u
}

func mustQuest(t *testing.T, store *database.Store, id uint) *models.Quest {
	t.Helper()
	q, err := store.GetQuest(context.Background(), id)
	if err != nil {
		t.Fatalf("get quest: %v", err)
	}
	return q
}

func optionOfType(t *testing.T, store *database.Store, questID uint, typ models.PunishmentType) models.PunishmentOption {
	t.Helper()
	opts, err := store.ListPunishmentOptions(context.Background(), questID)
	if err != nil {
		t.Fatalf("list options: %v", err)
	}
	for _, o := range opts {
		if o.Type == typ {
			return o
		}
	}
	t.Fatalf("quest %d has no %s option", questID, typ)
	return models.PunishmentOption{}
}
