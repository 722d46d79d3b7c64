package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"questlock/config"
	"questlock/database"
	"questlock/middleware"
	"questlock/models"
	"questlock/services"
	"questlock/services/provider"

	"github.com/gofiber/fiber/v2"
)

const (
	testSecret     = "test-secret-that-is-at-least-32-characters"
	testCronSecret = "cron-token"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
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

type testEnv struct {
	app   *fiber.App
	store *database.Store
	clock *testClock
}

func setup(t *testing.T, client provider.Client) *testEnv {
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

	st := database.NewStore(conn)
	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	hub := services.NewBroadcaster()
	quests := services.NewQuestService(st, hub, clock.Now)
	if client == nil {
		client = provider.Disabled{}
	}

	middleware.SetJWTSecret(testSecret)
	Init(Deps{
		Quests:      quests,
		Generator:   services.NewGenerator(quests, st, client, time.UTC),
		Broadcaster: hub,
		Sweeper:     services.NewSweeper(quests, st, clock.Now, time.Minute, 0),
		Store:       st,
		Config:      &config.Config{AppEnv: "test", CronSecret: testCronSecret},
	})

	app := fiber.New()
	RegisterRoutes(app, nil)
	return &testEnv{app: app, store: st, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, username string) (string, uint) {
	t.Helper()
	status, body := e.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	if status != 201 {
		t.Fatalf("register status=%d body=%v", status, body)
	}
	user := body["user"].(map[string]any)
	return body["token"].(string), uint(user["id"].(float64))
}

func (e *testEnv) createQuest(t *testing.T, token string, difficulty models.Difficulty) uint {
	t.Helper()
	status, body := e.do(t, "POST", "/api/quests", token, fiber.Map{
		"title":       "Read a chapter",
		"description": "Any book",
		"difficulty":  difficulty,
	})
	if status != 201 {
		t.Fatalf("create quest status=%d body=%v", status, body)
	}
	return uint(body["task"].(map[string]any)["id"].(float64))
}

func optionID(t *testing.T, quest map[string]any, typ string) uint {
	t.Helper()
	opts, _ := quest["punishment_options"].([]any)
	for _, o := range opts {
		opt := o.(map[string]any)
		if opt["type"] == typ {
			return uint(opt["id"].(float64))
		}
	}
	t.Fatalf("no %s option in %v", typ, quest)
	return 0
}

func TestRegisterAndLogin(t *testing.T) {
	env := setup(t, nil)
	env.register(t, "ana")

	status, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"username": "ana", "email": "other@example.com", "password": "correct-horse",
	})
	if status != 409 {
		t.Fatalf("duplicate register status=%d, want 409", status)
	}

	status, _ = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "ana", "password": "wrong-password"})
	if status != 401 {
		t.Fatalf("bad password status=%d, want 401", status)
	}

	status, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "ana", "password": "correct-horse"})
	if status != 200 || body["token"] == "" || body["is_locked"] != false {
		t.Fatalf("login status=%d body=%v", status, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setup(t, nil)
	cases := []fiber.Map{
		{"username": "", "email": "a@example.com", "password": "correct-horse"},
		{"username": "bo", "email": "not-an-email", "password": "correct-horse"},
		{"username": "bo", "email": "bo@example.com", "password": "short"},
	}
	for _, c := range cases {
		if status, body := env.do(t, "POST", "/api/auth/register", "", c); status != 400 || body["code"] != CodeValidation {
			t.Fatalf("register %v status=%d body=%v, want 400 validation", c, status, body)
		}
	}
}

func TestRoutesRequireToken(t *testing.T) {
	env := setup(t, nil)
	for _, path := range []string{"/api/quests", "/api/user", "/api/user/stats", "/api/ai/daily-tasks"} {
		if status, _ := env.do(t, "GET", path, "", nil); status != 401 {
			t.Fatalf("GET %s status=%d, want 401", path, status)
		}
	}
	if status, _ := env.do(t, "GET", "/api/quests", "garbage", nil); status != 401 {
		t.Fatalf("bad token status=%d, want 401", status)
	}
}

func TestCompleteQuestOverHTTP(t *testing.T) {
	env := setup(t, nil)
	token, userID := env.register(t, "ana")
	questID := env.createQuest(t, token, models.DifficultyHard)

	status, body := env.do(t, "GET", "/api/quests/"+itoa(questID), token, nil)
	if status != 200 {
		t.Fatalf("get quest status=%d body=%v", status, body)
	}
	opts := body["task"].(map[string]any)["punishment_options"].([]any)
	if len(opts) != 3 {
		t.Fatalf("options=%d, want 3", len(opts))
	}

	status, body = env.do(t, "POST", "/api/quests/complete", token, fiber.Map{"task_id": questID})
	if status != 400 || body["code"] != CodeValidation {
		t.Fatalf("complete without proof status=%d body=%v", status, body)
	}

	status, body = env.do(t, "POST", "/api/quests/complete", token, fiber.Map{"task_id": questID, "proof": "done"})
	if status != 200 {
		t.Fatalf("complete status=%d body=%v", status, body)
	}
	if xp := body["user"].(map[string]any)["xp"].(float64); xp != 300 {
		t.Fatalf("xp=%v, want 300", xp)
	}

	status, body = env.do(t, "POST", "/api/quests/complete", token, fiber.Map{"task_id": questID, "proof": "again"})
	if status != 409 || body["code"] != CodeConflict || body["status"] != string(models.QuestStatusCompleted) {
		t.Fatalf("second complete status=%d body=%v", status, body)
	}

	u, err := env.store.GetUser(context.Background(), userID)
	if err != nil || u.XP != 300 || u.Streak != 1 {
		t.Fatalf("user=%+v err=%v", u, err)
	}
}

func TestQuestOwnership(t *testing.T) {
	env := setup(t, nil)
	owner, _ := env.register(t, "ana")
	other, _ := env.register(t, "bo")
	questID := env.createQuest(t, owner, models.DifficultyEasy)

	if status, body := env.do(t, "GET", "/api/quests/"+itoa(questID), other, nil); status != 403 || body["code"] != CodeForbidden {
		t.Fatalf("foreign get status=%d body=%v", status, body)
	}
	if status, _ := env.do(t, "POST", "/api/quests/complete", other, fiber.Map{"task_id": questID, "proof": "x"}); status != 403 {
		t.Fatalf("foreign complete status=%d, want 403", status)
	}
	if status, body := env.do(t, "GET", "/api/quests/9999", owner, nil); status != 404 || body["code"] != CodeNotFound {
		t.Fatalf("missing quest status=%d body=%v", status, body)
	}
}

func TestExpiryLockAndPunishment(t *testing.T) {
	env := setup(t, nil)
	token, _ := env.register(t, "ana")
	questID := env.createQuest(t, token, models.DifficultyHard)
	env.clock.Advance(25 * time.Hour)

	if status, _ := env.do(t, "GET", "/api/cron/expire-tasks?token=nope", "", nil); status != 401 {
		t.Fatalf("cron bad token status=%d, want 401", status)
	}
	status, body := env.do(t, "GET", "/api/cron/expire-tasks?token="+testCronSecret, "", nil)
	if status != 200 || body["expired"].(float64) != 1 {
		t.Fatalf("cron status=%d body=%v", status, body)
	}

	status, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "ana", "password": "correct-horse"})
	if status != 200 || body["is_locked"] != true {
		t.Fatalf("locked login status=%d body=%v", status, body)
	}

	_, body = env.do(t, "GET", "/api/quests/"+itoa(questID), token, nil)
	quest := body["task"].(map[string]any)
	if quest["status"] != string(models.QuestStatusFailed) {
		t.Fatalf("status=%v, want failed", quest["status"])
	}

	status, body = env.do(t, "POST", "/api/quests/punishment", token, fiber.Map{
		"task_id": questID, "punishment_id": optionID(t, quest, "xpass"),
	})
	if status != 400 || body["code"] != CodeInsufficient || body["required"].(float64) != 100 {
		t.Fatalf("xpass punishment status=%d body=%v", status, body)
	}

	status, body = env.do(t, "POST", "/api/quests/punishment", token, fiber.Map{
		"task_id": questID, "punishment_id": optionID(t, quest, "xp"),
	})
	if status != 200 || body["task"].(map[string]any)["status"] != string(models.QuestStatusPunished) {
		t.Fatalf("xp punishment status=%d body=%v", status, body)
	}

	_, body = env.do(t, "GET", "/api/user/stats", token, nil)
	stats := body["stats"].(map[string]any)
	if stats["is_locked"] != false || stats["current_xp"].(float64) != 0 {
		t.Fatalf("stats=%v", stats)
	}
}

func TestListQuestsFilters(t *testing.T) {
	env := setup(t, nil)
	token, _ := env.register(t, "ana")
	first := env.createQuest(t, token, models.DifficultyEasy)
	env.createQuest(t, token, models.DifficultyMedium)
	env.do(t, "POST", "/api/quests/complete", token, fiber.Map{"task_id": first, "proof": "done"})

	_, body := env.do(t, "GET", "/api/quests/active", token, nil)
	if body["count"].(float64) != 1 {
		t.Fatalf("active=%v, want 1", body["count"])
	}
	_, body = env.do(t, "GET", "/api/quests/completed", token, nil)
	if body["count"].(float64) != 1 {
		t.Fatalf("completed=%v, want 1", body["count"])
	}
	_, body = env.do(t, "GET", "/api/quests?status=active,completed", token, nil)
	if body["count"].(float64) != 2 {
		t.Fatalf("all=%v, want 2", body["count"])
	}
	if status, _ := env.do(t, "GET", "/api/quests?status=bogus", token, nil); status != 400 {
		t.Fatalf("bogus status filter=%d, want 400", status)
	}
}

func TestPollWithCursor(t *testing.T) {
	env := setup(t, nil)
	token, _ := env.register(t, "ana")
	env.createQuest(t, token, models.DifficultyEasy)

	since := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	status, body := env.do(t, "GET", "/api/quests?since="+since, token, nil)
	if status != 200 || len(body["tasks"].([]any)) != 1 {
		t.Fatalf("poll status=%d body=%v", status, body)
	}
	cursor := body["cursor"].(string)

	// Repeats within the overlap window; the cursor does not move.
	_, body = env.do(t, "GET", "/api/quests?since="+cursor, token, nil)
	if n := len(body["tasks"].([]any)); n != 1 || body["cursor"] != cursor {
		t.Fatalf("poll after cursor tasks=%d cursor=%v, want 1 and %s", n, body["cursor"], cursor)
	}
	parsed, _ := time.Parse(time.RFC3339Nano, cursor)
	later := parsed.Add(services.PollOverlap + time.Second).Format(time.RFC3339Nano)
	_, body = env.do(t, "GET", "/api/quests?since="+later, token, nil)
	if n := len(body["tasks"].([]any)); n != 0 {
		t.Fatalf("poll past overlap=%d, want 0", n)
	}
	if status, _ := env.do(t, "GET", "/api/quests?since=yesterday", token, nil); status != 400 {
		t.Fatalf("bad cursor status=%d, want 400", status)
	}
}

func TestXPassAndSuggestions(t *testing.T) {
	env := setup(t, nil)
	token, _ := env.register(t, "ana")

	if status, _ := env.do(t, "POST", "/api/xpass/add", token, fiber.Map{"amount": 0}); status != 400 {
		t.Fatalf("zero xpass status=%d, want 400", status)
	}
	status, body := env.do(t, "POST", "/api/xpass/add", token, fiber.Map{"amount": 40})
	if status != 200 || body["xpass"].(float64) != 40 {
		t.Fatalf("xpass status=%d body=%v", status, body)
	}

	_, body = env.do(t, "GET", "/api/quests/suggest", token, nil)
	if n := len(body["suggestions"].([]any)); n != 5 {
		t.Fatalf("suggestions=%d, want 5", n)
	}

	status, body = env.do(t, "POST", "/api/quests/accept-suggestion", token, fiber.Map{
		"title": "Walk", "description": "30 minutes", "difficulty": "easy", "xp_reward": 80,
	})
	if status != 201 || body["task"].(map[string]any)["created_by"] != models.CreatedBySuggestion {
		t.Fatalf("accept status=%d body=%v", status, body)
	}
}

func TestProviderUnavailable(t *testing.T) {
	env := setup(t, nil)
	token, userID := env.register(t, "ana")

	status, body := env.do(t, "GET", "/api/ai/daily-tasks", token, nil)
	if status != 502 || body["code"] != CodeProvider {
		t.Fatalf("daily tasks status=%d body=%v", status, body)
	}
	if u, _ := env.store.GetUser(context.Background(), userID); u.LastTaskGenerationDate != nil {
		t.Fatalf("generation gate moved after provider failure")
	}
	if status, _ := env.do(t, "GET", "/api/ai/suggest?difficulty=legendary", token, nil); status != 400 {
		t.Fatalf("bad difficulty status=%d, want 400", status)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	env := setup(t, nil)
	token, _ := env.register(t, "ana")
	if status, _ := env.do(t, "GET", "/ws?token="+token, "", nil); status != fiber.StatusUpgradeRequired {
		t.Fatalf("plain GET /ws status=%d, want 426", status)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
