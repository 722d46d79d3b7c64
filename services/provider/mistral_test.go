package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"questlock/models"
)

func chatBody(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func testClient(url string) *Mistral {
	return NewMistral(MistralConfig{
		APIKey:          "test-key",
		BaseURL:         url,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	})
}

func TestProposeParsesTasks(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization=%q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write(chatBody(t, `{"tasks":[{"title":"Stretch","description":"10 minutes","xpReward":60},{"title":"Journal","description":"One page","xpReward":"75"}]}`))
	}))
	defer srv.Close()

	proposals, err := testClient(srv.URL).Propose(context.Background(), Request{
		UserLevel: 2, DisplayName: "Ana", Difficulty: models.DifficultyEasy, Count: 2,
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 2 || proposals[0].Title != "Stretch" {
		t.Fatalf("proposals=%+v", proposals)
	}
	if got.Model != "open-mixtral-8x7b" || got.ResponseFormat.Type != "json_object" || got.Temperature != 0.7 {
		t.Fatalf("request=%+v", got)
	}
	if !strings.Contains(got.Messages[0].Content, `"easy"`) {
		t.Fatalf("prompt does not pin difficulty: %s", got.Messages[0].Content)
	}
}

func TestProposeParsesChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatBody(t, `{"challenge":{"title":"Scavenger hunt","description":"Find 10 things","difficulty":"hard","failurePenalty":{"type":"credits","amount":30}}}`))
	}))
	defer srv.Close()

	proposals, err := testClient(srv.URL).Propose(context.Background(), Request{Special: true})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 1 || proposals[0].FailurePenalty == nil || proposals[0].FailurePenalty.Type != "credits" {
		t.Fatalf("proposals=%+v", proposals)
	}
}

func TestProposeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(chatBody(t, `{"task":{"title":"Walk","description":"Around the block"}}`))
	}))
	defer srv.Close()

	proposals, err := testClient(srv.URL).Propose(context.Background(), Request{Difficulty: models.DifficultyMedium, Count: 1})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 1 || calls.Load() != 3 {
		t.Fatalf("proposals=%d calls=%d, want 1 and 3", len(proposals), calls.Load())
	}
}

func TestProposeGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Propose(context.Background(), Request{Difficulty: models.DifficultyHard, Count: 2})
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusBadGateway {
		t.Fatalf("err=%v, want StatusError 502", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d, want 3", calls.Load())
	}
}

func TestProposeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Propose(context.Background(), Request{Difficulty: models.DifficultyEasy, Count: 2})
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusUnauthorized {
		t.Fatalf("err=%v, want StatusError 401", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d, want 1", calls.Load())
	}
}

func TestProposeMalformedContent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(chatBody(t, `not json at all`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Propose(context.Background(), Request{Difficulty: models.DifficultyEasy, Count: 2}); err == nil {
		t.Fatalf("expected error for malformed content")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d, want 1", calls.Load())
	}
}

func TestProposeWithoutKey(t *testing.T) {
	_, err := NewMistral(MistralConfig{}).Propose(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v, want ErrNotConfigured", err)
	}
}
