package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const secretForTests = "middleware-test-secret-32-characters!!"

func TestIssueAndParseToken(t *testing.T) {
	SetJWTSecret(secretForTests)
	token, err := IssueToken(42, "ana")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	id, name, err := ParseToken(token)
	if err != nil || id != 42 || name != "ana" {
		t.Fatalf("ParseToken=%d,%q,%v want 42,ana", id, name, err)
	}

	SetJWTSecret("a-different-secret-of-enough-length!!")
	if _, _, err := ParseToken(token); err == nil {
		t.Fatalf("token verified under a different secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	SetJWTSecret(secretForTests)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte(secretForTests))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := ParseToken(signed); err == nil {
		t.Fatalf("expired token accepted")
	}

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	signed, _ = noExp.SignedString([]byte(secretForTests))
	if _, _, err := ParseToken(signed); err == nil {
		t.Fatalf("token without exp accepted")
	}
}

func TestAuthMiddlewareSetsUserID(t *testing.T) {
	SetJWTSecret(secretForTests)
	app := fiber.New()
	app.Get("/me", AuthMiddleware, func(c *fiber.Ctx) error {
		id, err := GetUserID(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id})
	})

	token, _ := IssueToken(7, "bo")
	cases := []struct {
		header string
		want   int
	}{
		{"", 401},
		{"Token " + token, 401},
		{"Bearer not-a-jwt", 401},
		{"Bearer " + token, 200},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("Authorization %q status=%d, want %d", tc.header, resp.StatusCode, tc.want)
		}
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request within window should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("other client should have its own bucket")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	rl.Allow("a")
	rl.Allow("b")
	if n := rl.Cleanup(time.Hour); n != 0 {
		t.Fatalf("removed=%d, want 0 for fresh buckets", n)
	}
	if n := rl.Cleanup(-time.Second); n != 2 {
		t.Fatalf("removed=%d, want 2", n)
	}
}

func TestFiberRateLimitMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(FiberRateLimitMiddleware(NewRateLimiter(1, time.Hour)))
	app.Get("/api/x", func(c *fiber.Ctx) error { return c.SendStatus(204) })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	codes := []int{}
	for _, path := range []string{"/api/x", "/api/x", "/health", "/health"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		codes = append(codes, resp.StatusCode)
	}
	want := []int{204, 429, 204, 204}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes=%v, want %v", codes, want)
		}
	}
}
