// handlers/auth.go
package handlers

import (
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"questlock/database"
	"questlock/middleware"
	"questlock/models"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type UserInfo struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Level       int       `json:"level"`
	XP          int       `json:"xp"`
	XPass       int       `json:"xpass"`
	Streak      int       `json:"streak"`
	Title       string    `json:"title"`
	IsLocked    bool      `json:"is_locked"`
	CreatedAt   time.Time `json:"created_at"`
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Level:       u.Level,
		XP:          u.XP,
		XPass:       u.XPass,
		Streak:      u.Streak,
		Title:       u.Title,
		IsLocked:    u.IsLocked,
		CreatedAt:   u.CreatedAt,
	}
}

const minPasswordLength = 8

// Register creates an account and returns a session token
// POST /api/auth/register
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return utils.JSONError(c, 400, CodeValidation, "Username, email and password required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return utils.JSONError(c, 400, CodeValidation, "Password must be at least 8 characters")
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	ctx := c.UserContext()
	if _, err := store.GetUserByUsername(ctx, req.Username); err == nil {
		return utils.JSONError(c, 409, CodeConflict, "Username already taken")
	} else if !errors.Is(err, database.ErrNotFound) {
		return respondError(c, err)
	}
	if _, err := store.GetUserByEmail(ctx, req.Email); err == nil {
		return utils.JSONError(c, 409, CodeConflict, "Email already registered")
	} else if !errors.Is(err, database.ErrNotFound) {
		return respondError(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, err)
	}

	user := &models.User{
		Username:      req.Username,
		Email:         req.Email,
		Password:      string(hash),
		DisplayName:   req.DisplayName,
		Level:         1,
		Title:         models.DefaultTitle,
		LastLoginDate: time.Now().UTC(),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return respondError(c, err)
	}

	token, err := middleware.IssueToken(user.ID, user.Username)
	if err != nil {
		return respondError(c, err)
	}

	log.Printf("👤 Registered user %s (%d)", user.Username, user.ID)
	return utils.SuccessStatus(c, fiber.StatusCreated, fiber.Map{
		"token": token,
		"user":  userInfo(user),
	})
}

// Login authenticates a user. Locked users may log in; the response carries
// is_locked so the client can route them to their punishment.
// POST /api/auth/login
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return utils.JSONError(c, 400, CodeValidation, "Username and password required")
	}

	ctx := c.UserContext()
	user, err := store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, database.ErrNotFound) {
		return utils.JSONError(c, 401, "", "Invalid credentials")
	} else if err != nil {
		return respondError(c, err)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return utils.JSONError(c, 401, "", "Invalid credentials")
	}

	// Update last login
	if updated, err := store.UpdateUser(ctx, user.ID, database.Fields{"last_login_date": time.Now().UTC()}); err == nil {
		user = updated
	} else {
		log.Printf("⚠️ Failed to record login for user %d: %v", user.ID, err)
	}

	token, err := middleware.IssueToken(user.ID, user.Username)
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, fiber.Map{
		"token":     token,
		"user":      userInfo(user),
		"is_locked": user.IsLocked,
	})
}

// Logout is stateless; the client drops its token.
// POST /api/auth/logout
func Logout(c *fiber.Ctx) error {
	return utils.Success(c, fiber.Map{"message": "Logged out"})
}
