// services/progression.go - XP, level and title arithmetic
package services

import (
	"math"

	"questlock/models"
)

// Progression is the outcome of awarding XP for one completion.
type Progression struct {
	PreviousXP    int  `json:"previous_xp"`
	NewXP         int  `json:"new_xp"`
	PreviousLevel int  `json:"previous_level"`
	NewLevel      int  `json:"new_level"`
	LeveledUp     bool `json:"leveled_up"`
	NextLevelXP   int  `json:"next_level_xp"`
}

// NextLevelXP returns the cumulative XP needed to leave level.
func NextLevelXP(level int) int {
	return int(math.Floor(1000 * float64(level) * 1.5))
}

// XPPercentage is progress toward next, capped at 100.
func XPPercentage(currentXP, next int) int {
	if next <= 0 {
		return 0
	}
	pct := int(math.Floor(float64(currentXP) / float64(next) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ApplyReward adds reward to the user's XP. XP is cumulative and a single
// completion can raise the level by at most one.
func ApplyReward(user *models.User, reward int) Progression {
	p := Progression{
		PreviousXP:    user.XP,
		NewXP:         user.XP + reward,
		PreviousLevel: user.Level,
		NewLevel:      user.Level,
	}
	if p.NewXP >= NextLevelXP(user.Level) {
		p.NewLevel = user.Level + 1
		p.LeveledUp = true
	}
	p.NextLevelXP = NextLevelXP(p.NewLevel)
	return p
}

var titleLadder = []struct {
	minLevel int
	title    string
}{
	{20, "Legendary Questmaster"},
	{10, "Seasoned Vanquisher"},
	{5, "Rising Hunter"},
	{1, models.DefaultTitle},
}

// TitleForLevel maps a level to its cosmetic title.
func TitleForLevel(level int) string {
	for _, rung := range titleLadder {
		if level >= rung.minLevel {
			return rung.title
		}
	}
	return models.DefaultTitle
}
