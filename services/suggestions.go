package services

import "questlock/models"

// Suggestion is a catalogue quest a user can accept as-is.
type Suggestion struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  models.Difficulty `json:"difficulty"`
	Category    string            `json:"category"`
	ProofType   string            `json:"proof_type"`
	XPReward    int               `json:"xp_reward"`
}

var suggestionCatalogue = []Suggestion{
	{"Complete a Workout", "Exercise for at least 30 minutes today", models.DifficultyMedium, "fitness", models.ProofTypePhoto, 150},
	{"Read a Book", "Read at least 30 pages of a non-fiction book", models.DifficultyEasy, "personal", models.ProofTypeText, 50},
	{"Learn Something New", "Spend 1 hour learning a new skill online", models.DifficultyMedium, "education", models.ProofTypeText, 150},
	{"Meal Preparation", "Prepare healthy meals for the next 3 days", models.DifficultyHard, "health", models.ProofTypePhoto, 300},
	{"Mindfulness Meditation", "Complete a 15-minute meditation session", models.DifficultyEasy, "mental", models.ProofTypeText, 50},
}

// Suggestions returns a copy of the static catalogue.
func (s *QuestService) Suggestions() []Suggestion {
	out := make([]Suggestion, len(suggestionCatalogue))
	copy(out, suggestionCatalogue)
	return out
}
