package models

import "time"

// Achievement records that a Do was done on a given calendar day.
// (UserID, DoID, AchievedDate) is unique.
type Achievement struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DoID         string    `json:"do_id"`
	AchievedDate string    `json:"achieved_date"` // YYYY-MM-DD format
	Memo         *string   `json:"memo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MemoText returns the memo or an empty string.
func (a Achievement) MemoText() string {
	if a.Memo == nil {
		return ""
	}
	return *a.Memo
}

// Key returns the natural key of the achievement.
func (a Achievement) Key() AchievementKey {
	return AchievementKey{UserID: a.UserID, DoID: a.DoID, Day: a.AchievedDate}
}

// AchievementKey identifies an achievement without its row id.
type AchievementKey struct {
	UserID string
	DoID   string
	Day    string // YYYY-MM-DD format
}

// CountByDay groups achievements by their achieved date.
func CountByDay(achievements []Achievement) map[string]int {
	counts := make(map[string]int, len(achievements))
	for _, a := range achievements {
		counts[a.AchievedDate]++
	}
	return counts
}
