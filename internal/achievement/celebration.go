package achievement

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
)

// Celebration is the "You DID it!" modal shown after an achievement is recorded.
type Celebration struct {
	IsOpen       bool   `json:"is_open"`
	DoTitle      string `json:"do_title"`
	Date         string `json:"date"` // display format, e.g. 2024年05月01日
	DoID         string `json:"do_id"`
	AchievedDate string `json:"achieved_date"` // YYYY-MM-DD format
	Message      string `json:"message"`
}

// ShareText is the post body offered for sharing.
func (c Celebration) ShareText() string {
	return fmt.Sprintf("「%s」を%sに達成しました！\n%s\n\n%s", c.DoTitle, c.Date, c.Message, constants.ShareHashtags)
}

// ShareURL is the X (Twitter) intent link for ShareText.
func (c Celebration) ShareURL() string {
	return constants.ShareIntentURL + "?text=" + url.QueryEscape(c.ShareText())
}

// PraiseSource picks a praise message for the user.
type PraiseSource interface {
	Pick(ctx context.Context, userID string) (string, error)
}

// FetchPraise never fails: a failed or empty pick yields the fixed fallback.
func FetchPraise(ctx context.Context, src PraiseSource, userID string) string {
	if src == nil {
		return constants.FallbackPraise
	}
	msg, err := src.Pick(ctx, userID)
	if err != nil {
		logger.Warn("failed to fetch praise message", "user_id", userID, "error", err)
		return constants.FallbackPraise
	}
	if strings.TrimSpace(msg) == "" {
		return constants.FallbackPraise
	}
	return msg
}

// NormalizeMemo trims the memo. It returns nil for an empty memo and a
// validation error when the memo is longer than MemoMaxLength characters.
func NormalizeMemo(memo string) (*string, error) {
	memo = strings.TrimSpace(memo)
	if memo == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(memo) > constants.MemoMaxLength {
		return nil, apperrors.Validation("メモは%d文字以内で入力してください。", constants.MemoMaxLength)
	}
	return &memo, nil
}
