package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/ididit/internal/achievement"
	apperrors "github.com/julianstephens/ididit/internal/errors"
)

var errInvalidRequestBody = errors.New("リクエストの形式が正しくありません。")

type apiError struct {
	Error          string `json:"error"`
	SessionExpired bool   `json:"session_expired,omitempty"`
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindSession:
		return http.StatusUnauthorized
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindReference:
		return http.StatusUnprocessableEntity
	case apperrors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// abort classifies err, answers with its user-facing message and stops the chain.
func abort(c *gin.Context, err error, op string) {
	if errors.Is(err, achievement.ErrNothingPending) {
		c.AbortWithStatusJSON(http.StatusConflict, apiError{Error: err.Error()})
		return
	}
	ue := apperrors.Handle(err, op)
	status := statusFor(ue.Kind)
	if status == http.StatusInternalServerError {
		requestLogger(c).Error("request failed", "op", op, "error", err)
	} else {
		requestLogger(c).Debug("request rejected", "op", op, "kind", ue.Kind, "error", err)
	}
	c.AbortWithStatusJSON(status, apiError{Error: ue.Message, SessionExpired: ue.Kind == apperrors.KindSession})
}

func abortBadRequest(c *gin.Context, err error) {
	requestLogger(c).Debug("failed to bind request", "error", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Error: errInvalidRequestBody.Error()})
}
