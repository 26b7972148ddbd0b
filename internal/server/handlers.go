package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	"github.com/julianstephens/ididit/internal/instance"
	"github.com/julianstephens/ididit/internal/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, instance.Health{Status: "ok", Version: constants.Version, Sessions: s.registry.len()})
}

const timeLayout = time.RFC3339

// Auth

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt string      `json:"expires_at"`
}

func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	res, err := s.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abort(c, err, constants.OpSignUp)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: res.Token, User: res.User, ExpiresAt: res.Session.ExpiresAt.Format(timeLayout)})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	res, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abort(c, err, constants.OpSignIn)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: res.Token, User: res.User, ExpiresAt: res.Session.ExpiresAt.Format(timeLayout)})
}

func (s *Server) handleLogout(c *gin.Context) {
	token := c.GetString(tokenCtxKey)
	if err := s.auth.SignOut(c.Request.Context(), token); err != nil {
		abort(c, err, constants.OpSignOut)
		return
	}
	s.registry.drop(currentSession(c).ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.auth.User(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		abort(c, err, constants.OpLoadProfile)
		return
	}
	c.JSON(http.StatusOK, user)
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	if err := s.auth.ChangePassword(c.Request.Context(), currentSession(c).UserID, req.Password); err != nil {
		abort(c, err, constants.OpChangePassword)
		return
	}
	c.Status(http.StatusNoContent)
}

// Dos

type doRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleListDos(c *gin.Context) {
	list, err := s.dos.List(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		abort(c, err, constants.OpLoadDos)
		return
	}
	if list == nil {
		list = []models.Do{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateDo(c *gin.Context) {
	var req doRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	do, err := s.dos.Add(c.Request.Context(), currentSession(c).UserID, dos.Input{Title: req.Title, Description: req.Description})
	if err != nil {
		abort(c, err, constants.OpSaveDo)
		return
	}
	c.JSON(http.StatusCreated, do)
}

func (s *Server) handleUpdateDo(c *gin.Context) {
	var req doRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	userID := currentSession(c).UserID
	do, err := s.dos.Update(c.Request.Context(), userID, c.Param("id"), dos.Input{Title: req.Title, Description: req.Description})
	if err != nil {
		abort(c, err, constants.OpSaveDo)
		return
	}
	s.registry.invalidateUser(userID)
	c.JSON(http.StatusOK, do)
}

func (s *Server) handleDeleteDo(c *gin.Context) {
	userID := currentSession(c).UserID
	if err := s.dos.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		abort(c, err, constants.OpDeleteDo)
		return
	}
	s.registry.invalidateUser(userID)
	c.Status(http.StatusNoContent)
}

// Achievements

type toggleRequest struct {
	DoID              string `json:"do_id" binding:"required"`
	Date              string `json:"date"`
	CurrentlyAchieved bool   `json:"currently_achieved"`
	Confirm           *bool  `json:"confirm,omitempty"`
}

type toggleResponse struct {
	Outcome     string                      `json:"outcome"`
	Created     bool                        `json:"created"`
	Achievement *models.Achievement         `json:"achievement,omitempty"`
	Pending     *achievement.PendingRequest `json:"pending,omitempty"`
	Celebration *celebrationResponse        `json:"celebration,omitempty"`
	Refresh     uint64                      `json:"refresh"`
}

type celebrationResponse struct {
	achievement.Celebration
	ShareURL string `json:"share_url,omitempty"`
}

func newCelebrationResponse(c achievement.Celebration) celebrationResponse {
	res := celebrationResponse{Celebration: c}
	if c.IsOpen {
		res.ShareURL = c.ShareURL()
	}
	return res
}

func newToggleResponse(t *achievement.Tracker, r achievement.ToggleResult) toggleResponse {
	res := toggleResponse{Outcome: r.Outcome.String(), Created: r.Created, Refresh: t.RefreshCounter()}
	switch r.Outcome {
	case achievement.OutcomeCreated:
		a := r.Achievement
		res.Achievement = &a
		cel := newCelebrationResponse(t.Celebration())
		res.Celebration = &cel
	case achievement.OutcomeNeedsConfirmation:
		p := r.Pending
		res.Pending = &p
	}
	return res
}

func (s *Server) handleListAchievements(c *gin.Context) {
	tracker := s.registry.get(currentSession(c))
	month := c.Query("month")
	if month == "" {
		month = tracker.Today()[:len(constants.MonthFormat)]
	}
	rows, err := tracker.Month(c.Request.Context(), month)
	if err != nil {
		abort(c, err, constants.OpLoadAchievements)
		return
	}
	if rows == nil {
		rows = []models.Achievement{}
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "achievements": rows, "refresh": tracker.RefreshCounter()})
}

func (s *Server) handleToggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	tracker := s.registry.get(currentSession(c))
	res, err := tracker.Toggle(c.Request.Context(), achievement.ToggleRequest{
		DoID:              req.DoID,
		Date:              req.Date,
		CurrentlyAchieved: req.CurrentlyAchieved,
		Confirm:           req.Confirm,
	})
	if err != nil {
		abort(c, err, constants.OpToggleAchievement)
		return
	}
	c.JSON(http.StatusOK, newToggleResponse(tracker, res))
}

type memoRequest struct {
	DoID string `json:"do_id" binding:"required"`
	Date string `json:"date"`
	Memo string `json:"memo"`
}

func (s *Server) handleSaveMemo(c *gin.Context) {
	var req memoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	tracker := s.registry.get(currentSession(c))
	row, err := tracker.SaveMemo(c.Request.Context(), req.DoID, req.Date, req.Memo)
	if err != nil {
		abort(c, err, constants.OpSaveMemo)
		return
	}
	if row.ID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handlePending(c *gin.Context) {
	pending, ok := s.registry.get(currentSession(c)).Pending()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"pending": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

func (s *Server) handleConfirm(c *gin.Context) {
	tracker := s.registry.get(currentSession(c))
	res, err := tracker.Confirm(c.Request.Context())
	if err != nil {
		abort(c, err, constants.OpCreateAchievement)
		return
	}
	c.JSON(http.StatusOK, newToggleResponse(tracker, res))
}

func (s *Server) handleCancel(c *gin.Context) {
	s.registry.get(currentSession(c)).Cancel()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCelebration(c *gin.Context) {
	c.JSON(http.StatusOK, newCelebrationResponse(s.registry.get(currentSession(c)).Celebration()))
}

type closeCelebrationRequest struct {
	Memo string `json:"memo"`
}

func (s *Server) handleCloseCelebration(c *gin.Context) {
	var req closeCelebrationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
	}
	if err := s.registry.get(currentSession(c)).CloseCelebration(c.Request.Context(), req.Memo); err != nil {
		abort(c, err, constants.OpSaveMemo)
		return
	}
	c.Status(http.StatusNoContent)
}

// Profile

type profileRequest struct {
	Birthday     *string `json:"birthday,omitempty"`
	MessageSetID *string `json:"message_set,omitempty"`
	Email        *string `json:"email,omitempty"`
}

func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.profiles.Get(c.Request.Context(), currentSession(c).UserID)
	if err != nil {
		abort(c, err, constants.OpLoadProfile)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	userID := currentSession(c).UserID

	p, err := s.profiles.Get(ctx, userID)
	if req.Birthday != nil && err == nil {
		p, err = s.profiles.SetBirthday(ctx, userID, *req.Birthday)
	}
	if req.MessageSetID != nil && err == nil {
		p, err = s.profiles.SelectMessageSet(ctx, userID, *req.MessageSetID)
	}
	if req.Email != nil && err == nil {
		p, err = s.profiles.ChangeEmail(ctx, userID, *req.Email)
	}
	if err != nil {
		abort(c, err, constants.OpSaveProfile)
		return
	}
	c.JSON(http.StatusOK, p)
}

type tokenSignOut struct {
	s     *Server
	token string
}

func (t tokenSignOut) Clear(ctx context.Context) error {
	return t.s.auth.SignOut(ctx, t.token)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	userID := currentSession(c).UserID
	err := s.profiles.DeleteAccount(c.Request.Context(), userID, tokenSignOut{s: s, token: c.GetString(tokenCtxKey)})
	if err != nil {
		abort(c, err, constants.OpDeleteAccount)
		return
	}
	s.registry.dropUser(userID)
	c.Status(http.StatusNoContent)
}

// Message sets

type setRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleListSets(c *gin.Context) {
	sets, err := s.praise.Sets(c.Request.Context())
	if err != nil {
		abort(c, err, constants.OpLoadMessageSets)
		return
	}
	c.JSON(http.StatusOK, sets)
}

func (s *Server) handleGetSet(c *gin.Context) {
	set, msgs, err := s.praise.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err, constants.OpLoadMessageSets)
		return
	}
	if msgs == nil {
		msgs = []models.PraiseMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"set": set, "messages": msgs})
}

func (s *Server) handleCreateSet(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	set, err := s.praise.AddSet(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		abort(c, err, constants.OpLoadMessageSets)
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (s *Server) handleAddMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	msg, err := s.praise.AddMessage(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		abort(c, err, constants.OpLoadMessageSets)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
