package server

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
)

const (
	sessionCtxKey = "session"
	tokenCtxKey   = "token"
	loggerCtxKey  = "logger"
)

// logRequests writes one line per request through the application logger.
func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := logger.With("method", c.Request.Method, "path", c.FullPath())
		c.Set(loggerCtxKey, l)
		c.Next()
		if l != nil {
			l.Info("request", "status", c.Writer.Status(), "duration", time.Since(start))
		}
	}
}

// requestLogger returns the request-scoped logger, falling back to the global one.
func requestLogger(c *gin.Context) *log.Logger {
	if v, ok := c.Get(loggerCtxKey); ok {
		if l, ok := v.(*log.Logger); ok && l != nil {
			return l
		}
	}
	if logger.Logger != nil {
		return logger.Logger
	}
	return log.New(io.Discard)
}

// requireSession verifies the bearer token and stores its session in the context.
func (s *Server) requireSession(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		abort(c, apperrors.ErrSessionExpired, constants.OpSignIn)
		return
	}

	session, err := s.auth.Verify(c.Request.Context(), token)
	if err != nil {
		abort(c, err, constants.OpSignIn)
		return
	}
	c.Set(sessionCtxKey, session)
	c.Set(tokenCtxKey, token)
	c.Next()
}

// requireSecret guards local-only endpoints with the lockfile secret.
func (s *Server) requireSecret(c *gin.Context) {
	if s.secret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(constants.ServerSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Error: http.StatusText(http.StatusUnauthorized)})
		return
	}
	c.Next()
}

func currentSession(c *gin.Context) models.Session {
	v, _ := c.Get(sessionCtxKey)
	session, _ := v.(models.Session)
	return session
}
