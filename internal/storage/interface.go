package storage

import (
	"context"
	"time"

	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/models"
)

// ErrNotFound is wrapped by every store when a row does not exist for the caller.
var ErrNotFound = apperrors.ErrNotFound

// Provider is implemented by the SQLite and PostgreSQL stores.
// Every user-owned read and write is filtered by user id.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error
	Ping(ctx context.Context) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	AddUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Sessions
	AddSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	// DeleteExpiredSessions removes sessions expiring at or before now and returns their ids.
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error)

	// Profiles
	// EnsureProfile inserts the profile unless one exists; it reports whether it inserted.
	EnsureProfile(ctx context.Context, profile models.Profile) (bool, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	UpdateProfile(ctx context.Context, profile models.Profile) error

	// Dos
	AddDo(ctx context.Context, do models.Do) error
	GetDo(ctx context.Context, userID, id string) (models.Do, error)
	ListDos(ctx context.Context, userID string) ([]models.Do, error)
	CountDos(ctx context.Context, userID string) (int, error)
	UpdateDo(ctx context.Context, do models.Do) error
	// DeleteDo removes the Do and, by cascade, its achievements.
	DeleteDo(ctx context.Context, userID, id string) error

	// Achievements
	// InsertAchievement is an atomic insert-if-absent on (user, do, day). It returns
	// the stored row and whether this call created it.
	InsertAchievement(ctx context.Context, a models.Achievement) (models.Achievement, bool, error)
	GetAchievement(ctx context.Context, key models.AchievementKey) (models.Achievement, error)
	ListAchievements(ctx context.Context, userID, startDay, endDay string) ([]models.Achievement, error)
	// UpsertAchievementMemo sets only the memo of (user, do, day), creating the row when absent.
	UpsertAchievementMemo(ctx context.Context, a models.Achievement) (models.Achievement, error)
	DeleteAchievement(ctx context.Context, key models.AchievementKey) (bool, error)
	DeleteAchievementByID(ctx context.Context, userID, id string) (bool, error)

	// Message sets
	ListMessageSets(ctx context.Context) ([]models.MessageSet, error)
	GetMessageSet(ctx context.Context, id string) (models.MessageSet, error)
	GetMessageSetByName(ctx context.Context, name string) (models.MessageSet, error)
	AddMessageSet(ctx context.Context, set models.MessageSet) error
	ListPraiseMessages(ctx context.Context, setID string) ([]models.PraiseMessage, error)
	AddPraiseMessage(ctx context.Context, msg models.PraiseMessage) error

	// Bulk retrieval for migration between stores
	Snapshot(ctx context.Context) (Snapshot, error)

	// Utils
	GetConfigPath() string
}

// Snapshot is every row of a store, in dependency order.
type Snapshot struct {
	Users          []models.User
	Profiles       []models.Profile
	MessageSets    []models.MessageSet
	PraiseMessages []models.PraiseMessage
	Dos            []models.Do
	Achievements   []models.Achievement
}

// WithTimeout bounds a store call. A non-positive d falls back to the default remote timeout.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
