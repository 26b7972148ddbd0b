package constants

import "time"

// SessionState represents the current state of the TUI application
type SessionState int

const (
	AppName            = "ididit"
	DefaultKeyringUser = "database-connection"
	SessionKeyringUser = "session-token"
	DefaultConfigDir   = "~/.config/ididit"
	DefaultDBPath      = "~/.config/ididit/ididit.db"
	DefaultConfigFile  = "config.yaml"
	Version            = "v0.3.0"

	// DateFormat is the storage date format (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat is the month query format (YYYY-MM)
	MonthFormat = "2006-01"

	// DisplayDateFormat renders a date as e.g. 2024年05月01日
	DisplayDateFormat = "2006年01月02日"

	// DisplayMonthFormat renders a month as e.g. 2024年05月
	DisplayMonthFormat = "2006年01月"

	// Domain limits
	MemoMaxLength           = 200
	MaxDosPerUser           = 3
	DoTitleMaxLength        = 100
	DoDescriptionMaxLength  = 500
	ConfirmationProbability = 0.3
	MinPasswordLength       = 6
	MaxStarsPerDay          = 3

	// Praise
	DefaultMessageSetName = "デフォルト"
	FallbackPraise        = "素晴らしい！今日もやり遂げましたね！"
	ShareHashtags         = "#Ididit #習慣化 #1日3DO"
	ShareIntentURL        = "https://twitter.com/intent/tweet"

	// Remote calls
	DefaultRemoteTimeout = 30 * time.Second

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "ididit-"
	BackupFileSuffix = ".db"

	// Server constants
	DefaultServerHost    = "127.0.0.1"
	DefaultServerPort    = 8484
	DefaultSessionTTL    = 7 * 24 * time.Hour
	DefaultPurgeInterval = time.Hour
	ServerLockfileName   = "ididit-server.lock"
	ServerSecretHeader   = "X-Ididit-Secret"
	ServerExecutableName = "ididit"

	// Confirmation modes
	ConfirmationModeRandom = "random"
	ConfirmationModeAlways = "always"
	ConfirmationModeNever  = "never"
)

// Session States
const (
	StateCalendar SessionState = iota
	StateDos
	StateSettings
	StateSignIn
	StateAddDo
	StateEditDo
	StateEditMemo
	StateEditSettings
	StateConfirmAchievement
	StateCelebration
	StateConfirmDelete
)
