package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/logger"
)

// Kind is the coarse category a failure falls into at the presentation boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindSession
	KindConflict
	KindReference
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindConflict:
		return "conflict"
	case KindReference:
		return "reference"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionExpired is returned when there is no valid signed-in session.
	ErrSessionExpired = stderrors.New("session expired")
	// ErrValidation marks input rejected before reaching the store.
	ErrValidation = stderrors.New("validation failed")
	// ErrNotFound marks a missing row.
	ErrNotFound = stderrors.New("not found")
)

// postgrestJWTExpired is the code hosted REST gateways return for expired JWTs.
const postgrestJWTExpired = "PGRST301"

// ValidationError carries a message that can be shown to the user as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Classify maps an error onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.Kind
	}

	if stderrors.Is(err, ErrSessionExpired) || stderrors.Is(err, jwt.ErrTokenExpired) {
		return KindSession
	}
	if stderrors.Is(err, ErrValidation) {
		return KindValidation
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgerrcode.UniqueViolation:
			return KindConflict
		case pgerrcode.ForeignKeyViolation:
			return KindReference
		}
		return KindUnknown
	}

	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return KindConflict
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return KindReference
		}
		return KindUnknown
	}

	if stderrors.Is(err, ErrNotFound) || stderrors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}

	msg := err.Error()
	switch {
	case isSessionMessage(msg):
		return KindSession
	case strings.Contains(msg, "SQLSTATE "+pgerrcode.UniqueViolation), strings.Contains(msg, "UNIQUE constraint failed"):
		return KindConflict
	case strings.Contains(msg, "SQLSTATE "+pgerrcode.ForeignKeyViolation), strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return KindReference
	}
	return KindUnknown
}

// sessionPhrases match auth failures that arrive as plain text. Bare "session"
// is left out since store errors on the sessions table mention it too.
var sessionPhrases = []string{"JWT", "session expired", "invalid session", "session not found", postgrestJWTExpired}

func isSessionMessage(msg string) bool {
	for _, p := range sessionPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsSession reports whether err means the session is gone.
func IsSession(err error) bool { return err != nil && Classify(err) == KindSession }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool { return err != nil && Classify(err) == KindConflict }

// IsNotFound reports whether err is a missing row.
func IsNotFound(err error) bool { return err != nil && Classify(err) == KindNotFound }

// IsValidation reports whether err is a rejected input.
func IsValidation(err error) bool { return err != nil && Classify(err) == KindValidation }

// UserError is a classified failure with a localized message for display.
type UserError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// Handle classifies err and attaches the message shown to the user for op.
// It returns nil for a nil error and passes an existing *UserError through.
func Handle(err error, op string) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}

	kind := Classify(err)
	out := &UserError{Kind: kind, Op: op, Err: err}
	switch kind {
	case KindSession:
		out.Message = constants.MsgSessionExpired
	case KindConflict:
		out.Message = constants.MsgDuplicate
	case KindReference:
		out.Message = constants.MsgReferenceMissing
	case KindValidation:
		var ve *ValidationError
		if stderrors.As(err, &ve) {
			out.Message = ve.Message
		} else {
			out.Message = err.Error()
		}
	case KindNotFound:
		out.Message = constants.MsgNotFound
	default:
		out.Message = fmt.Sprintf(constants.MsgOperationFailed, op)
		logger.Error("operation failed", "op", op, "error", err)
	}
	return out
}
