package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"

	"github.com/julianstephens/ididit/internal/constants"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "session sentinel", err: fmt.Errorf("load: %w", ErrSessionExpired), want: KindSession},
		{name: "jwt expired", err: fmt.Errorf("verify: %w", jwt.ErrTokenExpired), want: KindSession},
		{name: "JWT in message", err: errors.New("JWT expired"), want: KindSession},
		{name: "session in message", err: errors.New("invalid session id"), want: KindSession},
		{name: "postgrest code", err: errors.New("code PGRST301 returned"), want: KindSession},
		{name: "pq unique violation", err: &pq.Error{Code: "23505", Message: "duplicate key value"}, want: KindConflict},
		{name: "pq foreign key", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), want: KindReference},
		{name: "pq other code", err: &pq.Error{Code: "42P01", Message: "relation does not exist"}, want: KindUnknown},
		{name: "sqlite unique message", err: errors.New("constraint failed: UNIQUE constraint failed: achievements.user_id (2067)"), want: KindConflict},
		{name: "sqlite fk message", err: errors.New("FOREIGN KEY constraint failed"), want: KindReference},
		{name: "sqlstate in message", err: errors.New("ERROR: duplicate (SQLSTATE 23505)"), want: KindConflict},
		{name: "validation", err: Validation("title is required"), want: KindValidation},
		{name: "no rows", err: fmt.Errorf("get do: %w", sql.ErrNoRows), want: KindNotFound},
		{name: "not found sentinel", err: ErrNotFound, want: KindNotFound},
		{name: "plain", err: errors.New("connection refused"), want: KindUnknown},
		{name: "store error on sessions table", err: fmt.Errorf("failed to insert session: %w", errors.New("database is locked (5)")), want: KindUnknown},
		{name: "pq error on sessions table", err: fmt.Errorf("failed to insert session: %w", &pq.Error{Code: "53300", Message: "too many connections"}), want: KindUnknown},
		{name: "missing session row", err: fmt.Errorf("get session: %w", sql.ErrNoRows), want: KindNotFound},
		{name: "user error keeps kind", err: &UserError{Kind: KindConflict, Message: constants.MsgDuplicate}, want: KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		op      string
		want    string
		wantKnd Kind
	}{
		{name: "session", err: ErrSessionExpired, op: constants.OpSaveMemo, want: constants.MsgSessionExpired, wantKnd: KindSession},
		{name: "duplicate", err: &pq.Error{Code: "23505"}, op: constants.OpSaveDo, want: constants.MsgDuplicate, wantKnd: KindConflict},
		{name: "reference", err: &pq.Error{Code: "23503"}, op: constants.OpCreateAchievement, want: constants.MsgReferenceMissing, wantKnd: KindReference},
		{name: "validation", err: Validation("メモは200文字以内で入力してください。"), op: constants.OpSaveMemo, want: "メモは200文字以内で入力してください。", wantKnd: KindValidation},
		{name: "unknown", err: errors.New("boom"), op: constants.OpSaveMemo, want: "メモの保存に失敗しました。", wantKnd: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Handle(tt.err, tt.op)
			if got.Message != tt.want {
				t.Errorf("Handle().Message = %q, want %q", got.Message, tt.want)
			}
			if got.Kind != tt.wantKnd {
				t.Errorf("Handle().Kind = %v, want %v", got.Kind, tt.wantKnd)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("Handle() does not wrap the original error")
			}
		})
	}

	if Handle(nil, "x") != nil {
		t.Error("Handle(nil) should return nil")
	}

	first := Handle(ErrSessionExpired, "a")
	if again := Handle(fmt.Errorf("wrapped: %w", first), "b"); again != first {
		t.Error("Handle() should pass an existing UserError through")
	}
}

func TestPredicates(t *testing.T) {
	if !IsSession(ErrSessionExpired) {
		t.Error("IsSession(ErrSessionExpired) = false")
	}
	if IsSession(nil) || IsConflict(nil) || IsNotFound(nil) || IsValidation(nil) {
		t.Error("predicates must be false for nil")
	}
	if !IsConflict(&pq.Error{Code: "23505"}) {
		t.Error("IsConflict(23505) = false")
	}
	if !IsNotFound(sql.ErrNoRows) {
		t.Error("IsNotFound(sql.ErrNoRows) = false")
	}
	if !IsValidation(Validation("x")) {
		t.Error("IsValidation() = false")
	}
}
