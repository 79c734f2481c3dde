package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/abduss/mediadrive/internal/session"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type fakeExecer struct {
	err  error
	sql  string
	args []any
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("SELECT 1"), f.err
}

func TestPgxProceduresCallsDeleteUser(t *testing.T) {
	db := &fakeExecer{}

	err := NewPgxProcedures(db).DeleteUser(context.Background(), &session.Session{UserID: "u1"})
	assert.NoError(t, err)
	assert.Contains(t, db.sql, "public.delete_user($1)")
	assert.Equal(t, []any{"u1"}, db.args)
}

func TestPgxProceduresUndefinedFunction(t *testing.T) {
	db := &fakeExecer{err: &pgconn.PgError{Code: "42883", Message: "function public.delete_user(text) does not exist"}}

	err := NewPgxProcedures(db).DeleteUser(context.Background(), &session.Session{UserID: "u1"})
	assert.ErrorIs(t, err, ErrProcedureMissing)
}

func TestPgxProceduresOtherError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection reset")}

	err := NewPgxProcedures(db).DeleteUser(context.Background(), &session.Session{UserID: "u1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProcedureMissing)
}
