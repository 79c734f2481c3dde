package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abduss/mediadrive/internal/session"
	"github.com/jackc/pgx/v5/pgconn"
)

const deleteUserProcedure = "delete_user"

// RESTProcedures calls procedures through the PostgREST endpoint next to the auth API.
type RESTProcedures struct {
	gotrue *GoTrue
}

// NewRESTProcedures reuses the GoTrue client's base URL and credentials.
func NewRESTProcedures(g *GoTrue) *RESTProcedures {
	return &RESTProcedures{gotrue: g}
}

func (p *RESTProcedures) DeleteUser(ctx context.Context, sess *session.Session) error {
	err := p.gotrue.do(ctx, http.MethodPost, "/rest/v1/rpc/"+deleteUserProcedure, sess.AccessToken, struct{}{}, nil)
	var pe *ProviderError
	if errors.As(err, &pe) && (pe.Status == http.StatusNotFound || pe.Code == "PGRST202") {
		return fmt.Errorf("%w: %s", ErrProcedureMissing, pe.Error())
	}
	return err
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PgxProcedures invokes procedures over a direct PostgreSQL connection.
type PgxProcedures struct {
	db execer
}

// NewPgxProcedures wraps a pgx pool or connection.
func NewPgxProcedures(db execer) *PgxProcedures {
	return &PgxProcedures{db: db}
}

func (p *PgxProcedures) DeleteUser(ctx context.Context, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if _, err := p.db.Exec(ctx, `SELECT public.delete_user($1);`, sess.UserID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42883" {
			return fmt.Errorf("%w: %s", ErrProcedureMissing, pgErr.Message)
		}
		return fmt.Errorf("call delete_user: %w", err)
	}
	return nil
}
