// Package postgres implements repositories.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/db"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/dberrors"
)

// psql builds statements with $n placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store is the PostgreSQL repositories.Store
type Store struct {
	db *db.PostgresDB
	repos
}

var _ repositories.Store = (*Store)(nil)

// NewStore binds the repositories to the pool
func NewStore(database *db.PostgresDB) *Store {
	return &Store{db: database, repos: repos{q: database.Pool}}
}

// WithinTx runs fn in one transaction; serialization failures are retried by
// the db layer, which re-runs fn from the start.
func (s *Store) WithinTx(ctx context.Context, fn repositories.TxFn) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &repos{q: tx})
	})
}

// Close releases the pool
func (s *Store) Close() {
	s.db.Close()
}

type repos struct {
	q db.Querier
}

func (r *repos) Posts() repositories.PostRepository             { return &postRepo{q: r.q} }
func (r *repos) Matches() repositories.MatchRepository          { return &matchRepo{q: r.q} }
func (r *repos) Threads() repositories.ThreadRepository         { return &threadRepo{q: r.q} }
func (r *repos) Messages() repositories.MessageRepository       { return &messageRepo{q: r.q} }
func (r *repos) Memberships() repositories.MembershipRepository { return &membershipRepo{q: r.q} }
func (r *repos) Moderation() repositories.ModerationRepository  { return &moderationRepo{q: r.q} }

// notFound translates pgx.ErrNoRows into the application error
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewResourceNotFoundError(what + " not found")
	}
	return err
}

// exec runs a built statement and reports whether any row was affected
func exec(ctx context.Context, q db.Querier, b squirrel.Sqlizer) (bool, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return false, err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func duplicateInterest(err error) error {
	if dberrors.IsDuplicateConstraintError(err, "matches_active_pair_idx") {
		return apperrors.NewCustomError(apperrors.ErrDuplicateInterest, apperrors.ErrDuplicateInterest.Error())
	}
	return err
}
