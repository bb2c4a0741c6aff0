package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/locker"
	"github.com/kapwanet/exchange/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// Services defined in this package:
// - PostService: post creation, editing and the post state machine
// - MatchService: expressions of interest and the accept/withdraw/close cascades
// - ThreadService: participant-scoped messaging and unread tracking
// - ModerationService: reports and the privileged force-set write path
// - Directory: membership and role lookups used for authorization

// Deps are the collaborators shared by every service
type Deps struct {
	Store   repositories.Store
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
	// Locker serializes cascades on one post across processes
	Locker  locker.Locker
	LockTTL time.Duration
	// Now is the clock; tests replace it
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = locker.Noop{}
	}
	if d.LockTTL <= 0 {
		d.LockTTL = 10 * time.Second
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// now is truncated to the precision the database keeps
func (d Deps) now() time.Time {
	return d.Now().UTC().Truncate(time.Microsecond)
}

// cascade runs fn as one transaction while holding the post lock. Domain
// errors returned by fn cross the boundary unchanged; anything else is a
// store failure and is reported as a consistency error after rollback.
func (d Deps) cascade(ctx context.Context, op string, postID uuid.UUID, fn repositories.TxFn) error {
	started := time.Now()
	log := d.Logger.With().Str("operation", op).Str("postID", postID.String()).Logger()

	unlock, err := d.Locker.Lock(ctx, "post:"+postID.String(), d.LockTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire post lock")
		d.Metrics.Cascade(op, started, true)
		return apperrors.NewConsistencyError(op, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to release post lock")
		}
	}()

	err = d.Store.WithinTx(ctx, fn)
	switch {
	case err == nil:
		d.Metrics.Cascade(op, started, false)
		return nil
	case apperrors.IsDomain(err):
		d.Metrics.Cascade(op, started, false)
		return err
	default:
		log.Error().Err(err).Msg("Cascade rolled back")
		d.Metrics.Cascade(op, started, true)
		return apperrors.NewConsistencyError(op, err)
	}
}

// tx runs a unit of work without the post lock, with the same error mapping
func (d Deps) tx(ctx context.Context, op string, fn repositories.TxFn) error {
	err := d.Store.WithinTx(ctx, fn)
	if err == nil || apperrors.IsDomain(err) {
		return err
	}
	d.Logger.Error().Err(err).Str("operation", op).Msg("Transaction rolled back")
	return apperrors.NewConsistencyError(op, err)
}

// displayName resolves a member's name for system messages
func displayName(ctx context.Context, repos repositories.Repositories, orgID, userID uuid.UUID) string {
	m, err := repos.Memberships().Get(ctx, orgID, userID)
	if err != nil || m.DisplayName == "" {
		return "A member"
	}
	return m.DisplayName
}
