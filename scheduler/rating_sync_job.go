package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/model"
	"movie-mate/remote"
	"movie-mate/resolver"
)

// errUpstreamDown ends a sync pass as soon as the upstream stops answering
var errUpstreamDown = errors.New("upstream unavailable")

// RatingQueue is the local state the sync job reads and drains
type RatingQueue interface {
	GetPendingRatings() (map[int]int, error)
	ClearPendingRating(movieID, rating int) error
	GetSession() (model.Session, error)
}

// Rater submits a rating upstream
type Rater interface {
	Rate(ctx context.Context, token string, movieID, rating int) error
}

// RatingSyncJob replays ratings recorded while the upstream was unreachable
// for the signed-in user. A replayed or rejected rating leaves the queue;
// the local rating itself is kept.
type RatingSyncJob struct {
	queue    RatingQueue
	rater    Rater
	resolver *resolver.Resolver
}

func NewRatingSyncJob(queue RatingQueue, rater Rater, r *resolver.Resolver) *RatingSyncJob {
	return &RatingSyncJob{queue: queue, rater: rater, resolver: r}
}

func (j *RatingSyncJob) Name() string {
	return "rating_sync"
}

// SyncResult counts the outcome of one pass
type SyncResult struct {
	Synced   int
	Rejected int
	Pending  int
}

func (j *RatingSyncJob) Run(ctx context.Context) error {
	result, err := j.Sync(ctx)
	if err != nil {
		return err
	}
	logging.Info().
		Int("synced", result.Synced).
		Int("rejected", result.Rejected).
		Int("pending", result.Pending).
		Msg("Rating sync finished")
	return nil
}

// Sync performs one pass. It does nothing while offline or signed out.
func (j *RatingSyncJob) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if j.rater == nil || !j.resolver.Online() {
		return result, nil
	}

	session, err := j.queue.GetSession()
	if err != nil {
		return result, fmt.Errorf("failed to read session: %w", err)
	}
	if session.Token == "" {
		logging.Debug().Msg("No session, skipping rating sync")
		return result, nil
	}

	pending, err := j.queue.GetPendingRatings()
	if err != nil {
		return result, fmt.Errorf("failed to read pending ratings: %w", err)
	}

	ids := make([]int, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Pending = len(ids) - i
			return result, err
		}

		rating := pending[id]
		err := j.replay(ctx, session.Token, id, rating)

		switch {
		case err == nil:
			result.Synced++
			metrics.RatingsSynced.Inc()
		case errors.Is(err, errUpstreamDown):
			result.Pending = len(ids) - i
			logging.Warn().Int("pending", result.Pending).Msg("Upstream unavailable, rating sync deferred")
			return result, nil
		case isAuthFailure(err):
			// every later rating would be refused too
			result.Pending = len(ids) - i
			logging.Warn().Err(err).Msg("Upstream refused the session token, rating sync deferred")
			return result, nil
		default:
			result.Rejected++
			logging.Warn().Err(err).Int("movie_id", id).Msg("Upstream rejected rating, dropping it from the queue")
		}

		if err := j.queue.ClearPendingRating(id, rating); err != nil {
			return result, fmt.Errorf("failed to clear pending rating %d: %w", id, err)
		}
	}
	return result, nil
}

// replay sends one rating. The upstream's own rejection is returned as is
// whatever the resolver falls back on; unavailability is errUpstreamDown.
func (j *RatingSyncJob) replay(ctx context.Context, token string, movieID, rating int) error {
	var remoteErr error
	_, err := resolver.Resolve(ctx, j.resolver, "sync_rating",
		func(ctx context.Context) (struct{}, error) {
			remoteErr = j.rater.Rate(ctx, token, movieID, rating)
			return struct{}{}, remoteErr
		},
		func(context.Context) (struct{}, error) {
			if remoteErr != nil && !resolver.IsUnavailable(remoteErr) {
				return struct{}{}, remoteErr
			}
			return struct{}{}, errUpstreamDown
		},
	)
	return err
}

func isAuthFailure(err error) bool {
	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}
