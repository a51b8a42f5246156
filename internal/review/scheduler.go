// Package review schedules questions for spaced repetition with a four-bucket leaky scheme.
package review

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

// MaxBucket is the highest bucket a record can reach.
const MaxBucket = 3

// intervals holds the days until the next review, by performance tier and bucket.
var intervals = map[model.Difficulty][MaxBucket + 1]int{
	model.DifficultyEasy:   {1, 4, 10, 30},
	model.DifficultyMedium: {1, 2, 5, 15},
	model.DifficultyHard:   {0, 1, 2, 4},
}

// Interval returns the days until the next review for a tier landing in bucket.
func Interval(perf model.Difficulty, bucket int) int {
	if bucket < 0 {
		bucket = 0
	}
	if bucket > MaxBucket {
		bucket = MaxBucket
	}
	return intervals[perf][bucket]
}

// NextBucket applies one answer to a bucket. had is false for a question never reviewed before.
func NextBucket(had bool, bucket int, perf model.Difficulty) int {
	switch {
	case perf == model.DifficultyHard:
		return 0
	case !had:
		return 1
	default:
		return min(bucket+1, MaxBucket)
	}
}

type Scheduler struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func NewScheduler(st store.Store, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{store: st, log: logger.OrNop(log), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the review record of a question.
func (s *Scheduler) Get(ctx context.Context, questionID string) (model.Review, error) {
	return store.GetAs[model.Review](ctx, s.store, store.Reviews, questionID)
}

// Schedule records a review answer for a question and returns its updated record.
// The interval always comes from the arriving tier's table at the new bucket.
func (s *Scheduler) Schedule(ctx context.Context, questionID string, perf model.Difficulty) (model.Review, error) {
	if questionID == "" {
		return model.Review{}, apperr.Invalid("questaoId", "required")
	}
	if !perf.Valid() {
		return model.Review{}, apperr.Invalid("desempenho", "unknown performance "+string(perf))
	}

	now := s.now().UTC()
	cur, err := s.Get(ctx, questionID)
	had := err == nil
	if err != nil && !apperr.IsNotFound(err) {
		return model.Review{}, err
	}

	bucket := NextBucket(had, cur.Bucket, perf)
	due := now.AddDate(0, 0, Interval(perf, bucket))

	if !had {
		rev, err := store.CreateAs(ctx, s.store, store.Reviews, model.Review{
			ID:              questionID,
			QuestionID:      questionID,
			Bucket:          bucket,
			NextDue:         due,
			LastPerformance: perf,
			ReviewCount:     1,
		})
		if err != nil {
			return model.Review{}, err
		}
		s.log.Debug("review: created", "question_id", questionID, "bucket", bucket, "due", model.DateKey(due))
		return rev, nil
	}

	rev, err := store.UpdateAs[model.Review](ctx, s.store, store.Reviews, questionID, map[string]any{
		"caixa":            bucket,
		"proximaRevisao":   due,
		"ultimoDesempenho": perf,
		"totalRevisoes":    cur.ReviewCount + 1,
	})
	if err != nil {
		return model.Review{}, err
	}
	s.log.Debug("review: advanced", "question_id", questionID, "from", cur.Bucket, "to", bucket, "due", model.DateKey(due))
	return rev, nil
}

// Due lists the records whose next review falls on or before now's calendar day (UTC).
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]model.Review, error) {
	return store.ListAs[model.Review](ctx, s.store, store.Reviews, store.Filter{store.DueBy("proximaRevisao", now)})
}
