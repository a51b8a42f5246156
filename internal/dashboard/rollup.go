package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

// RefreshDay rebuilds the stats_dia record of day's UTC calendar date.
func (a *Aggregator) RefreshDay(ctx context.Context, day time.Time) (model.DailyStats, error) {
	key := model.DateKey(day)

	var (
		answers []model.AnswerLog
		exams   []model.Exam
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		answers, err = store.ListAs[model.AnswerLog](gctx, a.store, store.Answers, nil)
		return err
	})
	g.Go(func() (err error) {
		exams, err = store.ListAs[model.Exam](gctx, a.store, store.Exams, store.Filter{store.Eq("status", string(model.StatusCompleted))})
		return err
	})
	if err := g.Wait(); err != nil {
		return model.DailyStats{}, err
	}

	st := model.DailyStats{ID: key, Date: key}
	for _, ans := range answers {
		if model.DateKey(ans.AnsweredAt) != key {
			continue
		}
		st.Answered++
		st.TotalSeconds += ans.ElapsedSeconds
		if ans.Correct {
			st.Correct++
		}
	}
	for _, e := range exams {
		if e.CompletedAt != nil && model.DateKey(*e.CompletedAt) == key {
			st.ExamsCompleted++
		}
	}

	_, err := a.store.Get(ctx, store.DailyStats, key)
	switch {
	case err == nil:
		st, err = store.UpdateAs[model.DailyStats](ctx, a.store, store.DailyStats, key, map[string]any{
			"respondidas":          st.Answered,
			"acertos":              st.Correct,
			"tempoTotal":           st.TotalSeconds,
			"simuladosFinalizados": st.ExamsCompleted,
		})
	case apperr.IsNotFound(err):
		st, err = store.CreateAs(ctx, a.store, store.DailyStats, st)
	}
	if err != nil {
		return model.DailyStats{}, err
	}
	a.log.Debug("dashboard: day refreshed", "date", key, "answered", st.Answered)
	return st, nil
}

// Invalidate refreshes the rollup of the day at falls on. Exams call it when they complete.
func (a *Aggregator) Invalidate(ctx context.Context, at time.Time) error {
	_, err := a.RefreshDay(ctx, at)
	return err
}

// Days returns the stored rollups, oldest first.
func (a *Aggregator) Days(ctx context.Context) ([]model.DailyStats, error) {
	days, err := store.ListAs[model.DailyStats](ctx, a.store, store.DailyStats, nil)
	if err != nil {
		return nil, err
	}
	sortDays(days)
	return days, nil
}
