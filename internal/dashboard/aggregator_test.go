package dashboard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/store/local"
)

var now = time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := local.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "study.db")+"?mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func create[T any](t *testing.T, s store.Store, coll string, v T) T {
	t.Helper()
	out, err := store.CreateAs(context.Background(), s, coll, v)
	require.NoError(t, err)
	return out
}

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, s store.Store) (model.Subject, model.Exam) {
	sub := create(t, s, store.Subjects, model.Subject{Name: "Direito Penal"})
	easy := create(t, s, store.Questions, model.Question{ID: "q-easy", SubjectID: sub.ID, TopicID: "t", Type: model.TypeTrueFalse, Difficulty: model.DifficultyEasy, Statement: "a", CorrectAnswer: model.BoolValue(true), IsActive: true, Tags: []string{}})
	hard := create(t, s, store.Questions, model.Question{ID: "q-hard", SubjectID: sub.ID, TopicID: "t", Type: model.TypeFlashcard, Difficulty: model.DifficultyHard, Statement: "b", CorrectAnswer: model.StringValue("x"), IsActive: true, FlaggedForReview: true, Tags: []string{}})
	create(t, s, store.Questions, model.Question{ID: "q-off", SubjectID: sub.ID, TopicID: "t", Type: model.TypeFlashcard, Difficulty: model.DifficultyHard, Statement: "c", CorrectAnswer: model.StringValue("y"), Tags: []string{}})

	examID := "e1"
	answers := []model.AnswerLog{
		{QuestionID: easy.ID, ExamID: &examID, Correct: true, Response: model.BoolValue(true), ElapsedSeconds: 10, AnsweredAt: now.Add(-time.Hour)},
		{QuestionID: hard.ID, ExamID: &examID, Correct: false, Response: model.StringValue("z"), ElapsedSeconds: 30, AnsweredAt: now.Add(-time.Hour)},
		{QuestionID: easy.ID, Correct: true, Response: model.BoolValue(true), ElapsedSeconds: 20, AnsweredAt: now.AddDate(0, 0, -2)},
		{QuestionID: easy.ID, Correct: false, Response: model.BoolValue(false), ElapsedSeconds: 20, AnsweredAt: now.AddDate(0, 0, -30)},
	}
	_, err := store.BulkCreateAs(context.Background(), s, store.Answers, answers)
	require.NoError(t, err)

	create(t, s, store.Reviews, model.Review{ID: easy.ID, QuestionID: easy.ID, Bucket: 1, NextDue: now.Add(5 * time.Hour)})
	create(t, s, store.Reviews, model.Review{ID: hard.ID, QuestionID: hard.ID, Bucket: 2, NextDue: now.AddDate(0, 0, 3)})

	create(t, s, store.Exams, model.Exam{ID: examID, Name: "done", Status: model.StatusCompleted, CompletedAt: ptr(now.Add(-time.Hour)),
		Questions: []model.ExamQuestion{
			{ID: "s1", QuestionID: easy.ID, Order: 1, Correct: ptr(true), AnsweredAt: ptr(now.Add(-time.Hour))},
			{ID: "s2", QuestionID: hard.ID, Order: 2, Correct: ptr(false), AnsweredAt: ptr(now.Add(-time.Hour))},
		}})
	running := create(t, s, store.Exams, model.Exam{ID: "e2", Name: "running", Status: model.StatusInProgress, StartedAt: ptr(now.Add(-10 * time.Minute))})
	create(t, s, store.Exams, model.Exam{ID: "e3", Name: "draft", Status: model.StatusDraft})
	return sub, running
}

func TestSummary(t *testing.T) {
	s := newStore(t)
	sub, running := seed(t, s)
	a := New(s, nil, WithClock(func() time.Time { return now }), WithTrendDays(3))

	sum, err := a.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalAnswered)
	assert.Equal(t, 2, sum.TotalCorrect)
	assert.InDelta(t, 50.0, sum.Accuracy, 0.001)
	assert.InDelta(t, 20.0, sum.AvgSeconds, 0.001)
	assert.Equal(t, 2, sum.ActiveQuestions)
	assert.Equal(t, 1, sum.FlaggedCount)
	assert.Equal(t, 1, sum.Subjects)
	assert.Equal(t, 1, sum.DueToday)

	require.Len(t, sum.Trend, 3)
	assert.Equal(t, "2026-08-18", sum.Trend[0].Date)
	assert.Equal(t, 1, sum.Trend[0].Answered)
	assert.Equal(t, 0, sum.Trend[1].Answered)
	assert.Equal(t, "2026-08-20", sum.Trend[2].Date)
	assert.Equal(t, 2, sum.Trend[2].Answered)
	assert.InDelta(t, 50.0, sum.Trend[2].Accuracy, 0.001)

	require.Len(t, sum.BySubject, 1)
	assert.Equal(t, sub.ID, sum.BySubject[0].Key)
	assert.Equal(t, "Direito Penal", sum.BySubject[0].Label)
	assert.Equal(t, 4, sum.BySubject[0].Answered)

	require.Len(t, sum.ByDifficulty, 2)
	assert.Equal(t, "dificil", sum.ByDifficulty[0].Key)
	assert.Equal(t, 0, sum.ByDifficulty[0].Correct)
	assert.Equal(t, "facil", sum.ByDifficulty[1].Key)
	assert.InDelta(t, 66.666, sum.ByDifficulty[1].Accuracy, 0.01)
	assert.Len(t, sum.ByType, 2)

	require.NotNil(t, sum.Resume)
	assert.Equal(t, running.ID, sum.Resume.ID)
	require.Len(t, sum.RecentExams, 1)
	assert.Equal(t, 2, sum.RecentExams[0].Answered)
	assert.Equal(t, 1, sum.RecentExams[0].Correct)
}

func TestSummaryEmpty(t *testing.T) {
	a := New(newStore(t), nil, WithClock(func() time.Time { return now }))
	sum, err := a.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.TotalAnswered)
	assert.Zero(t, sum.Accuracy)
	assert.Nil(t, sum.Resume)
	assert.Len(t, sum.Trend, 7)
	assert.Empty(t, sum.RecentExams)
}

func TestRefreshDayUpserts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seed(t, s)
	a := New(s, nil)

	day, err := a.RefreshDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20", day.ID)
	assert.Equal(t, 2, day.Answered)
	assert.Equal(t, 1, day.Correct)
	assert.Equal(t, 40, day.TotalSeconds)
	assert.Equal(t, 1, day.ExamsCompleted)

	_, err = store.CreateAs(ctx, s, store.Answers, model.AnswerLog{QuestionID: "q-easy", Correct: true, Response: model.BoolValue(true), ElapsedSeconds: 5, AnsweredAt: now})
	require.NoError(t, err)
	require.NoError(t, a.Invalidate(ctx, now))

	days, err := a.Days(ctx)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 3, days[0].Answered)
	assert.Equal(t, 45, days[0].TotalSeconds)
}
