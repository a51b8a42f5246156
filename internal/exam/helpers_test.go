package exam_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/store/local"
)

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := local.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "study.db")+"?mode=rwc", local.WithClock(ticker()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSubject(t *testing.T, s store.Store, name string) model.Subject {
	t.Helper()
	sub, err := store.CreateAs(context.Background(), s, store.Subjects, model.Subject{Name: name})
	require.NoError(t, err)
	return sub
}

func seedQuestions(t *testing.T, s store.Store, subjectID, topicID string, d model.Difficulty, n int) []model.Question {
	t.Helper()
	out := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		q := model.Question{
			SubjectID:     subjectID,
			TopicID:       topicID,
			Type:          model.TypeTrueFalse,
			Difficulty:    d,
			Statement:     fmt.Sprintf("%s statement %d", d, i),
			CorrectAnswer: model.BoolValue(true),
			Tags:          []string{},
			Version:       1,
			IsActive:      true,
		}
		q.Rehash()
		created, err := store.CreateAs(context.Background(), s, store.Questions, q)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

// ticker advances one second per call so storage order follows insertion order.
func ticker() func() time.Time {
	var mu sync.Mutex
	now := t0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// identity leaves the pool in storage order.
func identity(int, func(i, j int)) {}
