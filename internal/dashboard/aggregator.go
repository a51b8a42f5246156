// Package dashboard derives study statistics from the record collections. Every call
// recomputes from scratch.
package dashboard

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type Aggregator struct {
	store       store.Store
	log         *logger.Logger
	now         func() time.Time
	trendDays   int
	recentLimit int
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

// WithTrendDays sets how many calendar days, today included, the accuracy trend covers.
func WithTrendDays(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.trendDays = n
		}
	}
}

// WithRecentLimit caps the list of recently completed exams.
func WithRecentLimit(n int) Option {
	return func(a *Aggregator) {
		if n >= 0 {
			a.recentLimit = n
		}
	}
}

func New(st store.Store, log *logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{store: st, log: logger.OrNop(log), now: time.Now, trendDays: 7, recentLimit: 5}
	for _, o := range opts {
		o(a)
	}
	return a
}

type Tally struct {
	Key      string  `json:"chave"`
	Label    string  `json:"rotulo"`
	Answered int     `json:"respondidas"`
	Correct  int     `json:"acertos"`
	Accuracy float64 `json:"aproveitamento"`
}

func (t *Tally) add(correct bool) {
	t.Answered++
	if correct {
		t.Correct++
	}
}

func (t *Tally) finish() { t.Accuracy = percent(t.Correct, t.Answered) }

type DayPoint struct {
	Date     string  `json:"data"`
	Answered int     `json:"respondidas"`
	Correct  int     `json:"acertos"`
	Accuracy float64 `json:"aproveitamento"`
}

type ExamSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"nome"`
	Total       int        `json:"total"`
	Answered    int        `json:"respondidas"`
	Correct     int        `json:"acertos"`
	CompletedAt *time.Time `json:"finalizadoEm,omitempty"`
}

type Summary struct {
	TotalAnswered   int           `json:"totalRespondidas"`
	TotalCorrect    int           `json:"totalAcertos"`
	Accuracy        float64       `json:"aproveitamento"`
	AvgSeconds      float64       `json:"tempoMedio"`
	ActiveQuestions int           `json:"questoesAtivas"`
	FlaggedCount    int           `json:"questoesMarcadas"`
	Subjects        int           `json:"disciplinas"`
	DueToday        int           `json:"revisoesHoje"`
	Trend           []DayPoint    `json:"tendencia"`
	BySubject       []Tally       `json:"porDisciplina"`
	ByDifficulty    []Tally       `json:"porDificuldade"`
	ByType          []Tally       `json:"porTipo"`
	Resume          *model.Exam   `json:"simuladoEmAndamento,omitempty"`
	RecentExams     []ExamSummary `json:"simuladosRecentes"`
	GeneratedAt     time.Time     `json:"geradoEm"`
}

type snapshot struct {
	answers   []model.AnswerLog
	exams     []model.Exam
	questions []model.Question
	reviews   []model.Review
	subjects  []model.Subject
}

// load reads the five collections concurrently.
func (a *Aggregator) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.answers, err = store.ListAs[model.AnswerLog](gctx, a.store, store.Answers, nil)
		return err
	})
	g.Go(func() (err error) {
		snap.exams, err = store.ListAs[model.Exam](gctx, a.store, store.Exams, nil)
		return err
	})
	g.Go(func() (err error) {
		snap.questions, err = store.ListAs[model.Question](gctx, a.store, store.Questions, nil)
		return err
	})
	g.Go(func() (err error) {
		snap.reviews, err = store.ListAs[model.Review](gctx, a.store, store.Reviews, nil)
		return err
	})
	g.Go(func() (err error) {
		snap.subjects, err = store.ListAs[model.Subject](gctx, a.store, store.Subjects, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := a.now().UTC()
	return summarize(snap, now, a.trendDays, a.recentLimit), nil
}

func summarize(snap snapshot, now time.Time, trendDays, recentLimit int) Summary {
	out := Summary{Subjects: len(snap.subjects), GeneratedAt: now}

	questions := make(map[string]model.Question, len(snap.questions))
	for _, q := range snap.questions {
		questions[q.ID] = q
		if q.IsActive {
			out.ActiveQuestions++
		}
		if q.FlaggedForReview {
			out.FlaggedCount++
		}
	}
	subjectNames := make(map[string]string, len(snap.subjects))
	for _, s := range snap.subjects {
		subjectNames[s.ID] = s.Name
	}

	today := model.DateKey(now)
	trend := make([]DayPoint, trendDays)
	trendIdx := make(map[string]int, trendDays)
	for i := 0; i < trendDays; i++ {
		d := model.DateKey(now.AddDate(0, 0, i-trendDays+1))
		trend[i] = DayPoint{Date: d}
		trendIdx[d] = i
	}

	bySubject := map[string]*Tally{}
	byDifficulty := map[string]*Tally{}
	byType := map[string]*Tally{}
	bump := func(m map[string]*Tally, key, label string, correct bool) {
		t, ok := m[key]
		if !ok {
			t = &Tally{Key: key, Label: label}
			m[key] = t
		}
		t.add(correct)
	}

	totalSeconds := 0
	for _, ans := range snap.answers {
		out.TotalAnswered++
		if ans.Correct {
			out.TotalCorrect++
		}
		totalSeconds += ans.ElapsedSeconds
		if i, ok := trendIdx[model.DateKey(ans.AnsweredAt)]; ok {
			trend[i].Answered++
			if ans.Correct {
				trend[i].Correct++
			}
		}
		q, ok := questions[ans.QuestionID]
		if !ok {
			continue
		}
		bump(bySubject, q.SubjectID, subjectNames[q.SubjectID], ans.Correct)
		bump(byDifficulty, string(q.Difficulty), string(q.Difficulty), ans.Correct)
		bump(byType, string(q.Type), string(q.Type), ans.Correct)
	}
	out.Accuracy = percent(out.TotalCorrect, out.TotalAnswered)
	if out.TotalAnswered > 0 {
		out.AvgSeconds = float64(totalSeconds) / float64(out.TotalAnswered)
	}
	for i := range trend {
		trend[i].Accuracy = percent(trend[i].Correct, trend[i].Answered)
	}
	out.Trend = trend
	out.BySubject = flatten(bySubject)
	out.ByDifficulty = flatten(byDifficulty)
	out.ByType = flatten(byType)

	for _, r := range snap.reviews {
		if model.DateKey(r.NextDue) <= today {
			out.DueToday++
		}
	}

	var completed []model.Exam
	for i := range snap.exams {
		e := snap.exams[i]
		switch e.Status {
		case model.StatusInProgress:
			if out.Resume == nil || lastTouched(e).After(lastTouched(*out.Resume)) {
				out.Resume = &e
			}
		case model.StatusCompleted:
			completed = append(completed, e)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool { return lastTouched(completed[i]).After(lastTouched(completed[j])) })
	if len(completed) > recentLimit {
		completed = completed[:recentLimit]
	}
	out.RecentExams = make([]ExamSummary, 0, len(completed))
	for _, e := range completed {
		s := ExamSummary{ID: e.ID, Name: e.Name, Total: len(e.Questions), CompletedAt: e.CompletedAt}
		for _, q := range e.Questions {
			if q.Answered() {
				s.Answered++
				if q.Correct != nil && *q.Correct {
					s.Correct++
				}
			}
		}
		out.RecentExams = append(out.RecentExams, s)
	}
	return out
}

func sortDays(days []model.DailyStats) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
}

func lastTouched(e model.Exam) time.Time {
	switch {
	case e.CompletedAt != nil:
		return *e.CompletedAt
	case e.StartedAt != nil && e.StartedAt.After(e.UpdatedAt):
		return *e.StartedAt
	default:
		return e.UpdatedAt
	}
}

func flatten(m map[string]*Tally) []Tally {
	out := make([]Tally, 0, len(m))
	for _, t := range m {
		t.finish()
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
