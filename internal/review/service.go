package review

import (
	"context"
	"sort"
	"time"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/grading"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

// Service answers questions outside an exam: it grades, logs and reschedules in one call.
type Service struct {
	sched  *Scheduler
	grader grading.Grader
}

func NewService(sched *Scheduler, grader grading.Grader) *Service {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	return &Service{sched: sched, grader: grader}
}

func (s *Service) Scheduler() *Scheduler { return s.sched }

type AnswerInput struct {
	Response model.Value `json:"resposta"`
	// Performance is the self-reported recall. Empty derives it from correctness and confidence.
	Performance    model.Difficulty `json:"desempenho,omitempty"`
	Confidence     model.Confidence `json:"confianca,omitempty"`
	ElapsedSeconds int              `json:"tempoSegundos,omitempty"`
}

type Outcome struct {
	Correct bool            `json:"correta"`
	Answer  model.AnswerLog `json:"resposta"`
	Review  model.Review    `json:"revisao"`
}

// Derive maps a graded answer to a performance tier when the user gave none.
func Derive(correct bool, c model.Confidence) model.Difficulty {
	switch {
	case !correct:
		return model.DifficultyHard
	case c == model.ConfidenceCertain:
		return model.DifficultyEasy
	default:
		return model.DifficultyMedium
	}
}

func (s *Service) Answer(ctx context.Context, questionID string, in AnswerInput) (Outcome, error) {
	if in.Response.IsZero() {
		return Outcome{}, apperr.Invalid("resposta", "required")
	}
	if in.Confidence != "" && !in.Confidence.Valid() {
		return Outcome{}, apperr.Invalid("confianca", "unknown confidence "+string(in.Confidence))
	}
	if in.Performance != "" && !in.Performance.Valid() {
		return Outcome{}, apperr.Invalid("desempenho", "unknown performance "+string(in.Performance))
	}
	q, err := store.GetAs[model.Question](ctx, s.sched.store, store.Questions, questionID)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.grader.Grade(ctx, grading.FromQuestion(q), in.Response)
	if err != nil {
		return Outcome{}, apperr.Invalid("resposta", err.Error())
	}

	log, err := store.CreateAs(ctx, s.sched.store, store.Answers, model.AnswerLog{
		QuestionID:     q.ID,
		Correct:        res.Correct,
		Response:       in.Response,
		Confidence:     in.Confidence,
		ElapsedSeconds: max(in.ElapsedSeconds, 0),
		AnsweredAt:     s.sched.now().UTC(),
	})
	if err != nil {
		return Outcome{}, err
	}

	perf := in.Performance
	if perf == "" {
		perf = Derive(res.Correct, in.Confidence)
	}
	rev, err := s.sched.Schedule(ctx, q.ID, perf)
	if err != nil {
		s.dropLog(ctx, log.ID, err)
		return Outcome{}, err
	}
	return Outcome{Correct: res.Correct, Answer: log, Review: rev}, nil
}

// dropLog removes an answer log whose schedule update failed, so a failed answer leaves no trace.
func (s *Service) dropLog(ctx context.Context, id string, cause error) {
	if err := s.sched.store.Delete(ctx, store.Answers, id); err != nil {
		s.sched.log.Error("review: compensation failed, answer log left behind", "answer_id", id, "cause", cause, "error", err)
		return
	}
	s.sched.log.Warn("review: schedule failed, answer log removed", "answer_id", id, "cause", cause)
}

type DueItem struct {
	Question model.Question `json:"questao"`
	Review   model.Review   `json:"revisao"`
}

// DueQuestions joins the due records with their active questions, most overdue first.
func (s *Service) DueQuestions(ctx context.Context, now time.Time) ([]DueItem, error) {
	due, err := s.sched.Due(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return []DueItem{}, nil
	}
	qs, err := store.ListAs[model.Question](ctx, s.sched.store, store.Questions, store.Filter{store.Eq("isActive", true)})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	out := make([]DueItem, 0, len(due))
	for _, r := range due {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		out = append(out, DueItem{Question: q, Review: r})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Review.NextDue.Before(out[j].Review.NextDue) })
	return out, nil
}
