package exam

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/grading"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

// Invalidator is told when an exam completes so derived aggregates get rebuilt.
type Invalidator interface {
	Invalidate(ctx context.Context, at time.Time) error
}

// Session drives an exam through Draft -> InProgress -> Completed.
type Session struct {
	store       store.Store
	grader      grading.Grader
	log         *logger.Logger
	now         func() time.Time
	invalidator Invalidator
}

type SessionOption func(*Session)

func WithSessionClock(now func() time.Time) SessionOption { return func(s *Session) { s.now = now } }

func WithInvalidator(inv Invalidator) SessionOption {
	return func(s *Session) { s.invalidator = inv }
}

func NewSession(st store.Store, grader grading.Grader, log *logger.Logger, opts ...SessionOption) *Session {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	s := &Session{store: st, grader: grader, log: logger.OrNop(log), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Get(ctx context.Context, examID string) (model.Exam, error) {
	return store.GetAs[model.Exam](ctx, s.store, store.Exams, examID)
}

// List returns exams, optionally restricted to one status.
func (s *Session) List(ctx context.Context, status model.ExamStatus) ([]model.Exam, error) {
	var f store.Filter
	if status != "" {
		f = store.Filter{store.Eq("status", string(status))}
	}
	return store.ListAs[model.Exam](ctx, s.store, store.Exams, f)
}

// ActiveSlot is the first slot without an answer, found by scanning from the start.
// It returns -1 when every slot is answered.
func ActiveSlot(e model.Exam) int {
	for i, q := range e.Questions {
		if !q.Answered() {
			return i
		}
	}
	return -1
}

// Current returns the slot to present next, or nil when nothing is left to answer.
func (s *Session) Current(ctx context.Context, examID string) (*model.ExamQuestion, error) {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if e.Status == model.StatusCompleted {
		return nil, nil
	}
	i := ActiveSlot(e)
	if i < 0 {
		return nil, nil
	}
	slot := e.Questions[i]
	return &slot, nil
}

type AnswerInput struct {
	// SlotID picks the slot; empty means the active slot.
	SlotID         string           `json:"slotId,omitempty"`
	Response       model.Value      `json:"resposta"`
	Confidence     model.Confidence `json:"confianca,omitempty"`
	ElapsedSeconds int              `json:"tempoSegundos,omitempty"`
	// PresentedAt, when set, wins over ElapsedSeconds.
	PresentedAt *time.Time `json:"apresentadaEm,omitempty"`
}

// Answer records the one answer a slot accepts. The first answer moves a Draft exam to InProgress.
func (s *Session) Answer(ctx context.Context, examID string, in AnswerInput) (model.Exam, model.ExamQuestion, error) {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return model.Exam{}, model.ExamQuestion{}, err
	}
	if e.Status == model.StatusCompleted {
		return model.Exam{}, model.ExamQuestion{}, &apperr.StateError{Entity: "simulado", ID: examID, Reason: "already completed"}
	}
	if in.Response.IsZero() {
		return model.Exam{}, model.ExamQuestion{}, apperr.Invalid("resposta", "required")
	}
	if in.Confidence != "" && !in.Confidence.Valid() {
		return model.Exam{}, model.ExamQuestion{}, apperr.Invalid("confianca", "unknown confidence "+string(in.Confidence))
	}

	idx := ActiveSlot(e)
	if in.SlotID != "" {
		idx = -1
		for i, q := range e.Questions {
			if q.ID == in.SlotID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return model.Exam{}, model.ExamQuestion{}, apperr.NotFound("simulado_questao", in.SlotID)
		}
	}
	if idx < 0 || e.Questions[idx].Answered() {
		id := in.SlotID
		if id == "" {
			id = examID
		}
		return model.Exam{}, model.ExamQuestion{}, &apperr.StateError{Entity: "simulado_questao", ID: id, Reason: "already answered"}
	}

	slot := e.Questions[idx]
	q, err := store.GetAs[model.Question](ctx, s.store, store.Questions, slot.QuestionID)
	if err != nil {
		return model.Exam{}, model.ExamQuestion{}, err
	}
	res, err := s.grader.Grade(ctx, grading.FromQuestion(q), in.Response)
	if err != nil {
		return model.Exam{}, model.ExamQuestion{}, apperr.Invalid("resposta", err.Error())
	}

	now := s.now().UTC()
	elapsed := in.ElapsedSeconds
	if in.PresentedAt != nil {
		elapsed = int(now.Sub(*in.PresentedAt).Seconds())
	}
	if elapsed < 0 {
		elapsed = 0
	}
	correct := res.Correct
	slot.Response = in.Response
	slot.Correct = &correct
	slot.Confidence = in.Confidence
	slot.ElapsedSeconds = elapsed
	slot.AnsweredAt = &now
	e.Questions[idx] = slot

	patch := map[string]any{"questoes": e.Questions}
	if e.Status == model.StatusDraft {
		patch["status"] = model.StatusInProgress
		patch["iniciadoEm"] = now
		s.log.Info("exam: started", "exam_id", examID)
	}
	updated, err := store.UpdateAs[model.Exam](ctx, s.store, store.Exams, examID, patch)
	if err != nil {
		return model.Exam{}, model.ExamQuestion{}, err
	}
	s.log.Debug("exam: answered", "exam_id", examID, "slot", slot.Order, "correct", correct)
	return updated, slot, nil
}

type Result struct {
	ExamID           string     `json:"simuladoId"`
	Status           string     `json:"status"`
	Total            int        `json:"total"`
	Answered         int        `json:"respondidas"`
	Correct          int        `json:"acertos"`
	Accuracy         float64    `json:"aproveitamento"`
	TotalSeconds     int        `json:"tempoTotal"`
	ResponsesCreated int        `json:"respostasCriadas"`
	CompletedAt      *time.Time `json:"finalizadoEm,omitempty"`
}

// Summarize computes progress figures for an exam in any state.
func Summarize(e model.Exam) Result {
	r := Result{ExamID: e.ID, Status: string(e.Status), Total: len(e.Questions), CompletedAt: e.CompletedAt}
	for _, q := range e.Questions {
		if !q.Answered() {
			continue
		}
		r.Answered++
		r.TotalSeconds += q.ElapsedSeconds
		if q.Correct != nil && *q.Correct {
			r.Correct++
		}
	}
	if r.Answered > 0 {
		r.Accuracy = float64(r.Correct) * 100 / float64(r.Answered)
	}
	return r
}

// Progress reports how far an exam has gone without changing it.
func (s *Session) Progress(ctx context.Context, examID string) (Result, error) {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return Result{}, err
	}
	return Summarize(e), nil
}

// Finish logs one Resposta per answered slot and completes the exam. Calling it again
// on a completed exam changes nothing.
func (s *Session) Finish(ctx context.Context, examID string) (Result, error) {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return Result{}, err
	}
	if e.Status == model.StatusCompleted {
		return Summarize(e), nil
	}

	// Resposta ids are slot ids, so a retried finish skips what an earlier attempt already wrote.
	existing, err := store.ListAs[model.AnswerLog](ctx, s.store, store.Answers, store.Filter{store.Eq("simuladoId", examID)})
	if err != nil {
		return Result{}, err
	}
	logged := make(map[string]bool, len(existing))
	for _, a := range existing {
		logged[a.ID] = true
	}
	var logs []model.AnswerLog
	for _, q := range e.Questions {
		if !q.Answered() || logged[q.ID] {
			continue
		}
		id := examID
		logs = append(logs, model.AnswerLog{
			ID:             q.ID,
			QuestionID:     q.QuestionID,
			ExamID:         &id,
			Correct:        q.Correct != nil && *q.Correct,
			Response:       q.Response,
			Confidence:     q.Confidence,
			ElapsedSeconds: q.ElapsedSeconds,
			AnsweredAt:     *q.AnsweredAt,
		})
	}
	if len(logs) > 0 {
		if _, err := store.BulkCreateAs(ctx, s.store, store.Answers, logs); err != nil {
			return Result{}, err
		}
	}

	now := s.now().UTC()
	done, err := store.UpdateAs[model.Exam](ctx, s.store, store.Exams, examID, map[string]any{
		"status":       model.StatusCompleted,
		"finalizadoEm": now,
	})
	if err != nil {
		return Result{}, err
	}
	s.log.Info("exam: completed", "exam_id", examID, "responses", len(logs))

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, now); err != nil {
			s.log.Warn("exam: aggregate refresh failed", "exam_id", examID, "error", err)
		}
	}
	res := Summarize(done)
	res.ResponsesCreated = len(logs)
	return res, nil
}

// IsStateError reports whether err is a rejected state-machine move.
func IsStateError(err error) bool {
	var se *apperr.StateError
	return errors.As(err, &se)
}
