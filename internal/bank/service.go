// Package bank manages the question bank: subjects, topics and questions, including
// content versioning and the cascades a hard delete needs.
package bank

import (
	"context"
	"strings"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type Service struct {
	store store.Store
	log   *logger.Logger
}

func NewService(s store.Store, log *logger.Logger) *Service {
	return &Service{store: s, log: logger.OrNop(log)}
}

// ---- subjects & topics ----

func (s *Service) CreateSubject(ctx context.Context, sub model.Subject) (model.Subject, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return model.Subject{}, apperr.Invalid("nome", "required")
	}
	return store.CreateAs(ctx, s.store, store.Subjects, sub)
}

func (s *Service) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	return store.ListAs[model.Subject](ctx, s.store, store.Subjects, nil)
}

func (s *Service) CreateTopic(ctx context.Context, t model.Topic) (model.Topic, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return model.Topic{}, apperr.Invalid("nome", "required")
	}
	if _, err := s.store.Get(ctx, store.Subjects, t.SubjectID); err != nil {
		return model.Topic{}, err
	}
	if t.ParentID != "" {
		parent, err := store.GetAs[model.Topic](ctx, s.store, store.Topics, t.ParentID)
		if err != nil {
			return model.Topic{}, err
		}
		if parent.SubjectID != t.SubjectID {
			return model.Topic{}, apperr.Invalid("topicoPaiId", "parent topic belongs to another subject")
		}
		if parent.ParentID != "" {
			return model.Topic{}, apperr.Invalid("topicoPaiId", "sub-topics cannot be nested further")
		}
	}
	return store.CreateAs(ctx, s.store, store.Topics, t)
}

func (s *Service) ListTopics(ctx context.Context, subjectID string) ([]model.Topic, error) {
	var f store.Filter
	if subjectID != "" {
		f = store.Filter{store.Eq("disciplinaId", subjectID)}
	}
	return store.ListAs[model.Topic](ctx, s.store, store.Topics, f)
}

// DeleteSubject removes a subject with its topics and their questions.
func (s *Service) DeleteSubject(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, store.Subjects, id); err != nil {
		return err
	}
	topics, err := s.ListTopics(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deleteQuestionsWhere(ctx, store.Filter{store.Eq("disciplinaId", id)}); err != nil {
		return err
	}
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	if err := s.store.BulkDelete(ctx, store.Topics, ids); err != nil {
		return err
	}
	s.log.Info("bank: deleted subject", "id", id, "topics", len(ids))
	return s.store.Delete(ctx, store.Subjects, id)
}

// DeleteTopic removes a topic, its sub-topics and the questions filed under any of them.
func (s *Service) DeleteTopic(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, store.Topics, id); err != nil {
		return err
	}
	children, err := store.ListAs[model.Topic](ctx, s.store, store.Topics, store.Filter{store.Eq("topicoPaiId", id)})
	if err != nil {
		return err
	}
	ids := []string{id}
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	for _, tid := range ids {
		if err := s.deleteQuestionsWhere(ctx, store.Filter{store.Eq("topicoId", tid)}); err != nil {
			return err
		}
	}
	return s.store.BulkDelete(ctx, store.Topics, ids)
}

// ---- questions ----

type QuestionFilter struct {
	SubjectID  string
	TopicID    string
	ActiveOnly bool
	Flagged    *bool
}

func (f QuestionFilter) build() store.Filter {
	var out store.Filter
	if f.SubjectID != "" {
		out = append(out, store.Eq("disciplinaId", f.SubjectID))
	}
	if f.TopicID != "" {
		out = append(out, store.Eq("topicoId", f.TopicID))
	}
	if f.ActiveOnly {
		out = append(out, store.Eq("isActive", true))
	}
	if f.Flagged != nil {
		out = append(out, store.Eq("marcadaRevisao", *f.Flagged))
	}
	return out
}

func (s *Service) ListQuestions(ctx context.Context, f QuestionFilter) ([]model.Question, error) {
	return store.ListAs[model.Question](ctx, s.store, store.Questions, f.build())
}

func (s *Service) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	return store.GetAs[model.Question](ctx, s.store, store.Questions, id)
}

// PrepareQuestion fills defaults and validates a question about to be created.
func PrepareQuestion(q *model.Question) error {
	q.Statement = strings.TrimSpace(q.Statement)
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	if err := q.Validate(); err != nil {
		return err
	}
	q.Version = 1
	q.IsActive = true
	q.Rehash()
	return nil
}

func (s *Service) CreateQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	if err := PrepareQuestion(&q); err != nil {
		return model.Question{}, err
	}
	if _, err := s.store.Get(ctx, store.Topics, q.TopicID); err != nil {
		return model.Question{}, err
	}
	return store.CreateAs(ctx, s.store, store.Questions, q)
}

// FindDuplicate returns the id of a question with the same content hash, or "".
func (s *Service) FindDuplicate(ctx context.Context, hash string) (string, error) {
	found, err := store.ListAs[model.Question](ctx, s.store, store.Questions, store.Filter{store.Eq("hashConteudo", hash)})
	if err != nil || len(found) == 0 {
		return "", err
	}
	return found[0].ID, nil
}

// QuestionPatch carries the editable fields; nil means unchanged.
type QuestionPatch struct {
	Statement     *string             `json:"enunciado,omitempty"`
	Alternatives  *[]string           `json:"alternativas,omitempty"`
	CorrectAnswer model.Value         `json:"respostaCorreta,omitempty"`
	Explanation   *string             `json:"explicacao,omitempty"`
	Difficulty    *model.Difficulty   `json:"dificuldade,omitempty"`
	Type          *model.QuestionType `json:"tipo,omitempty"`
	TopicID       *string             `json:"topicoId,omitempty"`
	Tags          *[]string           `json:"tags,omitempty"`
	Origin        *string             `json:"origem,omitempty"`
	IsActive      *bool               `json:"isActive,omitempty"`
}

// UpdateQuestion applies p. Content changes (statement, alternatives, answer, type) bump versao and rehash.
func (s *Service) UpdateQuestion(ctx context.Context, id string, p QuestionPatch) (model.Question, error) {
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		return model.Question{}, err
	}
	contentChanged := false
	if p.Statement != nil && *p.Statement != q.Statement {
		q.Statement = strings.TrimSpace(*p.Statement)
		contentChanged = true
	}
	if p.Alternatives != nil {
		q.Alternatives = *p.Alternatives
		contentChanged = true
	}
	if !p.CorrectAnswer.IsZero() {
		q.CorrectAnswer = p.CorrectAnswer
		contentChanged = true
	}
	if p.Type != nil && *p.Type != q.Type {
		q.Type = *p.Type
		contentChanged = true
	}
	if p.Explanation != nil {
		q.Explanation = *p.Explanation
	}
	if p.Difficulty != nil {
		q.Difficulty = *p.Difficulty
	}
	if p.TopicID != nil && *p.TopicID != q.TopicID {
		t, err := store.GetAs[model.Topic](ctx, s.store, store.Topics, *p.TopicID)
		if err != nil {
			return model.Question{}, err
		}
		if t.SubjectID != q.SubjectID {
			return model.Question{}, apperr.Invalid("topicoId", "topic belongs to another subject")
		}
		q.TopicID = t.ID
	}
	if p.Tags != nil {
		q.Tags = *p.Tags
	}
	if p.Origin != nil {
		q.Origin = *p.Origin
	}
	if p.IsActive != nil {
		q.IsActive = *p.IsActive
	}
	if err := q.Validate(); err != nil {
		return model.Question{}, err
	}
	if contentChanged {
		q.Version++
		q.Rehash()
	}
	return store.UpdateAs[model.Question](ctx, s.store, store.Questions, id, q)
}

func (s *Service) FlagQuestion(ctx context.Context, id, reason string) (model.Question, error) {
	return store.UpdateAs[model.Question](ctx, s.store, store.Questions, id, map[string]any{
		"marcadaRevisao": true,
		"motivoRevisao":  strings.TrimSpace(reason),
	})
}

func (s *Service) UnflagQuestion(ctx context.Context, id string) (model.Question, error) {
	return store.UpdateAs[model.Question](ctx, s.store, store.Questions, id, map[string]any{
		"marcadaRevisao": false,
		"motivoRevisao":  "",
	})
}

// DeactivateQuestion hides a question from new exams while keeping its history.
func (s *Service) DeactivateQuestion(ctx context.Context, id string) (model.Question, error) {
	return store.UpdateAs[model.Question](ctx, s.store, store.Questions, id, map[string]any{"isActive": false})
}

// DeleteQuestion hard-deletes a question together with its answer log and review record.
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, store.Questions, id); err != nil {
		return err
	}
	if err := s.cascade(ctx, []string{id}); err != nil {
		return err
	}
	return s.store.Delete(ctx, store.Questions, id)
}

func (s *Service) deleteQuestionsWhere(ctx context.Context, f store.Filter) error {
	qs, err := store.ListAs[model.Question](ctx, s.store, store.Questions, f)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	if err := s.cascade(ctx, ids); err != nil {
		return err
	}
	return s.store.BulkDelete(ctx, store.Questions, ids)
}

// cascade removes respostas and revisoes that point at the given questions.
func (s *Service) cascade(ctx context.Context, questionIDs []string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	var answerIDs []string
	for _, qid := range questionIDs {
		logs, err := store.ListAs[model.AnswerLog](ctx, s.store, store.Answers, store.Filter{store.Eq("questaoId", qid)})
		if err != nil {
			return err
		}
		for _, l := range logs {
			answerIDs = append(answerIDs, l.ID)
		}
	}
	if err := s.store.BulkDelete(ctx, store.Answers, answerIDs); err != nil {
		return err
	}
	// review ids are question ids
	return s.store.BulkDelete(ctx, store.Reviews, questionIDs)
}
