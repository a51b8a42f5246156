package grading

import (
	"context"
	"errors"
	"strings"

	"github.com/mind-engage/mindengage-study/internal/model"
)

// Q is the view of a question needed for grading.
type Q struct {
	Type          model.QuestionType
	CorrectAnswer model.Value
}

func FromQuestion(q model.Question) Q {
	return Q{Type: q.Type, CorrectAnswer: q.CorrectAnswer}
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct  bool
	Feedback []string
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, response model.Value) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response model.Value) (Result, error)
}

var ErrNoResponse = errors.New("empty response")

type defaultGrader struct {
	strategies map[model.QuestionType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response model.Value) (Result, error) {
	if response.IsZero() {
		return Result{}, ErrNoResponse
	}
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, errors.New("no strategy for question type " + string(q.Type))
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	TrimFillBlank bool // ignore surrounding spaces on fill-in-the-blank answers
}

func WithTrimFillBlank(b bool) Option { return func(c *config) { c.TrimFillBlank = b } }

// NewDefaultGrader installs the built-in strategies. Every strategy compares exact values
// after both sides are decoded out of their serialized form.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[model.QuestionType]Strategy{
			model.TypeMultipleChoice: exactStringStrategy{},
			model.TypeFillBlank:      exactStringStrategy{trim: cfg.TrimFillBlank},
			model.TypeTrueFalse:      trueFalseStrategy{},
			model.TypeFlashcard:      flashcardStrategy{},
		},
	}
}

// --- Strategies ---

type exactStringStrategy struct{ trim bool }

func (s exactStringStrategy) Grade(_ context.Context, q Q, response model.Value) (Result, error) {
	want, ok := q.CorrectAnswer.String()
	if !ok {
		return Result{}, errors.New("stored answer is not a string")
	}
	got, ok := response.String()
	if !ok {
		return Result{}, errors.New("response must be a string")
	}
	if s.trim {
		want, got = strings.TrimSpace(want), strings.TrimSpace(got)
	}
	return Result{Correct: got == want}, nil
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(_ context.Context, q Q, response model.Value) (Result, error) {
	want, ok := q.CorrectAnswer.Bool()
	if !ok {
		return Result{}, errors.New("stored answer is not a boolean")
	}
	got, ok := response.Bool()
	if !ok {
		return Result{}, errors.New("response must be a boolean")
	}
	return Result{Correct: got == want}, nil
}

// flashcardStrategy accepts either the typed answer or the learner's own verdict
// (a boolean "I got it") after flipping the card.
type flashcardStrategy struct{}

func (flashcardStrategy) Grade(_ context.Context, q Q, response model.Value) (Result, error) {
	if verdict, ok := response.Decode().(bool); ok {
		return Result{Correct: verdict, Feedback: []string{"self-assessed"}}, nil
	}
	want, ok := q.CorrectAnswer.String()
	if !ok {
		return Result{}, errors.New("stored answer is not a string")
	}
	got, ok := response.String()
	if !ok {
		return Result{}, errors.New("response must be a string or boolean")
	}
	return Result{Correct: got == want}, nil
}
