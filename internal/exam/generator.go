package exam

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type Criteria struct {
	Name      string                 `json:"nome,omitempty"`
	SubjectID string                 `json:"disciplinaId"`
	TopicID   string                 `json:"topicoId,omitempty"`
	Count     int                    `json:"quantidade"`
	Policy    model.DifficultyPolicy `json:"dificuldade"`
}

func (c Criteria) validate() error {
	switch {
	case c.SubjectID == "":
		return apperr.Invalid("disciplinaId", "required")
	case c.Count <= 0:
		return apperr.Invalid("quantidade", "must be positive")
	case !c.Policy.Valid():
		return apperr.Invalid("dificuldade", "unknown policy "+string(c.Policy))
	}
	return nil
}

// ShuffleFunc permutes n elements through swap, like rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

type Generator struct {
	store   store.Store
	log     *logger.Logger
	shuffle ShuffleFunc
	now     func() time.Time
}

type GeneratorOption func(*Generator)

func WithShuffle(f ShuffleFunc) GeneratorOption { return func(g *Generator) { g.shuffle = f } }

func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(s store.Store, log *logger.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:   s,
		log:     logger.OrNop(log),
		shuffle: rand.Shuffle,
		now:     time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Pool returns the active questions matching the criteria's subject, topic and difficulty band.
func (g *Generator) Pool(ctx context.Context, c Criteria) ([]model.Question, error) {
	f := store.Filter{
		store.Eq("disciplinaId", c.SubjectID),
		store.Eq("isActive", true),
	}
	if c.TopicID != "" {
		f = append(f, store.Eq("topicoId", c.TopicID))
	}
	all, err := store.ListAs[model.Question](ctx, g.store, store.Questions, f)
	if err != nil {
		return nil, err
	}
	pool := all[:0]
	for _, q := range all {
		if c.Policy.Allows(q.Difficulty) {
			pool = append(pool, q)
		}
	}
	return pool, nil
}

// Generate draws Count questions uniformly at random and persists a Draft exam.
// It never produces a partial exam: a short pool fails with InsufficientQuestionsError.
func (g *Generator) Generate(ctx context.Context, c Criteria) (model.Exam, error) {
	if err := c.validate(); err != nil {
		return model.Exam{}, err
	}
	if _, err := g.store.Get(ctx, store.Subjects, c.SubjectID); err != nil {
		return model.Exam{}, err
	}
	pool, err := g.Pool(ctx, c)
	if err != nil {
		return model.Exam{}, err
	}
	if len(pool) < c.Count {
		return model.Exam{}, &apperr.InsufficientQuestionsError{Found: len(pool), Requested: c.Count}
	}

	g.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	picked := pool[:c.Count]

	slots := make([]model.ExamQuestion, len(picked))
	for i, q := range picked {
		slots[i] = model.ExamQuestion{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Order:      i + 1,
		}
	}
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("Simulado %s", g.now().Format("02/01/2006 15:04"))
	}

	// phase 1: the parent record, which assigns the exam id
	created, err := store.CreateAs(ctx, g.store, store.Exams, model.Exam{
		Name:      name,
		Policy:    c.Policy,
		SubjectID: c.SubjectID,
		TopicID:   c.TopicID,
		Status:    model.StatusDraft,
		Questions: slots,
	})
	if err != nil {
		return model.Exam{}, err
	}

	// phase 2: link every slot to its parent
	for i := range slots {
		slots[i].ExamID = created.ID
	}
	linked, err := store.UpdateAs[model.Exam](ctx, g.store, store.Exams, created.ID, map[string]any{"questoes": slots})
	if err != nil {
		g.compensate(ctx, created.ID, err)
		return model.Exam{}, err
	}
	g.log.Info("exam: generated", "exam_id", linked.ID, "count", len(slots), "policy", c.Policy, "pool", len(pool))
	return linked, nil
}

// compensate removes a parent whose slot linkage failed so no half-built exam survives.
func (g *Generator) compensate(ctx context.Context, examID string, cause error) {
	if err := g.store.Delete(ctx, store.Exams, examID); err != nil {
		g.log.Error("exam: compensation failed, partial exam left behind", "exam_id", examID, "cause", cause, "error", err)
		return
	}
	g.log.Warn("exam: slot linkage failed, exam removed", "exam_id", examID, "cause", cause)
}
