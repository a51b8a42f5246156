package model

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "facil"
	DifficultyMedium Difficulty = "medio"
	DifficultyHard   Difficulty = "dificil"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multipla_escolha"
	TypeTrueFalse      QuestionType = "verdadeiro_falso"
	TypeFillBlank      QuestionType = "lacuna"
	TypeFlashcard      QuestionType = "flashcard"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeFillBlank, TypeFlashcard:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceCertain Confidence = "certeza"
	ConfidenceDoubt   Confidence = "duvida"
	ConfidenceGuess   Confidence = "chute"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceCertain, ConfidenceDoubt, ConfidenceGuess:
		return true
	}
	return false
}

// DifficultyPolicy selects the difficulty band of a generated exam.
type DifficultyPolicy string

const (
	PolicyEasy   DifficultyPolicy = "facil"     // facil + medio
	PolicyHard   DifficultyPolicy = "dificil"   // medio + dificil
	PolicyRandom DifficultyPolicy = "aleatorio" // everything
)

// Allows reports whether a question of difficulty d belongs to the band.
func (p DifficultyPolicy) Allows(d Difficulty) bool {
	switch p {
	case PolicyEasy:
		return d == DifficultyEasy || d == DifficultyMedium
	case PolicyHard:
		return d == DifficultyMedium || d == DifficultyHard
	default:
		return true
	}
}

func (p DifficultyPolicy) Valid() bool {
	switch p {
	case PolicyEasy, PolicyHard, PolicyRandom:
		return true
	}
	return false
}

type ExamStatus string

const (
	StatusDraft      ExamStatus = "rascunho"
	StatusInProgress ExamStatus = "em_andamento"
	StatusCompleted  ExamStatus = "finalizado"
)

// Subject is a Disciplina.
type Subject struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"nome"`
	Description string    `json:"descricao,omitempty"`
	Color       string    `json:"cor,omitempty"`
	Order       int       `json:"ordem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Topic is a Topico. ParentID is set for sub-topics (one level of nesting).
type Topic struct {
	ID        string    `json:"id,omitempty"`
	SubjectID string    `json:"disciplinaId"`
	Name      string    `json:"nome"`
	ParentID  string    `json:"topicoPaiId,omitempty"`
	Order     int       `json:"ordem"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Question is a Questao.
type Question struct {
	ID               string       `json:"id,omitempty"`
	SubjectID        string       `json:"disciplinaId"`
	TopicID          string       `json:"topicoId"`
	Type             QuestionType `json:"tipo"`
	Difficulty       Difficulty   `json:"dificuldade"`
	Origin           string       `json:"origem,omitempty"`
	Statement        string       `json:"enunciado"`
	Alternatives     []string     `json:"alternativas,omitempty"`
	CorrectAnswer    Value        `json:"respostaCorreta"`
	Explanation      string       `json:"explicacao,omitempty"`
	Tags             []string     `json:"tags"`
	Version          int          `json:"versao"`
	IsActive         bool         `json:"isActive"`
	ContentHash      string       `json:"hashConteudo"`
	FlaggedForReview bool         `json:"marcadaRevisao"`
	FlagReason       string       `json:"motivoRevisao,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Exam is a Simulado. Questions is the owned, ordered slot list, always written as a unit.
type Exam struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"nome"`
	Policy      DifficultyPolicy `json:"dificuldade"`
	SubjectID   string           `json:"disciplinaId"`
	TopicID     string           `json:"topicoId,omitempty"`
	Status      ExamStatus       `json:"status"`
	Questions   []ExamQuestion   `json:"questoes"`
	StartedAt   *time.Time       `json:"iniciadoEm,omitempty"`
	CompletedAt *time.Time       `json:"finalizadoEm,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ExamQuestion is a SimuladoQuestao slot.
type ExamQuestion struct {
	ID             string     `json:"id"`
	ExamID         string     `json:"simuladoId"`
	QuestionID     string     `json:"questaoId"`
	Order          int        `json:"ordem"`
	Response       Value      `json:"respostaUsuario,omitempty"`
	Correct        *bool      `json:"correta,omitempty"`
	Confidence     Confidence `json:"confianca,omitempty"`
	ElapsedSeconds int        `json:"tempoSegundos"`
	AnsweredAt     *time.Time `json:"respondidaEm,omitempty"`
}

func (q ExamQuestion) Answered() bool { return q.AnsweredAt != nil }

// AnswerLog is a Resposta. ExamID is nil for practice outside an exam.
type AnswerLog struct {
	ID             string     `json:"id,omitempty"`
	QuestionID     string     `json:"questaoId"`
	ExamID         *string    `json:"simuladoId"`
	Correct        bool       `json:"correta"`
	Response       Value      `json:"resposta"`
	Confidence     Confidence `json:"confianca,omitempty"`
	ElapsedSeconds int        `json:"tempoSegundos"`
	AnsweredAt     time.Time  `json:"respondidaEm"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Review is a Revisao. Its ID is the question ID, which keeps one record per question.
type Review struct {
	ID              string     `json:"id,omitempty"`
	QuestionID      string     `json:"questaoId"`
	Bucket          int        `json:"caixa"`
	NextDue         time.Time  `json:"proximaRevisao"`
	LastPerformance Difficulty `json:"ultimoDesempenho,omitempty"`
	ReviewCount     int        `json:"totalRevisoes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DailyStats is a StatsDia rollup. ID is the date in YYYY-MM-DD.
type DailyStats struct {
	ID             string    `json:"id,omitempty"`
	Date           string    `json:"data"`
	Answered       int       `json:"respondidas"`
	Correct        int       `json:"acertos"`
	TotalSeconds   int       `json:"tempoTotal"`
	ExamsCompleted int       `json:"simuladosFinalizados"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DateKey formats t as the UTC calendar day used by rollups and due checks.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
