package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mind-engage/mindengage-study/internal/apperr"
)

// ContentHash fingerprints the parts of a question that define its content.
func ContentHash(statement string, alternatives []string, answer Value) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(statement), " "))))
	h.Write([]byte{0})
	for _, a := range alternatives {
		h.Write([]byte(strings.TrimSpace(a)))
		h.Write([]byte{0})
	}
	if s, ok := answer.String(); ok {
		h.Write([]byte(strings.TrimSpace(s)))
	} else if b, ok := answer.Bool(); ok {
		if b {
			h.Write([]byte("true"))
		} else {
			h.Write([]byte("false"))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the fields a question needs before it is persisted.
func (q *Question) Validate() error {
	switch {
	case strings.TrimSpace(q.SubjectID) == "":
		return apperr.Invalid("disciplinaId", "required")
	case strings.TrimSpace(q.TopicID) == "":
		return apperr.Invalid("topicoId", "required")
	case strings.TrimSpace(q.Statement) == "":
		return apperr.Invalid("enunciado", "required")
	case !q.Type.Valid():
		return apperr.Invalid("tipo", "unknown question type "+string(q.Type))
	case !q.Difficulty.Valid():
		return apperr.Invalid("dificuldade", "unknown difficulty "+string(q.Difficulty))
	case q.CorrectAnswer.IsZero():
		return apperr.Invalid("respostaCorreta", "required")
	}
	if _, ok := q.CorrectAnswer.For(q.Type); !ok {
		return apperr.Invalid("respostaCorreta", "answer does not fit question type "+string(q.Type))
	}

	switch q.Type {
	case TypeMultipleChoice:
		ans, _ := q.CorrectAnswer.String()
		if len(q.Alternatives) < 2 {
			return apperr.Invalid("alternativas", "multiple-choice needs at least two alternatives")
		}
		for _, a := range q.Alternatives {
			if a == ans {
				return nil
			}
		}
		return apperr.Invalid("respostaCorreta", "answer is not one of the alternatives")
	default:
		if len(q.Alternatives) > 0 {
			return apperr.Invalid("alternativas", "only multiple-choice questions have alternatives")
		}
	}
	return nil
}

// Rehash recomputes the content hash.
func (q *Question) Rehash() {
	q.ContentHash = ContentHash(q.Statement, q.Alternatives, q.CorrectAnswer)
}
