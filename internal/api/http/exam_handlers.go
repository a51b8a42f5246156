package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-study/internal/exam"
	"github.com/mind-engage/mindengage-study/internal/model"
)

func (a *api) listExams(w http.ResponseWriter, r *http.Request) {
	exams, err := a.Sessions.List(r.Context(), model.ExamStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (a *api) generateExam(w http.ResponseWriter, r *http.Request) {
	var c exam.Criteria
	if err := decode(r, &c); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	e, err := a.Generator.Generate(r.Context(), c)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *api) getExam(w http.ResponseWriter, r *http.Request) {
	e, err := a.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"simulado": e, "progresso": exam.Summarize(e)})
}

// GET /simulados/{id}/current answers 204 once nothing is left to answer.
func (a *api) currentSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slot, err := a.Sessions.Current(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	if slot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	q, err := a.Bank.GetQuestion(ctx, slot.QuestionID)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	// the answer key stays on the server until the slot is answered
	q.CorrectAnswer = nil
	q.Explanation = ""
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot, "questao": q})
}

func (a *api) answerSlot(w http.ResponseWriter, r *http.Request) {
	var in exam.AnswerInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	e, slot, err := a.Sessions.Answer(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot, "progresso": exam.Summarize(e)})
}

func (a *api) finishExam(w http.ResponseWriter, r *http.Request) {
	res, err := a.Sessions.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
