package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/bank"
	"github.com/mind-engage/mindengage-study/internal/model"
)

func (a *api) listSubjects(w http.ResponseWriter, r *http.Request) {
	subs, err := a.Bank.ListSubjects(r.Context())
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (a *api) createSubject(w http.ResponseWriter, r *http.Request) {
	var in model.Subject
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	in.ID = ""
	sub, err := a.Bank.CreateSubject(r.Context(), in)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (a *api) deleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := a.Bank.DeleteSubject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := a.Bank.ListTopics(r.Context(), r.URL.Query().Get("disciplinaId"))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (a *api) createTopic(w http.ResponseWriter, r *http.Request) {
	var in model.Topic
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	in.ID = ""
	t, err := a.Bank.CreateTopic(r.Context(), in)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *api) deleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := a.Bank.DeleteTopic(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /questoes?disciplinaId=&topicoId=&ativas=1&marcadas=0|1
func (a *api) listQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := bank.QuestionFilter{
		SubjectID:  q.Get("disciplinaId"),
		TopicID:    q.Get("topicoId"),
		ActiveOnly: q.Get("ativas") == "1" || q.Get("ativas") == "true",
	}
	if v := q.Get("marcadas"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, a.Log, r, apperr.Invalid("marcadas", "expected a boolean"))
			return
		}
		f.Flagged = &b
	}
	qs, err := a.Bank.ListQuestions(r.Context(), f)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (a *api) createQuestion(w http.ResponseWriter, r *http.Request) {
	var in model.Question
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	in.ID = ""
	q, err := a.Bank.CreateQuestion(r.Context(), in)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *api) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := a.Bank.GetQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *api) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var p bank.QuestionPatch
	if err := decode(r, &p); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	q, err := a.Bank.UpdateQuestion(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DELETE /questoes/{id} hard-deletes; ?soft=1 only deactivates.
func (a *api) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if r.URL.Query().Get("soft") == "1" {
		q, err := a.Bank.DeactivateQuestion(r.Context(), id)
		if err != nil {
			writeError(w, a.Log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
		return
	}
	if err := a.Bank.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /questoes/{id}/flag {"marcada": true, "motivo": "..."}
func (a *api) flagQuestion(w http.ResponseWriter, r *http.Request) {
	in := struct {
		Flagged *bool  `json:"marcada"`
		Reason  string `json:"motivo"`
	}{}
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var (
		q   model.Question
		err error
	)
	if in.Flagged != nil && !*in.Flagged {
		q, err = a.Bank.UnflagQuestion(r.Context(), id)
	} else {
		q, err = a.Bank.FlagQuestion(r.Context(), id, in.Reason)
	}
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
