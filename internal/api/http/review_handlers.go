package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-study/internal/review"
)

func (a *api) dueReviews(w http.ResponseWriter, r *http.Request) {
	items, err := a.Reviews.DueQuestions(r.Context(), a.Now())
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) answerReview(w http.ResponseWriter, r *http.Request) {
	var in review.AnswerInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	out, err := a.Reviews.Answer(r.Context(), chi.URLParam(r, "questionID"), in)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Dashboard.Summary(r.Context())
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *api) dailyStats(w http.ResponseWriter, r *http.Request) {
	days, err := a.Dashboard.Days(r.Context())
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
