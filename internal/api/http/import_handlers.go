package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-study/internal/apperr"
)

// POST /import/csv accepts multipart file= or a raw text/csv body. Without ?commit=1 it
// only previews, and the taxonomy the preview created is removed again.
func (a *api) importCSV(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = io.LimitReader(r.Body, maxBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, a.Log, r, apperr.Invalid("file", "file required"))
			return
		}
		defer f.Close()
		src = f
	}

	ctx := r.Context()
	p, err := a.Importer.Parse(ctx, src)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	commit := r.URL.Query().Get("commit")
	if commit != "1" && commit != "true" {
		if err := a.Importer.Discard(ctx, p); err != nil {
			writeError(w, a.Log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	rep, err := a.Importer.Commit(ctx, p)
	if err != nil {
		writeError(w, a.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}
