package talkwatch

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the daemon's HTTP API.
//
//	GET  /healthz
//	GET  /pages
//	GET  /pages/{title}/comments
//	GET  /pages/{title}/new
//	POST /pages/{title}/check
//	POST /comments/{id}/seen
func (w *Watcher) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/pages", w.handleListPages)
	r.Get("/pages/{title}/comments", w.handleComments(false))
	r.Get("/pages/{title}/new", w.handleComments(true))
	r.Post("/pages/{title}/check", w.handleCheck)
	r.Post("/comments/{id}/seen", w.handleMarkSeen)

	return r
}

func (w *Watcher) handleListPages(rw http.ResponseWriter, req *http.Request) {
	pages, err := w.st.ListPages(req.Context())
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, pages)
}

func (w *Watcher) handleComments(onlyNew bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		title := pageTitle(req)
		p, err := w.st.GetPage(req.Context(), title)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		if p == nil {
			writeError(rw, http.StatusNotFound, ErrUnknownPage)
			return
		}
		comments, err := w.st.CommentsForPage(req.Context(), title, onlyNew)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, http.StatusOK, comments)
	}
}

func (w *Watcher) handleCheck(rw http.ResponseWriter, req *http.Request) {
	report, err := w.CheckPage(req.Context(), pageTitle(req))
	if err != nil {
		writeError(rw, http.StatusBadGateway, err)
		return
	}
	writeJSON(rw, http.StatusOK, report)
}

func (w *Watcher) handleMarkSeen(rw http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := w.MarkSeen(req.Context(), id); err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "seen", "comment_id": id})
}

// pageTitle decodes the {title} route parameter. Talk-page titles carry
// colons and may carry slashes, so clients URL-escape them.
func pageTitle(req *http.Request) string {
	return chi.URLParam(req, "title")
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}
