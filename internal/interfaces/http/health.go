package http

import (
	"net/http"

	"moneymind/internal/shared/apperr"
)

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// HandleNotFound answers any path no route matched.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, apperr.NotFoundf("no route for %s %s", r.Method, r.URL.Path))
}
