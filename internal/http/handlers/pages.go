package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/signal-dashboard/internal/models"
)

// Page отдаёт описание страницы name. Доступ к защищённым страницам
// уже проверен guard.Middleware, здесь только сборка ответа.
func (h *Handlers) Page(name string, params ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := models.Page{
			Page:    name,
			Session: models.SessionFromStatus(h.Session.Status()),
		}

		if len(params) > 0 {
			page.Params = make(map[string]string, len(params))
			for _, p := range params {
				page.Params[p] = chi.URLParam(r, p)
			}
		}

		writeJSON(w, http.StatusOK, page)
	}
}
