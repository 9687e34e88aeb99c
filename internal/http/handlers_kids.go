package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"munnies/internal/cloud"
	"munnies/internal/core"
	"munnies/internal/persistence"
	"munnies/internal/storage"
)

type kidView struct {
	core.Kid
	Balance core.Money
	Status  persistence.ShareStatus
	CanEdit bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	privateKids, sharedKids := s.manager.FetchAllKids(r.Context())

	data := struct {
		PrivateKids []kidView
		SharedKids  []kidView
		Account     cloud.AccountStatus
		Currency    string
	}{
		PrivateKids: s.kidViews(r, privateKids),
		SharedKids:  s.kidViews(r, sharedKids),
		Account:     s.manager.AccountStatus(r.Context()),
		Currency:    s.currency.Code(),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) kidViews(r *http.Request, kids []core.Kid) []kidView {
	views := make([]kidView, 0, len(kids))
	for _, kid := range kids {
		view := kidView{Kid: kid, Status: s.manager.ShareStatus(r.Context(), kid)}
		view.CanEdit = s.manager.CanEdit(r.Context(), kid)
		if _, balance, err := s.manager.Transactions(r.Context(), kid); err == nil {
			view.Balance = balance
		} else {
			slog.ErrorContext(r.Context(), "Balance fetch failed", "kid_id", kid.ID, "error", err)
		}
		views = append(views, view)
	}
	return views
}

func (s *Server) handleCreateKid(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	kid := core.Kid{
		ID:          uuid.New(),
		Name:        sanitizeInput(r.Form.Get("name")),
		AvatarEmoji: sanitizeInput(r.Form.Get("avatar")),
		ColorHex:    sanitizeInput(r.Form.Get("color")),
		CreatedAt:   time.Now().UTC(),
		Scope:       core.ScopePrivate,
	}
	if err := kid.Validate(); err != nil {
		http.Error(w, "Invalid data: "+template.HTMLEscapeString(err.Error()), http.StatusUnprocessableEntity)
		return
	}

	if err := s.manager.CreateKid(r.Context(), kid); err != nil {
		slog.ErrorContext(r.Context(), "Failed to save kid",
			"error", err,
			"name", kid.Name)
		http.Error(w, "Error saving kid", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Kid created", "id", kid.ID, "name", kid.Name)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleKidDetail(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	txs, balance, err := s.manager.Transactions(r.Context(), kid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transactions fetch failed", "kid_id", kid.ID, "error", err)
		http.Error(w, "error loading transactions", http.StatusInternalServerError)
		return
	}

	data := struct {
		Kid          core.Kid
		Balance      core.Money
		Transactions []core.Transaction
		Status       persistence.ShareStatus
		CanEdit      bool
		Presets      []string
	}{
		Kid:          kid,
		Balance:      balance,
		Transactions: txs,
		Status:       s.manager.ShareStatus(r.Context(), kid),
		CanEdit:      s.manager.CanEdit(r.Context(), kid),
		Presets:      []string{"1", "5", "10", "-1", "-5"},
	}

	if err := s.templates.ExecuteTemplate(w, "kid.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Kid template execution failed", "error", err, "template", "kid.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleEditKid(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !s.manager.CanEdit(r.Context(), kid) {
		http.Error(w, "you do not have permission to edit this ledger", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	avatar := sanitizeInput(r.Form.Get("avatar"))
	color := sanitizeInput(r.Form.Get("color"))

	if err := s.manager.UpdateKid(r.Context(), kid, name, avatar, color); err != nil {
		if errors.Is(err, core.ErrEmptyName) {
			http.Error(w, "name is required", http.StatusUnprocessableEntity)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update kid", "kid_id", kid.ID, "error", err)
		http.Error(w, "Error updating kid", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/kids/"+kid.ID.String(), http.StatusSeeOther)
}

func (s *Server) handleDeleteKid(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !s.manager.CanEdit(r.Context(), kid) {
		http.Error(w, "you do not have permission to delete this ledger", http.StatusForbidden)
		return
	}

	if err := s.manager.DeleteKid(r.Context(), kid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete kid", "kid_id", kid.ID, "error", err)
		http.Error(w, "Error deleting kid", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Kid deleted", "kid_id", kid.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
