package http

import (
	"log/slog"
	"net/http"

	"munnies/internal/cloud"
	"munnies/internal/core"
	"munnies/internal/currency"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	repo := s.manager.Repository(core.ScopePrivate)
	settings := core.Settings{CurrencyCode: s.currency.Code()}
	if repo != nil {
		loaded, err := repo.GetSettings(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to load settings", "error", err)
		} else {
			settings = loaded
		}
	}

	data := struct {
		Settings   core.Settings
		Currencies []currency.Currency
		Selected   string
		Account    cloud.AccountStatus
	}{
		Settings:   settings,
		Currencies: currency.Supported,
		Selected:   s.currency.Code(),
		Account:    s.manager.AccountStatus(r.Context()),
	}

	if err := s.templates.ExecuteTemplate(w, "settings.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Settings template execution failed", "error", err, "template", "settings.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	code := sanitizeInput(r.Form.Get("currency"))
	if err := s.currency.SetCurrency(r.Context(), code); err != nil {
		slog.ErrorContext(r.Context(), "Failed to set currency", "code", code, "error", err)
		http.Error(w, "unsupported currency", http.StatusUnprocessableEntity)
		return
	}

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// handleCompleteOnboarding flips the one-way onboarding flag.
func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	repo := s.manager.Repository(core.ScopePrivate)
	if repo == nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}

	settings, err := repo.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load settings", "error", err)
		http.Error(w, "error loading settings", http.StatusInternalServerError)
		return
	}
	settings.HasCompletedOnboarding = true
	if err := repo.SaveSettings(r.Context(), settings); err != nil {
		slog.ErrorContext(r.Context(), "Failed to save settings", "error", err)
		http.Error(w, "error saving settings", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
