package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"munnies/internal/core"
	"munnies/internal/storage"
)

// handleCreateTransaction records a signed movement on a kid's ledger. The
// form carries either a preset amount or a free-form one; a "direction" of
// "spend" flips the sign so presets stay positive in the markup.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	raw := sanitizeInput(r.Form.Get("amount"))
	amount, err := core.ParseAmount(raw)
	if err != nil {
		if errors.Is(err, core.ErrZeroAmount) {
			http.Error(w, "amount must not be zero", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "invalid amount", http.StatusUnprocessableEntity)
		return
	}
	if r.Form.Get("direction") == "spend" {
		amount = amount.Neg()
	}

	tx := core.Transaction{
		ID:        uuid.New(),
		KidID:     kid.ID,
		Amount:    amount,
		Note:      sanitizeInput(r.Form.Get("note")),
		CreatedBy: s.manager.CurrentUserName(),
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		http.Error(w, "invalid transaction: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := s.manager.AddTransaction(r.Context(), kid, tx); err != nil {
		slog.ErrorContext(r.Context(), "Failed to save transaction",
			"error", err,
			"kid_id", kid.ID,
			"amount_cents", tx.Amount.Cents)
		http.Error(w, "Error saving transaction", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Transaction recorded",
		"id", tx.ID,
		"kid_id", kid.ID,
		"amount_cents", tx.Amount.Cents)
	http.Redirect(w, r, "/kids/"+kid.ID.String(), http.StatusSeeOther)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	txID, err := uuid.Parse(r.PathValue("txid"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.manager.DeleteTransaction(r.Context(), kid, txID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete transaction",
			"error", err,
			"kid_id", kid.ID,
			"transaction_id", txID)
		http.Error(w, "Error deleting transaction", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted", "id", txID, "kid_id", kid.ID)
	http.Redirect(w, r, "/kids/"+kid.ID.String(), http.StatusSeeOther)
}
