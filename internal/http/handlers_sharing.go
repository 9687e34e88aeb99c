package http

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"munnies/internal/cloud"
	"munnies/internal/persistence"
)

func (s *Server) handleShareKid(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	grant, err := s.manager.ShareKid(r.Context(), kid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to share kid", "kid_id", kid.ID, "error", err)
		http.Error(w, "Error sharing ledger: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Kid shared",
		"kid_id", kid.ID,
		"share_id", grant.ID,
		"title", grant.Title)
	http.Redirect(w, r, "/kids/"+kid.ID.String(), http.StatusSeeOther)
}

func (s *Server) handleStopSharing(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.manager.StopSharing(r.Context(), kid); err != nil {
		slog.ErrorContext(r.Context(), "Failed to stop sharing", "kid_id", kid.ID, "error", err)
		http.Error(w, "Error stopping sharing: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Sharing stopped", "kid_id", kid.ID)
	http.Redirect(w, r, "/kids/"+kid.ID.String(), http.StatusSeeOther)
}

// handleAcceptShare accepts a sharing invitation. The metadata fields
// arrive out of band with the invitation link; this is the server-side
// counterpart of the platform's accept-invitation callback.
func (s *Server) handleAcceptShare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	shareID, err := uuid.Parse(r.Form.Get("share_id"))
	if err != nil {
		http.Error(w, "invalid share id", http.StatusUnprocessableEntity)
		return
	}
	recordID, err := uuid.Parse(r.Form.Get("record_id"))
	if err != nil {
		http.Error(w, "invalid record id", http.StatusUnprocessableEntity)
		return
	}
	meta := cloud.ShareMetadata{
		ShareID:  shareID,
		RecordID: recordID,
		ZoneID:   sanitizeInput(r.Form.Get("zone_id")),
		OwnerID:  sanitizeInput(r.Form.Get("owner_id")),
	}

	if err := s.manager.AcceptShare(r.Context(), meta, persistence.DefaultStoreLoadTimeout); err != nil {
		slog.ErrorContext(r.Context(), "Failed to accept share", "share_id", shareID, "error", err)
		http.Error(w, "Error accepting invitation: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Share invitation accepted", "share_id", shareID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLeaveShare(w http.ResponseWriter, r *http.Request) {
	kid, err := s.kidFromRequest(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.manager.LeaveShare(r.Context(), kid); err != nil {
		slog.ErrorContext(r.Context(), "Failed to leave share", "kid_id", kid.ID, "error", err)
		http.Error(w, "Error leaving share: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Left share", "kid_id", kid.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
