package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"munnies/internal/core"
	"munnies/internal/storage"
)

// kidFromRequest resolves the {id} path segment to a kid across both
// partitions.
func (s *Server) kidFromRequest(r *http.Request) (core.Kid, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return core.Kid{}, storage.ErrNotFound
	}
	return s.manager.FindKid(r.Context(), id)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
