package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/advisorhq/advisor-backend/internal/models"
	"github.com/advisorhq/advisor-backend/internal/services"
)

var errNotOwner = errors.New("document not owned by caller")

const (
	defaultSearchLimit     = 10
	defaultSearchThreshold = 0.3
	maxSearchLimit         = 50
)

type SearchHandler struct {
	docs *services.DocumentService
}

func NewSearchHandler(docs *services.DocumentService) *SearchHandler {
	return &SearchHandler{docs: docs}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

// Search ranks the caller's document chunks against a free-text query.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	threshold := defaultSearchThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	matches, err := h.docs.Search(r.Context(), userID, req.Query, limit, threshold)
	if err != nil {
		log.Printf("[search] query failed for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if matches == nil {
		matches = []models.ChunkMatch{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": matches, "total": len(matches)})
}
