package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chairup/chairup/services/booking-service/internal/matcher"
)

type matchRequest struct {
	ProviderID  string `json:"provider_id"`
	Description string `json:"description"`
}

// Match suggests one of the provider's services for a free-text description.
func (h *BookingHandler) Match(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}

	snap, err := h.snapshot(r.Context(), req.ProviderID)
	if err != nil {
		h.logger.Error("load catalog failed", "err", err, "provider_id", req.ProviderID)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	var candidates []matcher.Candidate
	for _, svc := range snap.Services(req.ProviderID) {
		candidates = append(candidates, matcher.Candidate{
			ID:         svc.ID,
			Name:       svc.Name,
			Minutes:    svc.DurationMinutes,
			PriceCents: svc.PriceCents,
		})
	}

	suggestion, err := h.matcher.Match(r.Context(), req.Description, candidates)
	if errors.Is(err, matcher.ErrNoServices) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No services provided"})
		return
	}
	if err != nil {
		http.Error(w, "match failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}
