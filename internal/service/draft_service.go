package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/draft"
)

// DraftService serves POST /api/ai/generate.
type DraftService struct {
	drafter *draft.Drafter
}

// NewDraftService creates a DraftService around drafter.
func NewDraftService(drafter *draft.Drafter) *DraftService {
	return &DraftService{drafter: drafter}
}

// Generate turns {"prompt": "..."} into an invoice draft. Nothing is stored.
func (s *DraftService) Generate(w http.ResponseWriter, r *http.Request) {
	in, _, err := readFields(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	prompt, _ := in.str("prompt")

	res, err := s.drafter.Draft(r.Context(), prompt)
	if err != nil {
		switch {
		case errors.Is(err, draft.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, draft.ErrNotConfigured.Error())
		case errors.Is(err, draft.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "Prompt is required and must be a non-empty string.")
		case errors.Is(err, draft.ErrNoJSON):
			slog.Error("AI response did not contain JSON", "error", err)
			writeError(w, http.StatusBadGateway, draft.ErrNoJSON.Error())
		default:
			slog.Error("AI generation failed", "error", err)
			writeError(w, http.StatusBadGateway, draft.ErrAllModelsFailed.Error())
		}
		return
	}

	slog.Info("AI draft generated", "model", res.Model, "items_count", len(res.Invoice.Items))
	writeJSON(w, http.StatusOK, envelope{Success: true, Model: res.Model, Data: res.Invoice})
}
