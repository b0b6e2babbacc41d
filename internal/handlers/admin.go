package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler provides platform-admin endpoints: university
// verification, report generation, and challenge review.
type AdminHandler struct {
	universities *services.UniversityService
}

func NewAdminHandler(universities *services.UniversityService) *AdminHandler {
	return &AdminHandler{universities: universities}
}

// AdminRouter registers admin routes. Every route requires an
// authenticated admin.
func AdminRouter(r chi.Router, handler *AdminHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware, RequireRole(types.RoleAdmin))
	r.Post("/verify-university", handler.VerifyUniversity)
	r.Post("/generate-report/{universityID}", handler.GenerateReport)
	r.Get("/report-challenges", handler.ListChallenges)
	r.Patch("/report-challenges/{challengeID}", handler.RespondToChallenge)
}

type VerifyUniversityRequest struct {
	InstitutionName string `json:"institutionName"`
}

func (h *AdminHandler) VerifyUniversity(w http.ResponseWriter, r *http.Request) {
	var req VerifyUniversityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.InstitutionName = strings.TrimSpace(req.InstitutionName)
	if req.InstitutionName == "" {
		writeError(w, http.StatusBadRequest, "institution name is required")
		return
	}

	if err := h.universities.Verify(r.Context(), req.InstitutionName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "university not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify university")
		return
	}
	writeMessage(w, http.StatusOK, "university '"+req.InstitutionName+"' verified successfully")
}

func (h *AdminHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	universityID, err := strconv.Atoi(chi.URLParam(r, "universityID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid university id")
		return
	}

	report, err := h.universities.GenerateReport(r.Context(), universityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "university not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "report generated",
		"report":  report,
	})
}

func (h *AdminHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenged, err := h.universities.ListChallenged(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch challenge history")
		return
	}
	if challenged == nil {
		challenged = []services.ChallengedUniversity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"universities": challenged})
}

type RespondToChallengeRequest struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

func (h *AdminHandler) RespondToChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID, err := strconv.Atoi(chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid challenge id")
		return
	}

	var req RespondToChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.universities.RespondToChallenge(r.Context(), challengeID, req.Response, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to update challenge response")
		return
	}
	writeMessage(w, http.StatusOK, "challenge response updated")
}
