package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxUploadFiles     = 10
	maxUploadFileBytes = 10 << 20
	maxMultipartMemory = 32 << 20

	formFieldDocuments = "documents"
	formFieldImages    = "images"
)

// UniversityHandler provides document, rating, and member-management
// endpoints for university accounts.
type UniversityHandler struct {
	universities *services.UniversityService
	users        *services.UserService
}

// NewUniversityHandler constructs the handler.
func NewUniversityHandler(universities *services.UniversityService, users *services.UserService) *UniversityHandler {
	return &UniversityHandler{universities: universities, users: users}
}

// UniversityRouter registers university routes on the given router.
// All routes require authentication; member management additionally
// requires the university role.
func UniversityRouter(r chi.Router, handler *UniversityHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Post("/upload-documents", handler.UploadDocuments)
	r.Get("/docs", handler.ListDocuments)
	r.Get("/docs/{docID}/download", handler.DownloadDocument)
	r.Delete("/docs/{docID}", handler.DeleteDocument)

	r.Post("/upload-infrastructure", handler.UploadInfrastructure)
	r.Get("/infrastructure", handler.ListInfrastructure)

	r.Post("/request-rating", handler.RequestRating)
	r.Post("/challenge-report", handler.ChallengeReport)

	r.With(RequireRole(types.RoleUniversity)).Get("/users", handler.ListUsers)
	r.With(RequireRole(types.RoleUniversity)).Post("/users", handler.AddUser)
	r.With(RequireRole(types.RoleUniversity)).Delete("/users/{userID}", handler.DeleteUser)
}

// universityID resolves the caller's university from their account.
func (h *UniversityHandler) universityID(r *http.Request) (int, error) {
	claims, err := authFromContext(r.Context())
	if err != nil {
		return 0, err
	}
	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return 0, err
	}
	if user.UniversityID == 0 {
		return 0, store.ErrNotFound
	}
	return user.UniversityID, nil
}

func (h *UniversityHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, formFieldDocuments, types.DocumentKindDocument)
}

func (h *UniversityHandler) UploadInfrastructure(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, formFieldImages, types.DocumentKindInfrastructure)
}

func (h *UniversityHandler) upload(w http.ResponseWriter, r *http.Request, field, kind string) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > maxUploadFiles {
		writeError(w, http.StatusBadRequest, "too many files")
		return
	}

	var stored []types.Document
	for _, header := range files {
		doc, err := h.storeOne(r, universityID, kind, header)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		stored = append(stored, doc)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "files uploaded successfully",
		"files":   stored,
	})
}

func (h *UniversityHandler) storeOne(r *http.Request, universityID int, kind string, header *multipart.FileHeader) (types.Document, error) {
	if header.Size > maxUploadFileBytes {
		return types.Document{}, errors.New("file too large")
	}
	file, err := header.Open()
	if err != nil {
		return types.Document{}, err
	}
	defer file.Close()

	return h.universities.StoreDocument(r.Context(), universityID, kind, services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
}

func (h *UniversityHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, types.DocumentKindDocument, "documents")
}

func (h *UniversityHandler) ListInfrastructure(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, types.DocumentKindInfrastructure, "images")
}

func (h *UniversityHandler) list(w http.ResponseWriter, r *http.Request, kind, key string) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}
	docs, err := h.universities.ListDocuments(r.Context(), universityID, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if docs == nil {
		docs = []types.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{key: docs})
}

// DownloadDocument streams the stored object back through the API,
// for deployments where the bucket is not publicly readable.
func (h *UniversityHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}
	docID, err := strconv.Atoi(chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, body, err := h.universities.OpenDocument(r.Context(), universityID, docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, body)
}

func (h *UniversityHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}
	docID, err := strconv.Atoi(chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.universities.DeleteDocument(r.Context(), universityID, docID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	writeMessage(w, http.StatusOK, "document deleted successfully")
}

func (h *UniversityHandler) RequestRating(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}

	if err := h.universities.RequestRating(r.Context(), universityID); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "rating already requested")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "university not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to request rating")
		}
		return
	}
	writeMessage(w, http.StatusOK, "rating request submitted to admin")
}

type ChallengeReportRequest struct {
	Reason string `json:"reason"`
}

func (h *UniversityHandler) ChallengeReport(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}

	var req ChallengeReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	if _, err := h.universities.ChallengeReport(r.Context(), universityID, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrNoReport):
			writeError(w, http.StatusBadRequest, "no report to challenge")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "university not found")
		default:
			writeError(w, http.StatusInternalServerError, "challenge submission failed")
		}
		return
	}
	writeMessage(w, http.StatusOK, "report challenge submitted")
}

func (h *UniversityHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}
	users, err := h.users.ListUniversityUsers(r.Context(), universityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, sanitizeUser(user, ""))
	}
	writeJSON(w, http.StatusOK, resp)
}

type AddUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UniversityHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}

	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if _, err := h.users.AddUniversityUser(r.Context(), universityID, req.Username, req.Email, req.Password); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "user with this email or username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add user")
		return
	}
	writeMessage(w, http.StatusCreated, "user added successfully under university")
}

func (h *UniversityHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	universityID, err := h.universityID(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "no university associated with this account")
		return
	}
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.users.DeleteUniversityUser(r.Context(), universityID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotOwned):
			writeError(w, http.StatusForbidden, "unauthorized to delete this user")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}
	writeMessage(w, http.StatusOK, "user deleted successfully")
}
