package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"doclens/internal/api/v1/dto"
	"doclens/internal/apperror"
	"doclens/internal/config"
	"doclens/internal/middleware"
	"doclens/internal/model"
	"doclens/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartMemoryBytes is how much of a parsed form is held in memory
// before spilling to temp files.
const multipartMemoryBytes = 32 << 20

// DocumentHandler handles document upload, status, report and export endpoints.
type DocumentHandler struct {
	cfg       *config.Config
	documents service.DocumentService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(cfg *config.Config, documents service.DocumentService, v *validator.Validate, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{cfg: cfg, documents: documents, validate: v, logger: logger}
}

// RegisterRoutes mounts document routes under /documents and /documents/{id}
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/documents", authMw(http.HandlerFunc(h.handleDocuments)))
	mux.Handle("/documents/", authMw(http.HandlerFunc(h.handleDocument)))
}

func (h *DocumentHandler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.uploadDocument(w, r)
	case http.MethodGet:
		h.listDocuments(w, r)
	default:
		respondError(w, h.logger, apperror.UnsupportedMethod("GET, POST"))
	}
}

func (h *DocumentHandler) handleDocument(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/documents/")
	id := rest
	action := ""
	if idx := strings.Index(rest, "/"); idx >= 0 {
		id, action = rest[:idx], rest[idx+1:]
	}
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			respondError(w, h.logger, apperror.UnsupportedMethod("GET"))
			return
		}
		h.getDocument(w, r, id)
	case "status":
		if r.Method != http.MethodGet {
			respondError(w, h.logger, apperror.UnsupportedMethod("GET"))
			return
		}
		h.getDocumentStatus(w, r, id)
	case "report":
		if r.Method != http.MethodPost {
			respondError(w, h.logger, apperror.UnsupportedMethod("POST"))
			return
		}
		h.generateReport(w, r, id)
	case "export":
		if r.Method != http.MethodPost {
			respondError(w, h.logger, apperror.UnsupportedMethod("POST"))
			return
		}
		h.exportReport(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// uploadDocument godoc
// @Summary Upload a document for analysis
// @Description Accepts a multipart form with a file and an optional doc_type field.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file (PDF, TXT or DOCX)"
// @Param doc_type formData string false "Document category, defaults to Other"
// @Success 201 {object} dto.DocumentResponseDTO
// @Failure 400 {object} map[string]string "empty or unreadable file"
// @Failure 413 {object} map[string]string "file too large"
// @Failure 415 {object} map[string]string "unsupported file type"
// @Router /documents [post]
func (h *DocumentHandler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	// 1. Extract identity from context
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	// 2. Parse the multipart form, bounded a little above the file limit so
	// the service can answer an over-limit file with a clean 413.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes()+(1<<20))
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, h.logger, apperror.TooLarge(fmt.Sprintf("request body too large, max %d MB", h.cfg.MaxUploadMB)))
			return
		}
		respondError(w, h.logger, apperror.InvalidInput("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, apperror.InvalidInput("missing file field"))
		return
	}
	defer file.Close()

	docType := r.FormValue("doc_type")

	// 3. Call service to validate, archive and forward
	doc, err := h.documents.Upload(r.Context(), identity.UserID, header.Filename, docType, header.Size, file)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	// 4. Return response
	respondJSON(w, h.logger, http.StatusCreated, toDocumentResponse(doc))
}

// listDocuments godoc
// @Summary List the authenticated user's documents
// @Tags documents
// @Produce json
// @Success 200 {array} dto.DocumentResponseDTO
// @Failure 401 {object} map[string]string "unauthenticated"
// @Router /documents [get]
func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	docs, err := h.documents.List(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp := make([]dto.DocumentResponseDTO, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i]))
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}

// getDocument godoc
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} dto.DocumentResponseDTO
// @Failure 404 {object} map[string]string "document not found"
// @Router /documents/{documentId} [get]
func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	doc, err := h.documents.Get(r.Context(), identity.UserID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toDocumentResponse(doc))
}

// getDocumentStatus godoc
// @Summary Get a document's current analysis status
// @Description Re-reads the status from the analysis service and persists any change.
// @Tags documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} dto.DocumentStatusResponseDTO
// @Failure 404 {object} map[string]string "document not found"
// @Failure 500 {object} map[string]string "analysis service unreachable"
// @Router /documents/{documentId}/status [get]
func (h *DocumentHandler) getDocumentStatus(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	doc, err := h.documents.RefreshStatus(r.Context(), identity.UserID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	status := dto.DocumentStatusResponseDTO{DocumentID: doc.ID, Status: doc.Status}
	if doc.ErrorMsg != nil {
		status.ErrorMsg = *doc.ErrorMsg
	}
	respondJSON(w, h.logger, http.StatusOK, status)
}

// generateReport godoc
// @Summary Generate an HTML report for a parsed document
// @Tags documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} dto.ReportResponseDTO
// @Failure 404 {object} map[string]string "document not found"
// @Failure 409 {object} map[string]string "document is not ready"
// @Router /documents/{documentId}/report [post]
func (h *DocumentHandler) generateReport(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	report, err := h.documents.GenerateReport(r.Context(), identity.UserID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.ReportResponseDTO{
		HTML:     report.HTML,
		Metadata: report.Metadata,
	})
}

// exportReport godoc
// @Summary Export a document's report as PDF or DOCX
// @Description Streams the rendered report back as a file attachment.
// @Tags documents
// @Accept json
// @Produce application/octet-stream
// @Param documentId path string true "Document ID"
// @Param export body dto.ExportRequestDTO true "Export format"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string "unsupported format"
// @Failure 404 {object} map[string]string "document not found"
// @Failure 409 {object} map[string]string "document is not ready"
// @Router /documents/{documentId}/export [post]
func (h *DocumentHandler) exportReport(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	var req dto.ExportRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, apperror.InvalidInput("invalid JSON payload"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, h.logger, apperror.InvalidInput("fmt must be one of: pdf, docx"))
		return
	}

	doc, err := h.documents.Get(r.Context(), identity.UserID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	export, err := h.documents.ExportReport(r.Context(), identity.UserID, id, req.Fmt)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	base := strings.TrimSuffix(filepath.Base(doc.FileName), filepath.Ext(doc.FileName))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_report."+req.Fmt))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to stream export")
	}
}

func toDocumentResponse(d *model.Document) dto.DocumentResponseDTO {
	resp := dto.DocumentResponseDTO{
		DocumentID:  d.ID,
		FileName:    d.FileName,
		DocType:     d.DocType,
		Status:      d.Status,
		StoragePath: d.StoragePath,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.ErrorMsg != nil {
		resp.ErrorMsg = *d.ErrorMsg
	}
	return resp
}
