package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/service"
)

// DocumentHandler handles proof-of-payment document HTTP requests
type DocumentHandler struct {
	documentService *service.DocumentService
	applications    *ApplicationHandler
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *service.DocumentService, applications *ApplicationHandler) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		applications:    applications,
	}
}

// DocumentResponse represents an uploaded proof document in API responses
type DocumentResponse struct {
	ID          string `json:"id"`
	ObjectPath  string `json:"objectPath"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	UploadedAt  string `json:"uploadedAt"`
}

// DocumentURLResponse represents a presigned document URL
type DocumentURLResponse struct {
	URL string `json:"url"`
}

// UploadDocument handles POST /api/v1/applications/:id/documents
func (h *DocumentHandler) UploadDocument(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	if !h.documentService.IsEnabled() {
		return NewInternalError(c, "Document storage is not configured")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "Missing file", []ValidationError{
			{Field: "file", Message: "A multipart 'file' field is required"},
		})
	}

	if fileHeader.Size > service.MaxDocumentSize {
		return NewValidationError(c, "File too large", []ValidationError{
			{Field: "file", Message: "File must be 10MB or less"},
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read uploaded file")
	}

	doc, err := h.documentService.Upload(c.Request().Context(), app.ID, data, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDocumentFormat) || errors.Is(err, service.ErrInvalidImageData) {
			return NewValidationError(c, "Unsupported file type", []ValidationError{
				{Field: "file", Message: "Only JPEG, PNG, WebP, and PDF files are accepted"},
			})
		}
		if errors.Is(err, service.ErrDocumentTooLarge) {
			return NewValidationError(c, "File too large", []ValidationError{
				{Field: "file", Message: "File must be 10MB or less"},
			})
		}
		log.Error().Err(err).Str("application_id", app.ID.String()).Msg("Failed to upload document")
		return NewInternalError(c, "Failed to upload document")
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("object_path", doc.ObjectPath).
		Int64("size", doc.SizeBytes).
		Msg("Proof document uploaded")

	return c.JSON(http.StatusCreated, DocumentResponse{
		ID:          doc.ID.String(),
		ObjectPath:  doc.ObjectPath,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		UploadedAt:  doc.UploadedAt.Format(time.RFC3339),
	})
}

// GetDocumentURL handles GET /api/v1/applications/:id/documents/url?path=...
func (h *DocumentHandler) GetDocumentURL(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	objectPath := c.QueryParam("path")
	if objectPath == "" {
		return NewValidationError(c, "Missing path parameter", []ValidationError{
			{Field: "path", Message: "Object path is required"},
		})
	}
	// Documents are namespaced per application
	if !strings.HasPrefix(objectPath, "proofs/"+app.ID.String()+"/") {
		return NewForbiddenError(c, "Document does not belong to this application")
	}

	url, err := h.documentService.PresignedURL(c.Request().Context(), objectPath)
	if err != nil {
		log.Error().Err(err).Str("object_path", objectPath).Msg("Failed to presign document URL")
		return NewInternalError(c, "Failed to generate document URL")
	}

	return c.JSON(http.StatusOK, DocumentURLResponse{URL: url})
}

// DeleteDocument handles DELETE /api/v1/applications/:id/documents?path=...
func (h *DocumentHandler) DeleteDocument(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	objectPath := c.QueryParam("path")
	if objectPath == "" {
		return NewValidationError(c, "Missing path parameter", []ValidationError{
			{Field: "path", Message: "Object path is required"},
		})
	}
	if !strings.HasPrefix(objectPath, "proofs/"+app.ID.String()+"/") {
		return NewForbiddenError(c, "Document does not belong to this application")
	}

	if err := h.documentService.Delete(c.Request().Context(), objectPath); err != nil {
		log.Error().Err(err).Str("object_path", objectPath).Msg("Failed to delete document")
		return NewInternalError(c, "Failed to delete document")
	}

	log.Info().Str("object_path", objectPath).Msg("Proof document deleted")
	return c.NoContent(http.StatusNoContent)
}
