package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/repository/storage"
)

const (
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB
	MaxImageWidth   = 1600
	JPEGQuality     = 85
	presignedExpiry = 15 * time.Minute
)

var (
	ErrDocumentTooLarge         = errors.New("file too large. Maximum size is 10MB")
	ErrInvalidDocumentFormat    = errors.New("invalid format. Supported: JPEG, PNG, WebP, PDF")
	ErrInvalidImageData         = errors.New("invalid image data")
	ErrDocStorageNotConfigured  = errors.New("document storage not configured")
)

// AllowedExtensions maps extensions to content types
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// DocumentService stores proof-of-payment documents. Image uploads are
// re-encoded as bounded JPEGs so a 12MP receipt photo does not land in
// storage verbatim; PDFs pass through untouched.
type DocumentService struct {
	storage storage.DocumentRepository
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(storage storage.DocumentRepository) *DocumentService {
	return &DocumentService{storage: storage}
}

// IsEnabled indicates whether uploads are supported (storage configured)
func (s *DocumentService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// Upload validates, processes, and stores a proof document, returning its
// metadata. The object path, not a URL, is what installments reference.
func (s *DocumentService) Upload(ctx context.Context, applicationID uuid.UUID, data []byte, filename string) (*domain.ProofDocument, error) {
	if !s.IsEnabled() {
		return nil, ErrDocStorageNotConfigured
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := AllowedExtensions[ext]
	if !ok {
		return nil, ErrInvalidDocumentFormat
	}

	docID := uuid.New()
	storedExt := ext
	body := data

	if contentType != "application/pdf" {
		processed, err := reencodeImage(data)
		if err != nil {
			return nil, err
		}
		body = processed
		contentType = "image/jpeg"
		storedExt = ".jpg"
	}

	objectPath := fmt.Sprintf("proofs/%s/%s%s", applicationID, docID, storedExt)
	if _, err := s.storage.Upload(ctx, objectPath, bytes.NewReader(body), contentType, int64(len(body))); err != nil {
		return nil, fmt.Errorf("failed to upload proof document: %w", err)
	}

	return &domain.ProofDocument{
		ID:            docID,
		ApplicationID: applicationID,
		ObjectPath:    objectPath,
		FileName:      filename,
		ContentType:   contentType,
		SizeBytes:     int64(len(body)),
		UploadedAt:    time.Now().UTC(),
	}, nil
}

// PresignedURL returns a short-lived GET URL for a stored proof document
func (s *DocumentService) PresignedURL(ctx context.Context, objectPath string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrDocStorageNotConfigured
	}
	return s.storage.GeneratePresignedURL(ctx, objectPath, presignedExpiry)
}

// Delete removes a stored proof document
func (s *DocumentService) Delete(ctx context.Context, objectPath string) error {
	if !s.IsEnabled() {
		return ErrDocStorageNotConfigured
	}
	return s.storage.Delete(ctx, objectPath)
}

// reencodeImage decodes an uploaded image, bounds its width, and re-encodes
// it as JPEG
func reencodeImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}

	var processed image.Image = img
	if img.Bounds().Dx() > MaxImageWidth {
		// Resize maintaining aspect ratio
		processed = imaging.Resize(img, MaxImageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// GetContentType returns the content type for a file extension
func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := AllowedExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
