package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

// ProofDocument is the stored metadata for an uploaded proof-of-payment
// (bank slip, cheque scan, receipt photo). The binary lives in object
// storage; installments reference documents by object path.
type ProofDocument struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"applicationId"`
	ObjectPath    string    `json:"objectPath"`
	FileName      string    `json:"fileName"`
	ContentType   string    `json:"contentType"`
	SizeBytes     int64     `json:"sizeBytes"`
	UploadedAt    time.Time `json:"uploadedAt"`
}
