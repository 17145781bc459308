package portal

import (
	"context"
	"time"
)

// Uploader values for Document.UploadedBy.
const (
	UploadedByUser = "user"
	UploadedByTeam = "team"
)

// Document is the metadata row for an uploaded member file. FileName is the
// object key in the document bucket.
type Document struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"userId" gorm:"type:varchar(64);not null;index"`
	FileName     string    `json:"fileName" gorm:"type:varchar(255);not null"`
	OriginalName string    `json:"originalName" gorm:"type:varchar(255);not null"`
	FileSize     int64     `json:"fileSize" gorm:"not null"`
	MimeType     string    `json:"mimeType" gorm:"type:varchar(255);not null"`
	UploadedBy   string    `json:"uploadedBy" gorm:"type:varchar(16);not null"`
	IsShared     bool      `json:"isShared" gorm:"default:false"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DocumentStore persists document metadata.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d Document) (Document, error)
	// ListDocuments returns userID's documents, newest first.
	ListDocuments(ctx context.Context, userID string) ([]Document, error)
	GetDocument(ctx context.Context, id uint64) (Document, error)
	DeleteDocument(ctx context.Context, id uint64) error
}
