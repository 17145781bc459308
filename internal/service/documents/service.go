// Package documents stores member uploads in object storage and tracks them in the portal tables.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/portal"
)

var (
	ErrEmptyUpload = errors.New("no file uploaded")
	ErrTooLarge    = errors.New("file exceeds upload limit")
)

// Upload describes an incoming file.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service coordinates object storage and document rows.
type Service struct {
	objects  ObjectStore
	docs     portal.DocumentStore
	maxBytes int64
}

// NewService returns a Service accepting files up to maxBytes.
func NewService(objects ObjectStore, docs portal.DocumentStore, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Service{objects: objects, docs: docs, maxBytes: maxBytes}
}

// MaxBytes is the upload limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores up.Body for userID and records it.
func (s *Service) Upload(ctx context.Context, userID string, up Upload) (portal.Document, error) {
	if up.Body == nil || up.Size <= 0 {
		return portal.Document{}, ErrEmptyUpload
	}
	if up.Size > s.maxBytes {
		return portal.Document{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, up.Size, s.maxBytes)
	}

	name := path.Base(strings.ReplaceAll(up.Name, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload"
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := path.Join(userID, uuid.NewString()+strings.ToLower(path.Ext(name)))

	if err := s.objects.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
		return portal.Document{}, err
	}

	doc, err := s.docs.CreateDocument(ctx, portal.Document{
		UserID:       userID,
		FileName:     key,
		OriginalName: name,
		FileSize:     up.Size,
		MimeType:     contentType,
		UploadedBy:   portal.UploadedByUser,
	})
	if err != nil {
		if rmErr := s.objects.Remove(ctx, key); rmErr != nil {
			logging.L().Warn("orphaned document object", zap.String("key", key), zap.Error(rmErr))
		}
		return portal.Document{}, fmt.Errorf("record document: %w", err)
	}

	logging.L().Info("document uploaded",
		zap.String("user_id", userID),
		zap.Uint64("document_id", doc.ID),
		zap.Int64("size", doc.FileSize),
	)
	return doc, nil
}

// List returns userID's documents, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]portal.Document, error) {
	return s.docs.ListDocuments(ctx, userID)
}

// Open returns the document and its bytes. Documents owned by someone else
// are reported as portal.ErrNotFound.
func (s *Service) Open(ctx context.Context, userID string, id uint64) (portal.Document, io.ReadCloser, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return portal.Document{}, nil, err
	}
	if doc.UserID != userID {
		return portal.Document{}, nil, portal.ErrNotFound
	}

	body, err := s.objects.Get(ctx, doc.FileName)
	if errors.Is(err, ErrObjectNotFound) {
		return portal.Document{}, nil, fmt.Errorf("%w: file missing from storage", portal.ErrNotFound)
	}
	if err != nil {
		return portal.Document{}, nil, err
	}
	return doc, body, nil
}

// Delete removes userID's document and its stored object. Documents owned by
// someone else are reported as portal.ErrNotFound.
func (s *Service) Delete(ctx context.Context, userID string, id uint64) error {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return portal.ErrNotFound
	}

	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.objects.Remove(ctx, doc.FileName); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logging.L().Warn("orphaned document object", zap.String("key", doc.FileName), zap.Error(err))
	}

	logging.L().Info("document deleted", zap.String("user_id", userID), zap.Uint64("document_id", id))
	return nil
}
