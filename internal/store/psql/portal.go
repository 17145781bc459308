package psql

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tccredit/portal/backend/internal/model/portal"
)

// PortalStore implements portal.Store on the portal tables.
type PortalStore struct {
	db *Database
}

var _ portal.Store = (*PortalStore)(nil)

// NewPortalStore returns a portal.Store backed by db.
func NewPortalStore(db *Database) *PortalStore {
	return &PortalStore{db: db}
}

func (s *PortalStore) conn(ctx context.Context) *gorm.DB {
	return s.db.DB.WithContext(ctx)
}

func (s *PortalStore) GetUser(ctx context.Context, id string) (portal.User, error) {
	var u portal.User
	err := s.conn(ctx).Where("id = ?", id).First(&u).Error
	return u, translate(err)
}

func (s *PortalStore) GetUserByEmail(ctx context.Context, email string) (portal.User, error) {
	var u portal.User
	err := s.conn(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&u).Error
	return u, translate(err)
}

func (s *PortalStore) UpsertUser(ctx context.Context, u portal.User) (portal.User, error) {
	if u.JoinDate.IsZero() {
		u.JoinDate = time.Now().UTC()
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "first_name", "last_name", "membership_tier",
			"membership_status", "approval_status", "role", "password_hash", "updated_at",
		}),
	}).Create(&u).Error
	if err != nil {
		return portal.User{}, translate(err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *PortalStore) CreateConsultation(ctx context.Context, c portal.Consultation) (portal.Consultation, error) {
	if c.Status == "" {
		c.Status = portal.ConsultationPending
	}
	err := s.conn(ctx).Create(&c).Error
	return c, translate(err)
}

func (s *PortalStore) ListConsultations(ctx context.Context) ([]portal.Consultation, error) {
	var out []portal.Consultation
	err := s.conn(ctx).Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, translate(err)
}

func (s *PortalStore) UpdateConsultationStatus(ctx context.Context, id uint64, status portal.ConsultationStatus) error {
	res := s.conn(ctx).Model(&portal.Consultation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return portal.ErrNotFound
	}
	return nil
}

func (s *PortalStore) CreateContact(ctx context.Context, c portal.ContactSubmission) (portal.ContactSubmission, error) {
	if c.Status == "" {
		c.Status = "new"
	}
	err := s.conn(ctx).Create(&c).Error
	return c, translate(err)
}

func (s *PortalStore) ListContacts(ctx context.Context) ([]portal.ContactSubmission, error) {
	var out []portal.ContactSubmission
	err := s.conn(ctx).Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, translate(err)
}

func (s *PortalStore) CreateApplication(ctx context.Context, a portal.Application) (portal.Application, error) {
	if a.Status == "" {
		a.Status = portal.ApplicationPending
	}
	if a.MembershipTier == "" {
		a.MembershipTier = portal.TierSingle
	}
	err := s.conn(ctx).Create(&a).Error
	return a, translate(err)
}

func (s *PortalStore) ListApplications(ctx context.Context) ([]portal.Application, error) {
	var out []portal.Application
	err := s.conn(ctx).Order("submitted_at DESC").Order("id DESC").Find(&out).Error
	return out, translate(err)
}

func (s *PortalStore) ReviewApplication(ctx context.Context, id uint64, r portal.Review) (portal.Application, error) {
	var out portal.Application
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&portal.Application{}).Where("id = ?", id).Updates(map[string]any{
			"status":      r.Status,
			"notes":       r.Notes,
			"reviewed_at": r.At.UTC(),
			"reviewed_by": r.ReviewerID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	return out, translate(err)
}

func (s *PortalStore) CreateDocument(ctx context.Context, d portal.Document) (portal.Document, error) {
	err := s.conn(ctx).Create(&d).Error
	return d, translate(err)
}

func (s *PortalStore) ListDocuments(ctx context.Context, userID string) ([]portal.Document, error) {
	out := make([]portal.Document, 0)
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, translate(err)
}

func (s *PortalStore) GetDocument(ctx context.Context, id uint64) (portal.Document, error) {
	var d portal.Document
	err := s.conn(ctx).Where("id = ?", id).First(&d).Error
	return d, translate(err)
}

func (s *PortalStore) DeleteDocument(ctx context.Context, id uint64) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&portal.Document{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return portal.ErrNotFound
	}
	return nil
}

func (s *PortalStore) CreateCreditProgress(ctx context.Context, p portal.CreditProgress) (portal.CreditProgress, error) {
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	err := s.conn(ctx).Create(&p).Error
	return p, translate(err)
}

func (s *PortalStore) ListCreditProgress(ctx context.Context, userID string, limit int) ([]portal.CreditProgress, error) {
	out := make([]portal.CreditProgress, 0, limit)
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}
