package portal

import (
	"context"
	"time"
)

// ApplicationStatus is the review state of a membership application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a membership sign-up awaiting admin review.
type Application struct {
	ID             uint64            `json:"id" gorm:"primaryKey;autoIncrement"`
	Email          string            `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	FirstName      string            `json:"firstName" gorm:"type:varchar(255);not null"`
	LastName       string            `json:"lastName" gorm:"type:varchar(255);not null"`
	Phone          string            `json:"phone,omitempty" gorm:"type:varchar(64)"`
	MembershipTier MembershipTier    `json:"membershipTier" gorm:"type:varchar(32);default:single"`
	Status         ApplicationStatus `json:"status" gorm:"type:varchar(32);default:pending"`
	Notes          string            `json:"notes,omitempty" gorm:"type:text"`
	SubmittedAt    time.Time         `json:"submittedAt" gorm:"autoCreateTime;index"`
	ReviewedAt     *time.Time        `json:"reviewedAt,omitempty"`
	ReviewedBy     *string           `json:"reviewedBy,omitempty" gorm:"type:varchar(64)"`
}

// TableName matches the portal schema.
func (Application) TableName() string {
	return "user_applications"
}

// Review is an admin decision on an application.
type Review struct {
	Status     ApplicationStatus
	Notes      string
	ReviewerID string
	At         time.Time
}

// ApplicationStore persists membership applications.
type ApplicationStore interface {
	// CreateApplication fails with ErrDuplicate when the email already applied.
	CreateApplication(ctx context.Context, a Application) (Application, error)
	// ListApplications returns every application, newest first.
	ListApplications(ctx context.Context) ([]Application, error)
	ReviewApplication(ctx context.Context, id uint64, r Review) (Application, error)
}
