package portal

import (
	"context"
	"time"
)

// ContactSubmission is a message left through the public contact form.
type ContactSubmission struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(64)"`
	Subject   string    `json:"subject,omitempty" gorm:"type:varchar(255)"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Status    string    `json:"status" gorm:"type:varchar(32);default:new"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// ContactStore persists contact submissions.
type ContactStore interface {
	CreateContact(ctx context.Context, c ContactSubmission) (ContactSubmission, error)
	// ListContacts returns every submission, newest first.
	ListContacts(ctx context.Context) ([]ContactSubmission, error)
}
