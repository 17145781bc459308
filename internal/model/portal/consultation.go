package portal

import (
	"context"
	"time"
)

// ConsultationStatus tracks a consultation request through follow-up.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationContacted ConsultationStatus = "contacted"
	ConsultationScheduled ConsultationStatus = "scheduled"
	ConsultationCompleted ConsultationStatus = "completed"
)

// Valid reports whether s is a known status.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationPending, ConsultationContacted, ConsultationScheduled, ConsultationCompleted:
		return true
	}
	return false
}

// Consultation is a free-consultation request from the public site.
type Consultation struct {
	ID                 uint64             `json:"id" gorm:"primaryKey;autoIncrement"`
	FirstName          string             `json:"firstName" gorm:"type:varchar(255);not null"`
	LastName           string             `json:"lastName" gorm:"type:varchar(255);not null"`
	Email              string             `json:"email" gorm:"type:varchar(255);not null"`
	Phone              string             `json:"phone" gorm:"type:varchar(64);not null"`
	BestTimeToCall     string             `json:"bestTimeToCall,omitempty" gorm:"type:varchar(255)"`
	CurrentCreditScore string             `json:"currentCreditScore,omitempty" gorm:"type:varchar(64)"`
	PrimaryGoal        string             `json:"primaryGoal,omitempty" gorm:"type:varchar(255)"`
	Timeline           string             `json:"timeline,omitempty" gorm:"type:varchar(255)"`
	NegativeItems      []string           `json:"negativeItems,omitempty" gorm:"type:jsonb;serializer:json"`
	AdditionalComments string             `json:"additionalComments,omitempty" gorm:"type:text"`
	Status             ConsultationStatus `json:"status" gorm:"type:varchar(32);default:pending"`
	CreatedAt          time.Time          `json:"createdAt" gorm:"index"`
}

// ConsultationStore persists consultation requests.
type ConsultationStore interface {
	CreateConsultation(ctx context.Context, c Consultation) (Consultation, error)
	// ListConsultations returns every request, newest first.
	ListConsultations(ctx context.Context) ([]Consultation, error)
	UpdateConsultationStatus(ctx context.Context, id uint64, status ConsultationStatus) error
}
