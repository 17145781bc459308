package portal

import (
	"context"
	"time"
)

// Bureau is a credit reporting agency.
type Bureau string

const (
	BureauExperian   Bureau = "experian"
	BureauEquifax    Bureau = "equifax"
	BureauTransUnion Bureau = "transunion"
)

// Valid reports whether b is one of the three bureaus.
func (b Bureau) Valid() bool {
	switch b {
	case BureauExperian, BureauEquifax, BureauTransUnion:
		return true
	}
	return false
}

// CreditProgress is one bureau snapshot for a member.
type CreditProgress struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"userId" gorm:"type:varchar(64);not null;index:idx_credit_user_recorded,priority:1"`
	Bureau         Bureau    `json:"bureau" gorm:"type:varchar(16);not null"`
	Score          *int      `json:"score"`
	PreviousScore  *int      `json:"previousScore"`
	ItemsRemoved   int       `json:"itemsRemoved" gorm:"default:0"`
	DisputesActive int       `json:"disputesActive" gorm:"default:0"`
	RecordedAt     time.Time `json:"recordedAt" gorm:"index:idx_credit_user_recorded,priority:2"`
}

// TableName matches the portal schema.
func (CreditProgress) TableName() string {
	return "credit_progress"
}

// CreditStore persists bureau snapshots.
type CreditStore interface {
	CreateCreditProgress(ctx context.Context, p CreditProgress) (CreditProgress, error)
	// ListCreditProgress returns userID's snapshots newest first, at most limit.
	ListCreditProgress(ctx context.Context, userID string, limit int) ([]CreditProgress, error)
}
