package portal

import (
	"context"
	"time"
)

// Roles carried in the auth token.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User is a portal member or staff account.
type User struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Email            string         `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	FirstName        string         `json:"firstName" gorm:"type:varchar(255)"`
	LastName         string         `json:"lastName" gorm:"type:varchar(255)"`
	MembershipTier   MembershipTier `json:"membershipTier,omitempty" gorm:"type:varchar(32)"`
	MembershipStatus string         `json:"membershipStatus" gorm:"type:varchar(32);default:inactive"`
	ApprovalStatus   string         `json:"approvalStatus" gorm:"type:varchar(32);default:pending"`
	Role             string         `json:"role" gorm:"type:varchar(32);default:member"`
	PasswordHash     string         `json:"-" gorm:"type:varchar(255)"`
	JoinDate         time.Time      `json:"joinDate"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// IsAdmin reports whether u may use the review endpoints.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStore persists accounts.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// UpsertUser inserts u or overwrites the profile fields of the row with the same ID.
	UpsertUser(ctx context.Context, u User) (User, error)
}
