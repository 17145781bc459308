// Package portal holds the member portal records that live next to the chat log.
package portal

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// MembershipTier is the plan a member signs up for.
type MembershipTier string

const (
	TierSingle  MembershipTier = "single"
	TierCouples MembershipTier = "couples"
	TierVIP     MembershipTier = "vip"
)

// Valid reports whether t is a known tier.
func (t MembershipTier) Valid() bool {
	switch t {
	case TierSingle, TierCouples, TierVIP:
		return true
	}
	return false
}

// Store aggregates every portal table.
type Store interface {
	UserStore
	ConsultationStore
	ContactStore
	ApplicationStore
	DocumentStore
	CreditStore
}
