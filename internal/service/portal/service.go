// Package portal implements the member portal workflows around consultations,
// contact requests, membership applications and credit progress.
package portal

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/portal"
)

// ErrValidation wraps every rejected input.
var ErrValidation = errors.New("validation failed")

// latestProgress is how many bureau rows the dashboard shows.
const latestProgress = 3

// Service validates public and admin input before it reaches the store.
type Service struct {
	store  portal.Store
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewService wraps store.
func NewService(store portal.Store) *Service {
	return &Service{
		store:  store,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

// clean strips markup and surrounding space from public form text. The
// sanitizer escapes entities, which are turned back into plain text.
func (s *Service) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return invalid("missing %s", strings.Join(missing, ", "))
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", invalid("invalid email")
	}
	return strings.ToLower(addr.Address), nil
}

// ConsultationRequest is the public consultation form.
type ConsultationRequest struct {
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	BestTimeToCall     string   `json:"bestTimeToCall"`
	CurrentCreditScore string   `json:"currentCreditScore"`
	PrimaryGoal        string   `json:"primaryGoal"`
	Timeline           string   `json:"timeline"`
	NegativeItems      []string `json:"negativeItems"`
	AdditionalComments string   `json:"additionalComments"`
}

// RequestConsultation records a consultation request.
func (s *Service) RequestConsultation(ctx context.Context, req ConsultationRequest) (portal.Consultation, error) {
	c := portal.Consultation{
		FirstName:          s.clean(req.FirstName),
		LastName:           s.clean(req.LastName),
		Phone:              s.clean(req.Phone),
		BestTimeToCall:     s.clean(req.BestTimeToCall),
		CurrentCreditScore: s.clean(req.CurrentCreditScore),
		PrimaryGoal:        s.clean(req.PrimaryGoal),
		Timeline:           s.clean(req.Timeline),
		AdditionalComments: s.clean(req.AdditionalComments),
	}
	if err := requireFields(map[string]string{
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"email":     strings.TrimSpace(req.Email),
		"phone":     c.Phone,
	}); err != nil {
		return portal.Consultation{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return portal.Consultation{}, err
	}
	c.Email = email
	for _, item := range req.NegativeItems {
		if item = s.clean(item); item != "" {
			c.NegativeItems = append(c.NegativeItems, item)
		}
	}

	created, err := s.store.CreateConsultation(ctx, c)
	if err != nil {
		return portal.Consultation{}, fmt.Errorf("create consultation: %w", err)
	}
	logging.L().Info("consultation requested", zap.Uint64("consultation_id", created.ID))
	return created, nil
}

// Consultations lists every request, newest first.
func (s *Service) Consultations(ctx context.Context) ([]portal.Consultation, error) {
	return s.store.ListConsultations(ctx)
}

// SetConsultationStatus moves a request to status.
func (s *Service) SetConsultationStatus(ctx context.Context, id uint64, status portal.ConsultationStatus) error {
	if !status.Valid() {
		return invalid("unknown status %q", status)
	}
	return s.store.UpdateConsultationStatus(ctx, id, status)
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Contact records a contact form submission.
func (s *Service) Contact(ctx context.Context, req ContactRequest) (portal.ContactSubmission, error) {
	c := portal.ContactSubmission{
		Name:    s.clean(req.Name),
		Phone:   s.clean(req.Phone),
		Subject: s.clean(req.Subject),
		Message: s.clean(req.Message),
	}
	if err := requireFields(map[string]string{
		"name":    c.Name,
		"email":   strings.TrimSpace(req.Email),
		"message": c.Message,
	}); err != nil {
		return portal.ContactSubmission{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return portal.ContactSubmission{}, err
	}
	c.Email = email

	created, err := s.store.CreateContact(ctx, c)
	if err != nil {
		return portal.ContactSubmission{}, fmt.Errorf("create contact submission: %w", err)
	}
	return created, nil
}

// Contacts lists every submission, newest first.
func (s *Service) Contacts(ctx context.Context) ([]portal.ContactSubmission, error) {
	return s.store.ListContacts(ctx)
}

// ApplicationRequest is the membership sign-up form.
type ApplicationRequest struct {
	Email          string                `json:"email"`
	FirstName      string                `json:"firstName"`
	LastName       string                `json:"lastName"`
	Phone          string                `json:"phone"`
	MembershipTier portal.MembershipTier `json:"membershipTier"`
}

// Apply records a membership application.
func (s *Service) Apply(ctx context.Context, req ApplicationRequest) (portal.Application, error) {
	a := portal.Application{
		FirstName:      s.clean(req.FirstName),
		LastName:       s.clean(req.LastName),
		Phone:          s.clean(req.Phone),
		MembershipTier: req.MembershipTier,
	}
	if err := requireFields(map[string]string{
		"email":     strings.TrimSpace(req.Email),
		"firstName": a.FirstName,
		"lastName":  a.LastName,
	}); err != nil {
		return portal.Application{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return portal.Application{}, err
	}
	a.Email = email
	if a.MembershipTier == "" {
		a.MembershipTier = portal.TierSingle
	}
	if !a.MembershipTier.Valid() {
		return portal.Application{}, invalid("unknown membership tier %q", a.MembershipTier)
	}

	created, err := s.store.CreateApplication(ctx, a)
	if err != nil {
		return portal.Application{}, fmt.Errorf("create application: %w", err)
	}
	logging.L().Info("membership application submitted",
		zap.Uint64("application_id", created.ID),
		zap.String("tier", string(created.MembershipTier)),
	)
	return created, nil
}

// Applications lists every application, newest first.
func (s *Service) Applications(ctx context.Context) ([]portal.Application, error) {
	return s.store.ListApplications(ctx)
}

// ReviewRequest is an admin decision.
type ReviewRequest struct {
	Status portal.ApplicationStatus `json:"status"`
	Notes  string                   `json:"notes"`
}

// Review approves or rejects an application. An existing account with the
// same email picks up the decision, and approval activates its membership.
func (s *Service) Review(ctx context.Context, id uint64, reviewerID string, req ReviewRequest) (portal.Application, error) {
	if req.Status != portal.ApplicationApproved && req.Status != portal.ApplicationRejected {
		return portal.Application{}, invalid("status must be approved or rejected")
	}

	app, err := s.store.ReviewApplication(ctx, id, portal.Review{
		Status:     req.Status,
		Notes:      strings.TrimSpace(req.Notes),
		ReviewerID: reviewerID,
		At:         s.now(),
	})
	if err != nil {
		return portal.Application{}, err
	}

	user, err := s.store.GetUserByEmail(ctx, app.Email)
	switch {
	case errors.Is(err, portal.ErrNotFound):
	case err != nil:
		return app, fmt.Errorf("load applicant account: %w", err)
	default:
		user.ApprovalStatus = string(app.Status)
		if app.Status == portal.ApplicationApproved {
			user.MembershipStatus = "active"
			user.MembershipTier = app.MembershipTier
		}
		if _, err := s.store.UpsertUser(ctx, user); err != nil {
			return app, fmt.Errorf("update applicant account: %w", err)
		}
	}

	logging.L().Info("membership application reviewed",
		zap.Uint64("application_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.String("reviewer", reviewerID),
	)
	return app, nil
}

// CreditProgress returns the member's latest bureau snapshots.
func (s *Service) CreditProgress(ctx context.Context, userID string) ([]portal.CreditProgress, error) {
	return s.store.ListCreditProgress(ctx, userID, latestProgress)
}

// ProgressRequest records a bureau snapshot for a member.
type ProgressRequest struct {
	UserID         string        `json:"userId"`
	Bureau         portal.Bureau `json:"bureau"`
	Score          *int          `json:"score"`
	PreviousScore  *int          `json:"previousScore"`
	ItemsRemoved   int           `json:"itemsRemoved"`
	DisputesActive int           `json:"disputesActive"`
}

// RecordProgress stores a bureau snapshot.
func (s *Service) RecordProgress(ctx context.Context, req ProgressRequest) (portal.CreditProgress, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return portal.CreditProgress{}, invalid("missing userId")
	}
	bureau := portal.Bureau(strings.ToLower(string(req.Bureau)))
	if !bureau.Valid() {
		return portal.CreditProgress{}, invalid("unknown bureau %q", req.Bureau)
	}
	for name, score := range map[string]*int{"score": req.Score, "previousScore": req.PreviousScore} {
		if score != nil && (*score < 300 || *score > 850) {
			return portal.CreditProgress{}, invalid("%s must be between 300 and 850", name)
		}
	}
	if req.ItemsRemoved < 0 || req.DisputesActive < 0 {
		return portal.CreditProgress{}, invalid("counts cannot be negative")
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return portal.CreditProgress{}, err
	}

	return s.store.CreateCreditProgress(ctx, portal.CreditProgress{
		UserID:         req.UserID,
		Bureau:         bureau,
		Score:          req.Score,
		PreviousScore:  req.PreviousScore,
		ItemsRemoved:   req.ItemsRemoved,
		DisputesActive: req.DisputesActive,
		RecordedAt:     s.now().UTC(),
	})
}
