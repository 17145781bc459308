package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccredit/portal/backend/internal/model/portal"
)

func newTestService() (*Service, *portal.MemoryStore) {
	store := portal.NewMemoryStore()
	return NewService(store), store
}

func intPtr(v int) *int { return &v }

func TestRequestConsultation(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.RequestConsultation(context.Background(), ConsultationRequest{
		FirstName:          " Ana ",
		LastName:           "Lopez",
		Email:              "Ana@Example.com",
		Phone:              "555-0100",
		NegativeItems:      []string{"<b>late payments</b>", "  "},
		AdditionalComments: `<script>alert(1)</script>call after 5`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.FirstName)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, []string{"late payments"}, c.NegativeItems)
	assert.Equal(t, "call after 5", c.AdditionalComments)
	assert.Equal(t, portal.ConsultationPending, c.Status)
}

func TestRequestConsultationValidation(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.RequestConsultation(context.Background(), ConsultationRequest{FirstName: "Ana", Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "lastName, phone")

	_, err = svc.RequestConsultation(context.Background(), ConsultationRequest{FirstName: "A", LastName: "B", Email: "nope", Phone: "1"})
	require.ErrorIs(t, err, ErrValidation)

	list, err := store.ListConsultations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetConsultationStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.RequestConsultation(ctx, ConsultationRequest{FirstName: "A", LastName: "B", Email: "a@b.co", Phone: "1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetConsultationStatus(ctx, c.ID, "lost"), ErrValidation)
	assert.ErrorIs(t, svc.SetConsultationStatus(ctx, c.ID+1, portal.ConsultationContacted), portal.ErrNotFound)
	require.NoError(t, svc.SetConsultationStatus(ctx, c.ID, portal.ConsultationContacted))

	list, err := svc.Consultations(ctx)
	require.NoError(t, err)
	assert.Equal(t, portal.ConsultationContacted, list[0].Status)
}

func TestContact(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Contact(context.Background(), ContactRequest{Name: "Ana", Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrValidation)

	c, err := svc.Contact(context.Background(), ContactRequest{Name: "Ana", Email: "ana@example.com", Message: "Question about billing"})
	require.NoError(t, err)
	assert.Equal(t, "new", c.Status)

	list, err := svc.Contacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApplyAndReview(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	_, err := store.UpsertUser(ctx, portal.User{ID: "u1", Email: "ana@example.com"})
	require.NoError(t, err)

	app, err := svc.Apply(ctx, ApplicationRequest{Email: "Ana@example.com", FirstName: "Ana", LastName: "Lopez", MembershipTier: portal.TierVIP})
	require.NoError(t, err)
	assert.Equal(t, portal.ApplicationPending, app.Status)

	_, err = svc.Apply(ctx, ApplicationRequest{Email: "ana@example.com", FirstName: "Ana", LastName: "Lopez"})
	assert.ErrorIs(t, err, portal.ErrDuplicate)

	_, err = svc.Review(ctx, app.ID, "admin-1", ReviewRequest{Status: portal.ApplicationPending})
	assert.ErrorIs(t, err, ErrValidation)

	reviewed, err := svc.Review(ctx, app.ID, "admin-1", ReviewRequest{Status: portal.ApplicationApproved, Notes: " welcome "})
	require.NoError(t, err)
	assert.Equal(t, "welcome", reviewed.Notes)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.Equal(t, svc.now(), *reviewed.ReviewedAt)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "approved", user.ApprovalStatus)
	assert.Equal(t, "active", user.MembershipStatus)
	assert.Equal(t, portal.TierVIP, user.MembershipTier)
}

func TestApplyRejectsUnknownTier(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Apply(context.Background(), ApplicationRequest{Email: "a@b.co", FirstName: "A", LastName: "B", MembershipTier: "gold"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecordProgress(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.RecordProgress(ctx, ProgressRequest{UserID: "u1", Bureau: portal.BureauEquifax})
	assert.ErrorIs(t, err, portal.ErrNotFound)

	_, err = store.UpsertUser(ctx, portal.User{ID: "u1", Email: "a@b.co"})
	require.NoError(t, err)

	_, err = svc.RecordProgress(ctx, ProgressRequest{UserID: "u1", Bureau: "innovis"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.RecordProgress(ctx, ProgressRequest{UserID: "u1", Bureau: portal.BureauEquifax, Score: intPtr(900)})
	assert.ErrorIs(t, err, ErrValidation)

	for _, b := range []portal.Bureau{"Experian", portal.BureauEquifax, portal.BureauTransUnion, portal.BureauEquifax} {
		_, err := svc.RecordProgress(ctx, ProgressRequest{UserID: "u1", Bureau: b, Score: intPtr(640)})
		require.NoError(t, err)
	}

	latest, err := svc.CreditProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, portal.BureauEquifax, latest[0].Bureau)
}

func TestCleanKeepsPunctuation(t *testing.T) {
	svc, _ := newTestService()
	assert.Equal(t, "O'Brien & Sons", svc.clean(" <i>O'Brien</i> & Sons "))
}
