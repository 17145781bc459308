package portal

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory for development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]User
	consultations []Consultation
	contacts      []ContactSubmission
	applications  []Application
	documents     []Document
	credit        []CreditProgress

	nextID uint64
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		now:   time.Now,
	}
}

func (s *MemoryStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) UpsertUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.users {
		if id != u.ID && u.Email != "" && strings.EqualFold(other.Email, u.Email) {
			return User{}, ErrDuplicate
		}
	}

	now := s.now().UTC()
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
		u.JoinDate = existing.JoinDate
	} else {
		u.CreatedAt = now
		if u.JoinDate.IsZero() {
			u.JoinDate = now
		}
	}
	if u.MembershipStatus == "" {
		u.MembershipStatus = "inactive"
	}
	if u.ApprovalStatus == "" {
		u.ApprovalStatus = string(ApplicationPending)
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) CreateConsultation(_ context.Context, c Consultation) (Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	c.CreatedAt = s.now().UTC()
	if c.Status == "" {
		c.Status = ConsultationPending
	}
	s.consultations = append(s.consultations, c)
	return c, nil
}

func (s *MemoryStore) ListConsultations(_ context.Context) ([]Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.consultations), nil
}

func (s *MemoryStore) UpdateConsultationStatus(_ context.Context, id uint64, status ConsultationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.consultations {
		if s.consultations[i].ID == id {
			s.consultations[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateContact(_ context.Context, c ContactSubmission) (ContactSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	c.CreatedAt = s.now().UTC()
	if c.Status == "" {
		c.Status = "new"
	}
	s.contacts = append(s.contacts, c)
	return c, nil
}

func (s *MemoryStore) ListContacts(_ context.Context) ([]ContactSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.contacts), nil
}

func (s *MemoryStore) CreateApplication(_ context.Context, a Application) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.applications {
		if strings.EqualFold(other.Email, a.Email) {
			return Application{}, ErrDuplicate
		}
	}

	a.ID = s.id()
	a.SubmittedAt = s.now().UTC()
	if a.Status == "" {
		a.Status = ApplicationPending
	}
	if a.MembershipTier == "" {
		a.MembershipTier = TierSingle
	}
	s.applications = append(s.applications, a)
	return a, nil
}

func (s *MemoryStore) ListApplications(_ context.Context) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.applications), nil
}

func (s *MemoryStore) ReviewApplication(_ context.Context, id uint64, r Review) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.applications {
		a := &s.applications[i]
		if a.ID != id {
			continue
		}
		at := r.At.UTC()
		reviewer := r.ReviewerID
		a.Status = r.Status
		a.Notes = r.Notes
		a.ReviewedAt = &at
		a.ReviewedBy = &reviewer
		return *a, nil
	}
	return Application{}, ErrNotFound
}

func (s *MemoryStore) CreateDocument(_ context.Context, d Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.id()
	d.CreatedAt = s.now().UTC()
	s.documents = append(s.documents, d)
	return d, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, userID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0)
	for i := len(s.documents) - 1; i >= 0; i-- {
		if s.documents[i].UserID == userID {
			out = append(out, s.documents[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id uint64) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.documents {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.documents {
		if d.ID == id {
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateCreditProgress(_ context.Context, p CreditProgress) (CreditProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	if p.RecordedAt.IsZero() {
		p.RecordedAt = s.now().UTC()
	}
	s.credit = append(s.credit, p)
	return p, nil
}

func (s *MemoryStore) ListCreditProgress(_ context.Context, userID string, limit int) ([]CreditProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CreditProgress, 0, limit)
	for i := len(s.credit) - 1; i >= 0 && len(out) < limit; i-- {
		if s.credit[i].UserID == userID {
			out = append(out, s.credit[i])
		}
	}
	return out, nil
}

func newestFirst[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
