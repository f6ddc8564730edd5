package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/email"
	"regulie/therapy-app/internal/oauth"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]domain.User{}}
}

func (r *fakeUserRepo) add(u domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.ID] = u
	return &u
}

func (r *fakeUserRepo) get(id primitive.ObjectID) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeUserRepo) find(match func(u domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) update(id primitive.ObjectID, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if _, err := r.find(func(u domain.User) bool { return u.Email == user.Email }); err == nil {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	r.add(*user)
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	out := []domain.User{}
	for _, id := range ids {
		if u, err := r.find(func(u domain.User) bool { return u.ID == id }); err == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.GoogleID != "" && u.GoogleID == googleID })
}

func (r *fakeUserRepo) GetByStripeCustomerID(_ context.Context, customerID string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Subscription.CustomerID == customerID })
}

func (r *fakeUserRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.PasswordReset != nil && u.PasswordReset.TokenHash == tokenHash })
}

func (r *fakeUserRepo) SetGoogleID(_ context.Context, id primitive.ObjectID, googleID string) error {
	return r.update(id, func(u *domain.User) { u.GoogleID = googleID })
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return r.update(id, func(u *domain.User) { u.PasswordHash = hash; u.PasswordReset = nil })
}

func (r *fakeUserRepo) SetPasswordReset(_ context.Context, id primitive.ObjectID, reset *domain.PasswordReset) error {
	return r.update(id, func(u *domain.User) { u.PasswordReset = reset })
}

func (r *fakeUserRepo) UpdateMFA(_ context.Context, id primitive.ObjectID, mfa domain.MFASettings) error {
	return r.update(id, func(u *domain.User) { u.MFA = mfa })
}

func (r *fakeUserRepo) SetStripeCustomer(_ context.Context, id primitive.ObjectID, customerID string) error {
	return r.update(id, func(u *domain.User) { u.Subscription.CustomerID = customerID })
}

func (r *fakeUserRepo) UpdateSubscription(_ context.Context, id primitive.ObjectID, tier domain.Tier, sub domain.Subscription) error {
	return r.update(id, func(u *domain.User) { u.Tier = tier; u.Subscription = sub })
}

func (r *fakeUserRepo) ResetMonthlyUsage(_ context.Context, id primitive.ObjectID, periodStart time.Time) error {
	_ = r.update(id, func(u *domain.User) {
		if u.Usage.PeriodStart.Before(periodStart) {
			u.Usage.SessionsThisMonth = 0
			u.Usage.ReportsThisMonth = 0
			u.Usage.PeriodStart = periodStart
		}
	})
	return nil
}

func (r *fakeUserRepo) IncrementUsage(_ context.Context, id primitive.ObjectID, resource domain.Resource, limit int) (bool, error) {
	ok := false
	err := r.update(id, func(u *domain.User) {
		counter := usageCounter(&u.Usage, resource)
		if limit < 0 || *counter < limit {
			*counter++
			ok = true
		}
	})
	return ok, err
}

func (r *fakeUserRepo) DecrementUsage(_ context.Context, id primitive.ObjectID, resource domain.Resource) error {
	return r.update(id, func(u *domain.User) {
		if counter := usageCounter(&u.Usage, resource); *counter > 0 {
			*counter--
		}
	})
}

func usageCounter(u *domain.Usage, resource domain.Resource) *int {
	switch resource {
	case domain.ResourceClients:
		return &u.ClientCount
	case domain.ResourceSessions:
		return &u.SessionsThisMonth
	default:
		return &u.ReportsThisMonth
	}
}

// --- clients ---

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[primitive.ObjectID]domain.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: map[primitive.ObjectID]domain.Client{}}
}

func cloneClient(c domain.Client) domain.Client {
	c.Goals = append([]domain.Goal(nil), c.Goals...)
	c.ParentIDs = append([]primitive.ObjectID(nil), c.ParentIDs...)
	return c
}

func (r *fakeClientRepo) get(id primitive.ObjectID) (domain.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	return cloneClient(c), ok
}

func (r *fakeClientRepo) mutate(id primitive.ObjectID, match func(c *domain.Client) bool, fn func(c *domain.Client)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || (match != nil && !match(&c)) {
		return repository.ErrNotFound
	}
	c = cloneClient(c)
	fn(&c)
	r.clients[id] = c
	return nil
}

func owned(therapistID primitive.ObjectID) func(c *domain.Client) bool {
	return func(c *domain.Client) bool { return c.TherapistID == therapistID }
}

func (r *fakeClientRepo) Create(_ context.Context, client *domain.Client) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client.ID = primitive.NewObjectID()
	if client.Status == "" {
		client.Status = domain.ClientActive
	}
	r.clients[client.ID] = cloneClient(*client)
	return client.ID, nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Client, error) {
	c, ok := r.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *fakeClientRepo) GetOwned(_ context.Context, id, therapistID primitive.ObjectID) (*domain.Client, error) {
	c, ok := r.get(id)
	if !ok || c.TherapistID != therapistID {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *fakeClientRepo) List(_ context.Context, f repository.ClientFilter) ([]domain.Client, int64, error) {
	r.mu.Lock()
	var matched []domain.Client
	for _, c := range r.clients {
		if !f.TherapistID.IsZero() && c.TherapistID != f.TherapistID {
			continue
		}
		if !f.ParentID.IsZero() && !c.HasParent(f.ParentID) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.FullName()), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, cloneClient(c))
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].LastName < matched[j].LastName })
	total := int64(len(matched))
	start := int(f.Page.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *fakeClientRepo) Update(_ context.Context, client *domain.Client) error {
	return r.mutate(client.ID, owned(client.TherapistID), func(c *domain.Client) {
		c.FirstName, c.LastName = client.FirstName, client.LastName
		c.DateOfBirth, c.Diagnosis, c.Notes, c.Status = client.DateOfBirth, client.Diagnosis, client.Notes, client.Status
	})
}

func (r *fakeClientRepo) Delete(_ context.Context, id, therapistID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.TherapistID != therapistID {
		return repository.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

func (r *fakeClientRepo) AddGoal(_ context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error {
	return r.mutate(clientID, owned(therapistID), func(c *domain.Client) { c.Goals = append(c.Goals, goal) })
}

func (r *fakeClientRepo) UpdateGoal(_ context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error {
	return r.mutate(clientID, func(c *domain.Client) bool {
		_, ok := c.Goal(goal.ID)
		return c.TherapistID == therapistID && ok
	}, func(c *domain.Client) {
		g, _ := c.Goal(goal.ID)
		*g = goal
	})
}

func (r *fakeClientRepo) DeleteGoal(_ context.Context, clientID, therapistID, goalID primitive.ObjectID) error {
	return r.mutate(clientID, func(c *domain.Client) bool {
		_, ok := c.Goal(goalID)
		return c.TherapistID == therapistID && ok
	}, func(c *domain.Client) {
		kept := c.Goals[:0]
		for _, g := range c.Goals {
			if g.ID != goalID {
				kept = append(kept, g)
			}
		}
		c.Goals = kept
	})
}

func (r *fakeClientRepo) SetGoalProgress(_ context.Context, clientID, goalID primitive.ObjectID, progress int, status domain.GoalStatus) error {
	return r.mutate(clientID, func(c *domain.Client) bool {
		_, ok := c.Goal(goalID)
		return ok
	}, func(c *domain.Client) {
		g, _ := c.Goal(goalID)
		g.Progress, g.Status = progress, status
	})
}

func (r *fakeClientRepo) AddParent(_ context.Context, clientID, parentID primitive.ObjectID) error {
	return r.mutate(clientID, nil, func(c *domain.Client) {
		if !c.HasParent(parentID) {
			c.ParentIDs = append(c.ParentIDs, parentID)
		}
	})
}

func (r *fakeClientRepo) RemoveParent(_ context.Context, clientID, therapistID, parentID primitive.ObjectID) error {
	return r.mutate(clientID, func(c *domain.Client) bool {
		return c.TherapistID == therapistID && c.HasParent(parentID)
	}, func(c *domain.Client) {
		kept := c.ParentIDs[:0]
		for _, id := range c.ParentIDs {
			if id != parentID {
				kept = append(kept, id)
			}
		}
		c.ParentIDs = kept
	})
}

// --- sessions ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[primitive.ObjectID]domain.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *domain.Session) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = primitive.NewObjectID()
	r.sessions[s.ID] = *s
	return s.ID, nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.MediaIDs = append([]primitive.ObjectID(nil), s.MediaIDs...)
	return &s, nil
}

func (r *fakeSessionRepo) List(_ context.Context, f repository.SessionFilter) ([]domain.Session, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Session
	for _, s := range r.sessions {
		if (!f.TherapistID.IsZero() && s.TherapistID != f.TherapistID) ||
			(!f.ClientID.IsZero() && s.ClientID != f.ClientID) ||
			(f.SharedOnly && !s.SharedWithParents) ||
			(f.From != nil && s.Date.Before(*f.From)) ||
			(f.To != nil && s.Date.After(*f.To)) {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	total := int64(len(matched))
	start := int(f.Page.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID]; !ok || cur.TherapistID != s.TherapistID {
		return repository.ErrNotFound
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id, therapistID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[id]; !ok || cur.TherapistID != therapistID {
		return repository.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByClientID(_ context.Context, clientID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ClientID == clientID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) AddMedia(_ context.Context, sessionID, mediaID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	s.MediaIDs = append(append([]primitive.ObjectID(nil), s.MediaIDs...), mediaID)
	r.sessions[sessionID] = s
	return nil
}

func (r *fakeSessionRepo) RemoveMedia(_ context.Context, sessionID, mediaID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	var kept []primitive.ObjectID
	for _, id := range s.MediaIDs {
		if id != mediaID {
			kept = append(kept, id)
		}
	}
	s.MediaIDs = kept
	r.sessions[sessionID] = s
	return nil
}

// --- templates ---

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[primitive.ObjectID]domain.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[primitive.ObjectID]domain.Template{}}
}

func (r *fakeTemplateRepo) nameTaken(t *domain.Template) bool {
	for _, cur := range r.templates {
		if cur.ID != t.ID && cur.TherapistID == t.TherapistID && cur.Name == t.Name {
			return true
		}
	}
	return false
}

func (r *fakeTemplateRepo) Create(_ context.Context, t *domain.Template) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(t) {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	t.ID = primitive.NewObjectID()
	r.templates[t.ID] = *t
	return t.ID, nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *fakeTemplateRepo) GetByTherapistID(_ context.Context, therapistID primitive.ObjectID) ([]domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Template{}
	for _, t := range r.templates {
		if t.TherapistID == therapistID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeTemplateRepo) Update(_ context.Context, t *domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.templates[t.ID]; !ok || cur.TherapistID != t.TherapistID {
		return repository.ErrNotFound
	}
	if r.nameTaken(t) {
		return repository.ErrDuplicate
	}
	r.templates[t.ID] = *t
	return nil
}

func (r *fakeTemplateRepo) Delete(_ context.Context, id, therapistID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.templates[id]; !ok || cur.TherapistID != therapistID {
		return repository.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

// --- access requests ---

type fakeAccessRequestRepo struct {
	mu       sync.Mutex
	requests map[primitive.ObjectID]domain.AccessRequest
	// staleExists makes ExistsPending miss, as when two inserts race.
	staleExists bool
}

func newFakeAccessRequestRepo() *fakeAccessRequestRepo {
	return &fakeAccessRequestRepo{requests: map[primitive.ObjectID]domain.AccessRequest{}}
}

func (r *fakeAccessRequestRepo) Create(_ context.Context, req *domain.AccessRequest) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.Status == domain.AccessPending {
		for _, existing := range r.requests {
			if existing.Status == domain.AccessPending && existing.ParentID == req.ParentID &&
				existing.TherapistID == req.TherapistID && existing.ChildName == req.ChildName {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	req.ID = primitive.NewObjectID()
	r.requests[req.ID] = *req
	return req.ID, nil
}

func (r *fakeAccessRequestRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *fakeAccessRequestRepo) filter(match func(domain.AccessRequest) bool) []domain.AccessRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.AccessRequest{}
	for _, req := range r.requests {
		if match(req) {
			out = append(out, req)
		}
	}
	return out
}

func (r *fakeAccessRequestRepo) GetByParentID(_ context.Context, parentID primitive.ObjectID) ([]domain.AccessRequest, error) {
	return r.filter(func(req domain.AccessRequest) bool { return req.ParentID == parentID }), nil
}

func (r *fakeAccessRequestRepo) GetByTherapistID(_ context.Context, therapistID primitive.ObjectID, status domain.AccessRequestStatus) ([]domain.AccessRequest, error) {
	return r.filter(func(req domain.AccessRequest) bool {
		return req.TherapistID == therapistID && (status == "" || req.Status == status)
	}), nil
}

func (r *fakeAccessRequestRepo) ExistsPending(_ context.Context, parentID, therapistID primitive.ObjectID, childName string) (bool, error) {
	if r.staleExists {
		return false, nil
	}
	found := r.filter(func(req domain.AccessRequest) bool {
		return req.ParentID == parentID && req.TherapistID == therapistID &&
			req.Status == domain.AccessPending && strings.EqualFold(req.ChildName, childName)
	})
	return len(found) > 0, nil
}

func (r *fakeAccessRequestRepo) Respond(_ context.Context, id primitive.ObjectID, status domain.AccessRequestStatus, clientID *primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != domain.AccessPending {
		return repository.ErrConflict
	}
	req.Status, req.ClientID, req.RespondedAt = status, clientID, &at
	r.requests[id] = req
	return nil
}

func (r *fakeAccessRequestRepo) DeletePending(_ context.Context, id, parentID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.ParentID != parentID || req.Status != domain.AccessPending {
		return repository.ErrNotFound
	}
	delete(r.requests, id)
	return nil
}

// --- media ---

type fakeMediaRepo struct {
	mu    sync.Mutex
	media map[primitive.ObjectID]domain.Media
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{media: map[primitive.ObjectID]domain.Media{}}
}

func (r *fakeMediaRepo) Create(_ context.Context, m *domain.Media) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.media {
		if cur.ObjectKey == m.ObjectKey {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	m.ID = primitive.NewObjectID()
	r.media[m.ID] = *m
	return m.ID, nil
}

func (r *fakeMediaRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.media[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *fakeMediaRepo) list(match func(domain.Media) bool) []domain.Media {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Media{}
	for _, m := range r.media {
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakeMediaRepo) GetBySessionID(_ context.Context, sessionID primitive.ObjectID) ([]domain.Media, error) {
	return r.list(func(m domain.Media) bool { return m.SessionID == sessionID }), nil
}

func (r *fakeMediaRepo) GetByClientID(_ context.Context, clientID primitive.ObjectID) ([]domain.Media, error) {
	return r.list(func(m domain.Media) bool { return m.ClientID == clientID }), nil
}

func (r *fakeMediaRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.media[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.media, id)
	return nil
}

func (r *fakeMediaRepo) DeleteByClientID(_ context.Context, clientID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.media {
		if m.ClientID == clientID {
			delete(r.media, id)
			n++
		}
	}
	return n, nil
}

// --- external services ---

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]storage.ObjectMetadata
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]storage.ObjectMetadata{}}
}

func (f *fakeStorage) put(key string, size int64, contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storage.ObjectMetadata{Size: size, ContentType: contentType}
}

func (f *fakeStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://storage.test/upload/" + key, nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/download/" + key, nil
}

func (f *fakeStorage) GetObjectMetadata(_ context.Context, key string) (*storage.ObjectMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &meta, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return email.Message{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeGoogle struct {
	identity *oauth.GoogleIdentity
	err      error
}

func (g *fakeGoogle) Verify(context.Context, string) (*oauth.GoogleIdentity, error) {
	return g.identity, g.err
}

type fakeGateway struct {
	customers     int
	lastCheckout  billing.CheckoutParams
	webhookEvent  *billing.Event
	webhookErr    error
	checkoutCalls int
}

func (g *fakeGateway) CreateCustomer(context.Context, string, string, string) (string, error) {
	g.customers++
	return "cus_test", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (string, error) {
	g.checkoutCalls++
	g.lastCheckout = p
	return "https://checkout.test/" + p.Tier, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://portal.test/" + customerID, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*billing.Event, error) {
	return g.webhookEvent, g.webhookErr
}
