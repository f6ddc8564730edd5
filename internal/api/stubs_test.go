package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Each stub embeds the service interface so only the methods a test needs are
// implemented; calling anything else panics on the nil embedded value.

type stubAuth struct {
	service.AuthService
	registerErr error
	loginResult *service.LoginResult
	loginErr    error
	user        *domain.User
}

func (s *stubAuth) Register(_ context.Context, name, email, _ string, role domain.Role) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &domain.User{ID: primitive.NewObjectID(), Name: name, Email: email, Role: role, Tier: domain.TierFree}, nil
}

func (s *stubAuth) Login(context.Context, string, string) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuth) GetUser(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, service.ErrUserNotFound
	}
	return s.user, nil
}

type stubClients struct {
	service.ClientService
	lastFilter repository.ClientFilter
	createErr  error
	getErr     error
	client     *domain.Client
}

func (s *stubClients) List(_ context.Context, filter repository.ClientFilter) (*service.ClientPage, error) {
	s.lastFilter = filter
	return &service.ClientPage{Items: []domain.Client{}, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}

func (s *stubClients) Create(_ context.Context, therapistID primitive.ObjectID, in service.ClientInput) (*domain.Client, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Client{ID: primitive.NewObjectID(), TherapistID: therapistID, FirstName: in.FirstName, Status: domain.ClientActive}, nil
}

func (s *stubClients) Get(context.Context, primitive.ObjectID, primitive.ObjectID) (*domain.Client, error) {
	return s.client, s.getErr
}

type stubParents struct {
	service.ParentService
	client *domain.Client
}

func (s *stubParents) GetClient(_ context.Context, parentID, _ primitive.ObjectID) (*domain.Client, error) {
	if s.client == nil || !s.client.HasParent(parentID) {
		return nil, service.ErrClientNotFound
	}
	return s.client, nil
}

type stubSubscriptions struct {
	service.SubscriptionService
	payload   []byte
	signature string
	err       error
}

func (s *stubSubscriptions) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	s.payload = payload
	s.signature = signature
	return s.err
}

type stubReports struct {
	service.ReportService
	from, to *time.Time
	err      error
}

func (s *stubReports) ClientProgress(_ context.Context, _, _ primitive.ObjectID, from, to *time.Time) (*service.GeneratedReport, error) {
	s.from, s.to = from, to
	if s.err != nil {
		return nil, s.err
	}
	return &service.GeneratedReport{FileName: "progress-ada.pdf", Content: []byte("%PDF-1.3 test")}, nil
}

type stubSessions struct {
	service.SessionService
	lastFilter repository.SessionFilter
}

func (s *stubSessions) List(_ context.Context, filter repository.SessionFilter) (*service.SessionPage, error) {
	s.lastFilter = filter
	return &service.SessionPage{Items: []domain.Session{}, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}

type testServer struct {
	router *gin.Engine
	tokens *service.TokenManager
	svc    Services
}

func newTestServer(t *testing.T, svc Services, limiter *IPRateLimiter) *testServer {
	t.Helper()
	tokens := service.NewTokenManager("test-secret", "regulie-test", time.Hour, 5*time.Minute, clockwork.NewRealClock())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router, err := NewRouter(svc, RouterOptions{
		Tokens:         tokens,
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
		AuthLimiter:    limiter,
	})
	require.NoError(t, err)
	return &testServer{router: router, tokens: tokens, svc: svc}
}

func (s *testServer) token(t *testing.T, user *domain.User) string {
	t.Helper()
	token, err := s.tokens.IssueAccess(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(s, req)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func therapistUser() *domain.User {
	return &domain.User{ID: primitive.NewObjectID(), Name: "Dr. Lee", Email: "lee@example.com", Role: domain.RoleTherapist, Tier: domain.TierFree}
}

func parentUser() *domain.User {
	return &domain.User{ID: primitive.NewObjectID(), Name: "Sam Parent", Email: "sam@example.com", Role: domain.RoleParent}
}

func assertJSONContentType(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func nopCloser(body string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(body))
}
