package service

import (
	"testing"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/email"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testEnv wires every service over in-memory fakes.
type testEnv struct {
	clock     *clockwork.FakeClock
	users     *fakeUserRepo
	clients   *fakeClientRepo
	sessions  *fakeSessionRepo
	templates *fakeTemplateRepo
	requests  *fakeAccessRequestRepo
	mediaRepo *fakeMediaRepo
	storage   *fakeStorage
	mailer    *fakeMailer
	google    *fakeGoogle
	gateway   *fakeGateway
	tokens    *TokenManager

	usage         UsageService
	mfa           MFAService
	auth          AuthService
	clientSvc     ClientService
	sessionSvc    SessionService
	templateSvc   TemplateService
	accessSvc     AccessRequestService
	parentSvc     ParentService
	mediaSvc      MediaService
	subscriptions SubscriptionService
	reports       ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()
	e := &testEnv{
		clock:     clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)),
		users:     newFakeUserRepo(),
		clients:   newFakeClientRepo(),
		sessions:  newFakeSessionRepo(),
		templates: newFakeTemplateRepo(),
		requests:  newFakeAccessRequestRepo(),
		mediaRepo: newFakeMediaRepo(),
		storage:   newFakeStorage(),
		mailer:    &fakeMailer{},
		google:    &fakeGoogle{},
		gateway:   &fakeGateway{},
	}
	tpl := email.Templates{AppName: "Regulie", PublicURL: "https://app.test"}

	e.tokens = NewTokenManager("test-secret", "regulie", time.Hour, 5*time.Minute, e.clock)
	e.usage = NewUsageService(e.users, e.clock, logger)
	e.mfa = NewMFAService(e.users, "Regulie", e.clock)
	e.auth = NewAuthService(AuthDeps{
		UserRepo:  e.users,
		Tokens:    e.tokens,
		MFA:       e.mfa,
		Google:    e.google,
		Mailer:    e.mailer,
		Templates: tpl,
		Clock:     e.clock,
		Logger:    logger,
	})
	e.mediaSvc = NewMediaService(e.mediaRepo, e.sessions, e.clients, e.storage, e.usage, e.clock, logger)
	e.clientSvc = NewClientService(e.clients, e.sessions, e.users, e.mediaSvc, e.usage, e.clock, logger)
	e.sessionSvc = NewSessionService(e.sessions, e.clients, e.templates, e.mediaSvc, e.usage, logger)
	e.templateSvc = NewTemplateService(e.templates)
	e.accessSvc = NewAccessRequestService(e.requests, e.users, e.clients, e.mailer, tpl, e.clock, logger)
	e.parentSvc = NewParentService(e.clients, e.sessions)
	e.subscriptions = NewSubscriptionService(e.users, e.gateway, e.usage, map[domain.Tier]string{
		domain.TierProfessional: "price_pro",
		domain.TierPremium:      "price_premium",
	}, "https://app.test", logger)
	e.reports = NewReportService(e.clients, e.sessions, e.users, e.usage, "Regulie", e.clock)
	return e
}

func (e *testEnv) therapist(tier domain.Tier) *domain.User {
	return e.users.add(domain.User{
		Name:  "Dr. " + primitive.NewObjectID().Hex()[18:],
		Email: primitive.NewObjectID().Hex() + "@clinic.test",
		Role:  domain.RoleTherapist,
		Tier:  tier,
		Usage: domain.Usage{PeriodStart: domain.MonthStart(e.clock.Now())},
	})
}

func (e *testEnv) parent() *domain.User {
	return e.users.add(domain.User{
		Name:  "Parent",
		Email: primitive.NewObjectID().Hex() + "@family.test",
		Role:  domain.RoleParent,
	})
}
