package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/metrics"
	"regulie/therapy-app/internal/report"
	"regulie/therapy-app/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultReportPeriod is used when the caller gives no start date.
const DefaultReportPeriod = 90 * 24 * time.Hour

// GeneratedReport is a rendered PDF and its suggested download name.
type GeneratedReport struct {
	FileName string
	Content  []byte
}

type ReportService interface {
	ClientProgress(ctx context.Context, therapistID, clientID primitive.ObjectID, from, to *time.Time) (*GeneratedReport, error)
}

type reportService struct {
	clientRepo  repository.ClientRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	usage       UsageService
	appName     string
	clock       clockwork.Clock
}

func NewReportService(
	clientRepo repository.ClientRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	usage UsageService,
	appName string,
	clock clockwork.Clock,
) ReportService {
	return &reportService{
		clientRepo:  clientRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		usage:       usage,
		appName:     appName,
		clock:       clock,
	}
}

// ClientProgress renders a PDF for sessions between from and to, counting one
// report against the monthly limit.
func (s *reportService) ClientProgress(ctx context.Context, therapistID, clientID primitive.ObjectID, from, to *time.Time) (*GeneratedReport, error) {
	now := s.clock.Now().UTC()
	end := now
	if to != nil {
		end = *to
	}
	start := end.Add(-DefaultReportPeriod)
	if from != nil {
		start = *from
	}
	if end.Before(start) {
		return nil, validationError("'to' must not be before 'from'")
	}

	client, err := s.clientRepo.GetOwned(ctx, clientID, therapistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	therapist, err := s.userRepo.GetByID(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessionsInRange(ctx, therapistID, clientID, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.usage.Reserve(ctx, therapistID, domain.ResourceReports); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = report.Render(&buf, report.ProgressReport{
		AppName:       s.appName,
		TherapistName: therapist.Name,
		Client:        *client,
		Sessions:      sessions,
		From:          start,
		To:            end,
		GeneratedAt:   now,
	})
	if err != nil {
		s.usage.Release(ctx, therapistID, domain.ResourceReports)
		return nil, err
	}
	metrics.ReportsGenerated.Inc()

	return &GeneratedReport{
		FileName: fmt.Sprintf("progress-%s-%s-%s.pdf", client.ID.Hex(), start.Format("20060102"), end.Format("20060102")),
		Content:  buf.Bytes(),
	}, nil
}

// sessionsInRange pages through all matching sessions, oldest first.
func (s *reportService) sessionsInRange(ctx context.Context, therapistID, clientID primitive.ObjectID, from, to time.Time) ([]domain.Session, error) {
	filter := repository.SessionFilter{
		TherapistID: therapistID,
		ClientID:    clientID,
		From:        &from,
		To:          &to,
		Page:        repository.Page{Page: 1, Limit: repository.MaxPageSize},
	}
	var all []domain.Session
	for {
		items, total, err := s.sessionRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < filter.Limit || int64(len(all)) >= total {
			break
		}
		filter.Page.Page++
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	return all, nil
}
