package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/metrics"
	"regulie/therapy-app/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsageSummary is a therapist's current consumption against their tier.
type UsageSummary struct {
	Tier        domain.Tier       `json:"tier"`
	Usage       domain.Usage      `json:"usage"`
	Limits      domain.TierLimits `json:"limits"`
	PeriodStart time.Time         `json:"periodStart"`
}

// UsageService enforces tier limits.
type UsageService interface {
	// Reserve counts one unit of resource against the user's limit or returns *LimitExceededError.
	Reserve(ctx context.Context, userID primitive.ObjectID, resource domain.Resource) error
	// Release gives back a unit taken by Reserve, or frees a deleted client.
	Release(ctx context.Context, userID primitive.ObjectID, resource domain.Resource)
	Summary(ctx context.Context, userID primitive.ObjectID) (*UsageSummary, error)
	MaxUploadBytes(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type usageService struct {
	userRepo repository.UserRepository
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewUsageService(userRepo repository.UserRepository, clock clockwork.Clock, logger *slog.Logger) UsageService {
	return &usageService{userRepo: userRepo, clock: clock, logger: logger}
}

func (s *usageService) getUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// rollPeriod resets the monthly counters when the stored period is stale and
// mirrors the reset on user.
func (s *usageService) rollPeriod(ctx context.Context, user *domain.User) error {
	monthStart := domain.MonthStart(s.clock.Now())
	if !user.Usage.PeriodStart.Before(monthStart) {
		return nil
	}
	if err := s.userRepo.ResetMonthlyUsage(ctx, user.ID, monthStart); err != nil {
		return err
	}
	user.Usage.SessionsThisMonth = 0
	user.Usage.ReportsThisMonth = 0
	user.Usage.PeriodStart = monthStart
	return nil
}

func (s *usageService) Reserve(ctx context.Context, userID primitive.ObjectID, resource domain.Resource) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if resource.Monthly() {
		if err := s.rollPeriod(ctx, user); err != nil {
			return err
		}
	}

	tier := user.EffectiveTier()
	limit := tier.Limits().Limit(resource)
	ok, err := s.userRepo.IncrementUsage(ctx, userID, resource, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !ok {
		metrics.UsageLimitRejections.WithLabelValues(string(resource), string(tier)).Inc()
		return &LimitExceededError{Resource: resource, Tier: tier, Limit: limit}
	}
	return nil
}

func (s *usageService) Release(ctx context.Context, userID primitive.ObjectID, resource domain.Resource) {
	if err := s.userRepo.DecrementUsage(ctx, userID, resource); err != nil {
		s.logger.ErrorContext(ctx, "failed to release usage", "user_id", userID.Hex(), "resource", resource, "error", err)
	}
}

func (s *usageService) Summary(ctx context.Context, userID primitive.ObjectID) (*UsageSummary, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.rollPeriod(ctx, user); err != nil {
		return nil, err
	}
	tier := user.EffectiveTier()
	return &UsageSummary{
		Tier:        tier,
		Usage:       user.Usage,
		Limits:      tier.Limits(),
		PeriodStart: user.Usage.PeriodStart,
	}, nil
}

func (s *usageService) MaxUploadBytes(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.EffectiveTier().Limits().MaxUploadBytes, nil
}
