package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/metrics"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTierNotAvailable = errors.New("this plan cannot be purchased")
	ErrNoBillingAccount = errors.New("no billing account exists for this user")
)

// SubscriptionStatus is what the billing page shows.
type SubscriptionStatus struct {
	Tier       domain.Tier   `json:"tier"`
	Status     string        `json:"status,omitempty"`
	HasBilling bool          `json:"hasBilling"`
	Usage      *UsageSummary `json:"usage"`
}

type SubscriptionService interface {
	Status(ctx context.Context, userID primitive.ObjectID) (*SubscriptionStatus, error)
	Checkout(ctx context.Context, userID primitive.ObjectID, tier domain.Tier) (string, error)
	Portal(ctx context.Context, userID primitive.ObjectID) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	HandleEvent(ctx context.Context, event *billing.Event) error
}

type subscriptionService struct {
	userRepo  repository.UserRepository
	gateway   billing.Gateway
	usage     UsageService
	prices    map[domain.Tier]string
	tiers     map[string]domain.Tier
	publicURL string
	logger    *slog.Logger
}

// NewSubscriptionService maps each paid tier to a price id; tiers without a
// price cannot be purchased.
func NewSubscriptionService(
	userRepo repository.UserRepository,
	gateway billing.Gateway,
	usage UsageService,
	prices map[domain.Tier]string,
	publicURL string,
	logger *slog.Logger,
) SubscriptionService {
	tiers := make(map[string]domain.Tier, len(prices))
	for tier, price := range prices {
		if price != "" {
			tiers[price] = tier
		}
	}
	return &subscriptionService{
		userRepo:  userRepo,
		gateway:   gateway,
		usage:     usage,
		prices:    prices,
		tiers:     tiers,
		publicURL: publicURL,
		logger:    logger,
	}
}

func (s *subscriptionService) getUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *subscriptionService) Status(ctx context.Context, userID primitive.ObjectID) (*SubscriptionStatus, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage, err := s.usage.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Tier:       user.EffectiveTier(),
		Status:     user.Subscription.Status,
		HasBilling: user.Subscription.CustomerID != "",
		Usage:      usage,
	}, nil
}

// Checkout creates the billing customer on first use and returns a hosted checkout URL.
func (s *subscriptionService) Checkout(ctx context.Context, userID primitive.ObjectID, tier domain.Tier) (string, error) {
	price := s.prices[tier]
	if !tier.Paid() || price == "" {
		return "", ErrTierNotAvailable
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}

	customerID := user.Subscription.CustomerID
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.Email, user.Name, user.ID.Hex())
		if err != nil {
			return "", err
		}
		if err := s.userRepo.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
			return "", err
		}
	}

	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		UserID:     user.ID.Hex(),
		PriceID:    price,
		Tier:       string(tier),
		SuccessURL: s.publicURL + "/billing?checkout=success",
		CancelURL:  s.publicURL + "/billing?checkout=cancelled",
	})
}

func (s *subscriptionService) Portal(ctx context.Context, userID primitive.ObjectID) (string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Subscription.CustomerID == "" {
		return "", ErrNoBillingAccount
	}
	return s.gateway.CreatePortalSession(ctx, user.Subscription.CustomerID, s.publicURL+"/billing")
}

func (s *subscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid").Inc()
		return err
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent applies a billing event to the user's tier. Events that cannot be
// matched to a user are acknowledged and logged.
func (s *subscriptionService) HandleEvent(ctx context.Context, event *billing.Event) error {
	outcome := "applied"
	err := s.applyEvent(ctx, event)
	switch {
	case errors.Is(err, errIgnoredEvent):
		outcome, err = "ignored", nil
	case err != nil:
		outcome = "error"
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, outcome).Inc()
	return err
}

var errIgnoredEvent = errors.New("event ignored")

func (s *subscriptionService) applyEvent(ctx context.Context, event *billing.Event) error {
	switch event.Type {
	case billing.EventCheckoutCompleted:
		user, err := s.userForCheckout(ctx, event)
		if err != nil {
			return err
		}
		tier := domain.Tier(event.Tier)
		if !tier.Paid() {
			s.logger.WarnContext(ctx, "checkout completed without a paid tier", "event_id", event.ID, "tier", event.Tier)
			return errIgnoredEvent
		}
		return s.setSubscription(ctx, user, tier, event)

	case billing.EventSubscriptionUpdated:
		user, err := s.userForCustomer(ctx, event)
		if err != nil {
			return err
		}
		if s.isReplaced(ctx, user, event) {
			return errIgnoredEvent
		}
		tier := domain.TierFree
		if event.Status == "active" || event.Status == "trialing" {
			if t, ok := s.tiers[event.PriceID]; ok {
				tier = t
			} else {
				// Unknown price: keep what checkout granted.
				tier = user.EffectiveTier()
			}
		}
		return s.setSubscription(ctx, user, tier, event)

	case billing.EventSubscriptionDeleted:
		user, err := s.userForCustomer(ctx, event)
		if err != nil {
			return err
		}
		if s.isReplaced(ctx, user, event) {
			return errIgnoredEvent
		}
		event.Status = "canceled"
		return s.setSubscription(ctx, user, domain.TierFree, event)
	}
	return errIgnoredEvent
}

// isReplaced reports whether the event belongs to a subscription other than the
// one stored on the user, such as a late event for a cancelled predecessor.
func (s *subscriptionService) isReplaced(ctx context.Context, user *domain.User, event *billing.Event) bool {
	current := user.Subscription.SubscriptionID
	if current == "" || event.SubscriptionID == "" || current == event.SubscriptionID {
		return false
	}
	s.logger.InfoContext(ctx, "ignoring event for replaced subscription",
		"event_id", event.ID, "user_id", user.ID.Hex(), "subscription_id", event.SubscriptionID, "current_subscription_id", current)
	return true
}

func (s *subscriptionService) setSubscription(ctx context.Context, user *domain.User, tier domain.Tier, event *billing.Event) error {
	sub := domain.Subscription{
		CustomerID:     event.CustomerID,
		SubscriptionID: event.SubscriptionID,
		Status:         event.Status,
	}
	if sub.CustomerID == "" {
		sub.CustomerID = user.Subscription.CustomerID
	}
	if err := s.userRepo.UpdateSubscription(ctx, user.ID, tier, sub); err != nil {
		return fmt.Errorf("update subscription for user %s: %w", user.ID.Hex(), err)
	}
	s.logger.InfoContext(ctx, "subscription updated",
		"user_id", user.ID.Hex(), "event", event.Type, "tier", tier, "status", sub.Status)
	return nil
}

func (s *subscriptionService) userForCheckout(ctx context.Context, event *billing.Event) (*domain.User, error) {
	if id, err := primitive.ObjectIDFromHex(event.UserID); err == nil {
		user, err := s.userRepo.GetByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return s.userForCustomer(ctx, event)
}

func (s *subscriptionService) userForCustomer(ctx context.Context, event *billing.Event) (*domain.User, error) {
	if event.CustomerID == "" {
		return nil, errIgnoredEvent
	}
	user, err := s.userRepo.GetByStripeCustomerID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WarnContext(ctx, "billing event for unknown customer", "event_id", event.ID, "customer_id", event.CustomerID)
			return nil, errIgnoredEvent
		}
		return nil, err
	}
	return user, nil
}
