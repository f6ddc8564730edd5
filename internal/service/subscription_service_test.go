package service

import (
	"context"
	"testing"

	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionService_Checkout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th := e.therapist(domain.TierFree)

	_, err := e.subscriptions.Checkout(ctx, th.ID, domain.TierFree)
	assert.ErrorIs(t, err, ErrTierNotAvailable)

	url, err := e.subscriptions.Checkout(ctx, th.ID, domain.TierProfessional)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/professional", url)
	assert.Equal(t, "price_pro", e.gateway.lastCheckout.PriceID)
	assert.Equal(t, th.ID.Hex(), e.gateway.lastCheckout.UserID)
	assert.Equal(t, "cus_test", e.users.get(th.ID).Subscription.CustomerID)

	// The customer is reused on the next checkout.
	_, err = e.subscriptions.Checkout(ctx, th.ID, domain.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, 1, e.gateway.customers)
}

func TestSubscriptionService_Portal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th := e.therapist(domain.TierFree)

	_, err := e.subscriptions.Portal(ctx, th.ID)
	assert.ErrorIs(t, err, ErrNoBillingAccount)

	require.NoError(t, e.users.SetStripeCustomer(ctx, th.ID, "cus_9"))
	url, err := e.subscriptions.Portal(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/cus_9", url)
}

func TestSubscriptionService_WebhookTransitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th := e.therapist(domain.TierFree)

	steps := []struct {
		name  string
		event billing.Event
		tier  domain.Tier
		state string
	}{
		{
			name:  "checkout completed",
			event: billing.Event{Type: billing.EventCheckoutCompleted, UserID: th.ID.Hex(), CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "active", Tier: "professional"},
			tier:  domain.TierProfessional,
			state: "active",
		},
		{
			name:  "upgraded to premium price",
			event: billing.Event{Type: billing.EventSubscriptionUpdated, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "active", PriceID: "price_premium"},
			tier:  domain.TierPremium,
			state: "active",
		},
		{
			name:  "payment failing",
			event: billing.Event{Type: billing.EventSubscriptionUpdated, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "past_due", PriceID: "price_premium"},
			tier:  domain.TierFree,
			state: "past_due",
		},
		{
			name:  "recovered with unknown price keeps tier",
			event: billing.Event{Type: billing.EventSubscriptionUpdated, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "trialing", PriceID: "price_legacy"},
			tier:  domain.TierFree,
			state: "trialing",
		},
		{
			name:  "cancelled",
			event: billing.Event{Type: billing.EventSubscriptionDeleted, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "canceled"},
			tier:  domain.TierFree,
			state: "canceled",
		},
	}
	for _, step := range steps {
		ev := step.event
		require.NoError(t, e.subscriptions.HandleEvent(ctx, &ev), step.name)
		stored := e.users.get(th.ID)
		assert.Equal(t, step.tier, stored.Tier, step.name)
		assert.Equal(t, step.state, stored.Subscription.Status, step.name)
		assert.Equal(t, "cus_1", stored.Subscription.CustomerID, step.name)
	}
}

func TestSubscriptionService_IgnoresEventsForReplacedSubscription(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th := e.therapist(domain.TierFree)

	require.NoError(t, e.subscriptions.HandleEvent(ctx, &billing.Event{
		Type: billing.EventCheckoutCompleted, UserID: th.ID.Hex(), CustomerID: "cus_1", SubscriptionID: "sub_new", Status: "active", Tier: "premium",
	}))

	require.NoError(t, e.subscriptions.HandleEvent(ctx, &billing.Event{
		Type: billing.EventSubscriptionDeleted, CustomerID: "cus_1", SubscriptionID: "sub_old", Status: "canceled",
	}))
	require.NoError(t, e.subscriptions.HandleEvent(ctx, &billing.Event{
		Type: billing.EventSubscriptionUpdated, CustomerID: "cus_1", SubscriptionID: "sub_old", Status: "past_due", PriceID: "price_premium",
	}))

	stored := e.users.get(th.ID)
	assert.Equal(t, domain.TierPremium, stored.Tier)
	assert.Equal(t, "sub_new", stored.Subscription.SubscriptionID)
	assert.Equal(t, "active", stored.Subscription.Status)
}

func TestSubscriptionService_IgnoresUnmatchedEvents(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, e.subscriptions.HandleEvent(ctx, &billing.Event{Type: "invoice.paid"}))
	assert.NoError(t, e.subscriptions.HandleEvent(ctx, &billing.Event{Type: billing.EventSubscriptionDeleted, CustomerID: "cus_unknown"}))
}

func TestSubscriptionService_HandleWebhookSignature(t *testing.T) {
	e := newTestEnv(t)
	e.gateway.webhookErr = billing.ErrInvalidSignature

	err := e.subscriptions.HandleWebhook(context.Background(), []byte(`{}`), "bad")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
}

func TestSubscriptionService_Status(t *testing.T) {
	e := newTestEnv(t)
	th := e.therapist(domain.TierProfessional)

	status, err := e.subscriptions.Status(context.Background(), th.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierProfessional, status.Tier)
	assert.False(t, status.HasBilling)
	assert.Equal(t, 500, status.Usage.Limits.SessionsPerMonth)
}
