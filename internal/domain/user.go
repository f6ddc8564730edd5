package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleTherapist Role = "therapist"
	RoleParent    Role = "parent"
	RoleAdmin     Role = "admin"
)

// User represents an account in the system (Therapist, Parent or Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"` // Unique, stored lower-case
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	GoogleID     string             `bson:"googleId,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Therapist-specific ---
	Tier         Tier         `bson:"tier,omitempty" json:"tier,omitempty"`
	Usage        Usage        `bson:"usage" json:"usage"`
	Subscription Subscription `bson:"subscription" json:"-"`

	MFA           MFASettings    `bson:"mfa" json:"-"`
	PasswordReset *PasswordReset `bson:"passwordReset,omitempty" json:"-"`
}

// Usage holds the counters compared against tier limits.
// Monthly counters are only meaningful for the month starting at PeriodStart.
type Usage struct {
	ClientCount       int       `bson:"clientCount" json:"clientCount"`
	SessionsThisMonth int       `bson:"sessionsThisMonth" json:"sessionsThisMonth"`
	ReportsThisMonth  int       `bson:"reportsThisMonth" json:"reportsThisMonth"`
	PeriodStart       time.Time `bson:"periodStart" json:"periodStart"`
}

// Subscription mirrors the Stripe state for a user.
type Subscription struct {
	CustomerID     string `bson:"customerId,omitempty"`
	SubscriptionID string `bson:"subscriptionId,omitempty"`
	Status         string `bson:"status,omitempty"`
}

type MFASettings struct {
	Enabled       bool   `bson:"enabled"`
	Secret        string `bson:"secret,omitempty"`
	PendingSecret string `bson:"pendingSecret,omitempty"`
}

// PasswordReset stores the SHA-256 of an emailed reset token.
type PasswordReset struct {
	TokenHash string    `bson:"tokenHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func (u *User) IsTherapist() bool {
	return u.Role == RoleTherapist
}

func (u *User) IsParent() bool {
	return u.Role == RoleParent
}

// EffectiveTier treats a missing tier as free.
func (u *User) EffectiveTier() Tier {
	if u.Tier == "" {
		return TierFree
	}
	return u.Tier
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
