package domain

// Tier is a subscription level gating resource limits.
type Tier string

const (
	TierFree         Tier = "free"
	TierProfessional Tier = "professional"
	TierPremium      Tier = "premium"
)

// Unlimited marks a limit that is never enforced.
const Unlimited = -1

const mib = 1 << 20

// TierLimits are the static per-tier thresholds.
type TierLimits struct {
	Clients          int   `json:"clients"`
	SessionsPerMonth int   `json:"sessionsPerMonth"`
	ReportsPerMonth  int   `json:"reportsPerMonth"`
	MaxUploadBytes   int64 `json:"maxUploadBytes"`
}

var tierLimits = map[Tier]TierLimits{
	TierFree:         {Clients: 5, SessionsPerMonth: 30, ReportsPerMonth: 3, MaxUploadBytes: 10 * mib},
	TierProfessional: {Clients: 50, SessionsPerMonth: 500, ReportsPerMonth: 50, MaxUploadBytes: 100 * mib},
	TierPremium:      {Clients: Unlimited, SessionsPerMonth: Unlimited, ReportsPerMonth: Unlimited, MaxUploadBytes: 500 * mib},
}

// Limits returns the limits for t, falling back to the free tier.
func (t Tier) Limits() TierLimits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierFree]
}

func (t Tier) Valid() bool {
	_, ok := tierLimits[t]
	return ok
}

// Paid reports whether the tier requires a subscription.
func (t Tier) Paid() bool {
	return t == TierProfessional || t == TierPremium
}

// Resource names a counted, tier-limited resource.
type Resource string

const (
	ResourceClients  Resource = "clients"
	ResourceSessions Resource = "sessions"
	ResourceReports  Resource = "reports"
)

// Limit returns the cap for r under l.
func (l TierLimits) Limit(r Resource) int {
	switch r {
	case ResourceClients:
		return l.Clients
	case ResourceSessions:
		return l.SessionsPerMonth
	case ResourceReports:
		return l.ReportsPerMonth
	}
	return 0
}

// Count returns the current counter for r.
func (u Usage) Count(r Resource) int {
	switch r {
	case ResourceClients:
		return u.ClientCount
	case ResourceSessions:
		return u.SessionsThisMonth
	case ResourceReports:
		return u.ReportsThisMonth
	}
	return 0
}

// Monthly reports whether r resets at the start of each month.
func (r Resource) Monthly() bool {
	return r == ResourceSessions || r == ResourceReports
}
