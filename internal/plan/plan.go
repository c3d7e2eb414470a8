package plan

// Limits are the quota bounds attached to a subscription plan.
// Values are immutable; look them up with LimitsFor.
type Limits struct {
	ID            string
	DocumentQuota int
	MaxPages      int
	MaxFileBytes  int64
}

const (
	Free = "free"
	Pro  = "pro"
)

var limits = map[string]Limits{
	Free: {ID: Free, DocumentQuota: 3, MaxPages: 5, MaxFileBytes: 4 << 20},
	Pro:  {ID: Pro, DocumentQuota: 50, MaxPages: 50, MaxFileBytes: 32 << 20},
}

// LimitsFor resolves a plan identifier to its limits. Unknown plan ids fall
// back to the free tier, the most restrictive plan.
func LimitsFor(planID string) Limits {
	if l, ok := limits[planID]; ok {
		return l
	}
	return limits[Free]
}
