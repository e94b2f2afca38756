package subscription

import "time"

// Status is the local subscription state.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusInactive Status = "inactive"
	StatusNone     Status = "none"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled, StatusInactive, StatusNone:
		return true
	}
	return false
}

// Entitled reports whether s grants access to the tier's features.
// The billing period end is deliberately not consulted.
func (s Status) Entitled() bool {
	return s == StatusActive || s == StatusTrialing
}

func (s Status) String() string { return string(s) }

// Record is the per-user subscription state.
type Record struct {
	UserID             int64      `json:"user_id"`
	CustomerID         string     `json:"gateway_customer_id"`
	SubscriptionID     string     `json:"gateway_subscription_id,omitempty"`
	Tier               string     `json:"tier"`
	Status             Status     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	TrialUsed          bool       `json:"trial_used"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	Email              string     `json:"email,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Entitled reports whether the user currently has access to Tier.
func (r *Record) Entitled() bool {
	return r != nil && r.Status.Entitled()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.CurrentPeriodStart = cloneTime(r.CurrentPeriodStart)
	c.CurrentPeriodEnd = cloneTime(r.CurrentPeriodEnd)
	c.CanceledAt = cloneTime(r.CanceledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Defaults fill fields a Patch leaves unset when a record is first created.
type Defaults struct {
	Tier   string
	Status Status
}

func (d Defaults) record(userID int64) Record {
	status := d.Status
	if !status.Valid() {
		status = StatusNone
	}
	return Record{UserID: userID, Tier: d.Tier, Status: status}
}
