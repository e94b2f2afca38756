package subscription

import "time"

// Field is an optional patch value. The zero Field means "leave unchanged".
type Field[T any] struct {
	Val   T
	Valid bool
}

// Set returns a Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{Val: v, Valid: true}
}

// Patch is a partial update of a Record. Only Valid fields are written.
// An empty SubscriptionID clears the gateway subscription reference.
// TrialUsed can only raise the flag; Set(false) is a no-op.
type Patch struct {
	CustomerID         Field[string]
	SubscriptionID     Field[string]
	Tier               Field[string]
	Status             Field[Status]
	CurrentPeriodStart Field[*time.Time]
	CurrentPeriodEnd   Field[*time.Time]
	TrialUsed          Field[bool]
	CanceledAt         Field[*time.Time]
	Email              Field[string]
}

// Column names, shared by the SQL and document stores.
const (
	colCustomerID         = "gateway_customer_id"
	colSubscriptionID     = "gateway_subscription_id"
	colTier               = "tier"
	colStatus             = "status"
	colCurrentPeriodStart = "current_period_start"
	colCurrentPeriodEnd   = "current_period_end"
	colTrialUsed          = "trial_used"
	colCanceledAt         = "canceled_at"
	colEmail              = "email"
)

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.columns()) == 0
}

// clearsGatewayID reports whether p removes a customer or subscription reference.
func (p Patch) clearsGatewayID() bool {
	return (p.CustomerID.Valid && p.CustomerID.Val == "") ||
		(p.SubscriptionID.Valid && p.SubscriptionID.Val == "")
}

// columns lists the column names of the Valid fields.
func (p Patch) columns() []string {
	cols := make([]string, 0, 9)
	if p.CustomerID.Valid {
		cols = append(cols, colCustomerID)
	}
	if p.SubscriptionID.Valid {
		cols = append(cols, colSubscriptionID)
	}
	if p.Tier.Valid {
		cols = append(cols, colTier)
	}
	if p.Status.Valid {
		cols = append(cols, colStatus)
	}
	if p.CurrentPeriodStart.Valid {
		cols = append(cols, colCurrentPeriodStart)
	}
	if p.CurrentPeriodEnd.Valid {
		cols = append(cols, colCurrentPeriodEnd)
	}
	if p.TrialUsed.Valid {
		cols = append(cols, colTrialUsed)
	}
	if p.CanceledAt.Valid {
		cols = append(cols, colCanceledAt)
	}
	if p.Email.Valid {
		cols = append(cols, colEmail)
	}
	return cols
}

// applyTo merges p into r in place.
func (p Patch) applyTo(r *Record) {
	if p.CustomerID.Valid {
		r.CustomerID = p.CustomerID.Val
	}
	if p.SubscriptionID.Valid {
		r.SubscriptionID = p.SubscriptionID.Val
	}
	if p.Tier.Valid {
		r.Tier = p.Tier.Val
	}
	if p.Status.Valid {
		r.Status = p.Status.Val
	}
	if p.CurrentPeriodStart.Valid {
		r.CurrentPeriodStart = cloneTime(p.CurrentPeriodStart.Val)
	}
	if p.CurrentPeriodEnd.Valid {
		r.CurrentPeriodEnd = cloneTime(p.CurrentPeriodEnd.Val)
	}
	if p.TrialUsed.Valid {
		r.TrialUsed = r.TrialUsed || p.TrialUsed.Val
	}
	if p.CanceledAt.Valid {
		r.CanceledAt = cloneTime(p.CanceledAt.Val)
	}
	if p.Email.Valid {
		r.Email = p.Email.Val
	}
}
