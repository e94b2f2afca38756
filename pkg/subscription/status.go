package subscription

// MapGatewayStatus converts a gateway subscription status to a local Status.
func MapGatewayStatus(s string) Status {
	switch s {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due", "unpaid":
		return StatusPastDue
	case "canceled":
		return StatusCanceled
	case "incomplete", "incomplete_expired", "paused":
		return StatusInactive
	default:
		return StatusNone
	}
}

// foldStatus maps the gateway status and folds "cancel at period end" into
// StatusCanceled, since the local model has a single flat status.
func foldStatus(sub *GatewaySubscription) Status {
	status := MapGatewayStatus(sub.Status)
	if sub.CancelAtPeriodEnd {
		return StatusCanceled
	}
	return status
}
