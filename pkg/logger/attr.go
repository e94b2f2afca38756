package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// EventType records the gateway event type, e.g. "customer.subscription.updated".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// Notification records the domain notification name, e.g. "tier_changed".
func Notification(name string) slog.Attr {
	return slog.String("notification", name)
}

func Tier(id string) slog.Attr {
	return slog.String("tier", id)
}

func Status(status string) slog.Attr {
	return slog.String("status", status)
}

func CustomerID(id string) slog.Attr {
	return slog.String("customer_id", id)
}

func SubscriptionID(id string) slog.Attr {
	return slog.String("subscription_id", id)
}

func PriceID(id string) slog.Attr {
	return slog.String("price_id", id)
}

// Reason records why an operation was skipped.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
