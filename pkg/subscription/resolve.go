package subscription

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

// MetadataUserID and MetadataTier are the metadata keys written on checkout.
const (
	MetadataUserID        = "user_id"
	MetadataTier          = "tier"
	MetadataBillingPeriod = "billing_period"
)

// userHints are the identifiers an event offers for finding the local user.
type userHints struct {
	Metadata       map[string]string
	ReferenceID    string
	SubscriptionID string
	CustomerID     string
	Email          string
}

// resolveUser applies the fixed priority: metadata user id, subscription id,
// customer id, email. The first match wins. Storage failures are returned;
// misses are reported through ok.
func (e *Engine) resolveUser(ctx context.Context, h userHints) (userID int64, ok bool, err error) {
	if id, ok := parseUserID(h.Metadata[MetadataUserID]); ok {
		return id, true, nil
	}
	if id, ok := parseUserID(h.ReferenceID); ok {
		return id, true, nil
	}

	lookups := []struct {
		id   string
		find func(context.Context, string) (int64, error)
	}{
		{h.SubscriptionID, e.store.FindBySubscriptionID},
		{h.CustomerID, e.store.FindByCustomerID},
	}
	for _, l := range lookups {
		if l.id == "" {
			continue
		}
		userID, err := l.find(ctx, l.id)
		switch {
		case err == nil:
			return userID, true, nil
		case !errors.Is(err, ErrRecordNotFound):
			return 0, false, err
		}
	}

	if h.Email == "" || e.users == nil {
		return 0, false, nil
	}
	userID, err = e.users.UserIDByEmail(ctx, normalizeEmail(h.Email))
	switch {
	case err == nil && userID > 0:
		return userID, true, nil
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		e.log.WarnContext(ctx, "user lookup by email failed", logger.Error(err))
	}
	return 0, false, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseUserID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
