package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/subsync/pkg/tier"
)

// Entitlements answers feature-gating questions for a user. Variants are
// selected at startup; all of them read the shape the engine produces.
type Entitlements interface {
	UserTier(ctx context.Context, userID int64) (string, error)
	IsActive(ctx context.Context, userID int64) (bool, error)
	Expiry(ctx context.Context, userID int64) (*time.Time, error)
}

// Entitlements provider names.
const (
	ProviderRecords = "records"
	ProviderStatic  = "static"
)

// EntitlementsConfig selects the provider, read from ENTITLEMENTS_* variables.
type EntitlementsConfig struct {
	Provider   string `env:"ENTITLEMENTS_PROVIDER" envDefault:"records"`
	StaticTier string `env:"ENTITLEMENTS_STATIC_TIER"`
}

// NewEntitlements builds the configured provider.
func NewEntitlements(cfg EntitlementsConfig, store Store, catalog tier.Catalog) (Entitlements, error) {
	switch cfg.Provider {
	case "", ProviderRecords:
		return NewRecordEntitlements(store, catalog), nil
	case ProviderStatic:
		if cfg.StaticTier == "" {
			return nil, ErrStaticEntitlementsTierMissing
		}
		return StaticEntitlements{Tier: cfg.StaticTier}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntitlementsProvider, cfg.Provider)
	}
}

// RecordEntitlements derives entitlements from stored records. Users without
// an entitled record get the catalog's default free tier.
type RecordEntitlements struct {
	store   Store
	catalog tier.Catalog
}

func NewRecordEntitlements(store Store, catalog tier.Catalog) *RecordEntitlements {
	if store == nil || catalog == nil {
		panic("subscription: store and catalog are required")
	}
	return &RecordEntitlements{store: store, catalog: catalog}
}

func (r *RecordEntitlements) record(ctx context.Context, userID int64) (*Record, error) {
	rec, err := r.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

func (r *RecordEntitlements) UserTier(ctx context.Context, userID int64) (string, error) {
	rec, err := r.record(ctx, userID)
	if err != nil {
		return "", err
	}
	if !rec.Entitled() {
		return r.catalog.DefaultFree(), nil
	}
	return rec.Tier, nil
}

func (r *RecordEntitlements) IsActive(ctx context.Context, userID int64) (bool, error) {
	rec, err := r.record(ctx, userID)
	if err != nil {
		return false, err
	}
	return rec.Entitled(), nil
}

func (r *RecordEntitlements) Expiry(ctx context.Context, userID int64) (*time.Time, error) {
	rec, err := r.record(ctx, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	return cloneTime(rec.CurrentPeriodEnd), nil
}

// StaticEntitlements grants every user the same tier with no expiry.
type StaticEntitlements struct {
	Tier string
}

func (s StaticEntitlements) UserTier(context.Context, int64) (string, error) { return s.Tier, nil }
func (s StaticEntitlements) IsActive(context.Context, int64) (bool, error) { return true, nil }
func (s StaticEntitlements) Expiry(context.Context, int64) (*time.Time, error) { return nil, nil }
