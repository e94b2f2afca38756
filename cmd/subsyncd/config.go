package main

import (
	"time"

	"github.com/dmitrymomot/subsync/pkg/environment"
)

// Store drivers accepted in STORE_DRIVER.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
)

type appConfig struct {
	AppName         string        `env:"APP_NAME" envDefault:"subsync"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"memory"`
	CatalogPath     string        `env:"TIER_CATALOG_PATH" envDefault:"tiers.yaml"`
	MountPath       string        `env:"BILLING_MOUNT_PATH" envDefault:"/billing"`
	RedisIndex      bool          `env:"REDIS_INDEX_ENABLED" envDefault:"false"`
	RedisIndexTTL   time.Duration `env:"REDIS_INDEX_TTL" envDefault:"720h"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	NotifyEnabled   bool          `env:"NOTIFY_ENABLED" envDefault:"true"`
	TrustUserHeader bool          `env:"TRUST_USER_HEADERS" envDefault:"false"`
	HooksToken      string        `env:"BILLING_HOOKS_TOKEN"` // empty disables /internal account hooks
}

func (c appConfig) environment() environment.Environment {
	return environment.Parse(c.Env)
}
