// Package config loads typed application configuration.
//
// Environment configuration is parsed with github.com/caarlos0/env/v11 into structs
// annotated with `env` tags. A `.env` file in the working directory is loaded once
// through github.com/joho/godotenv, and every parsed struct is cached per type so
// repeated Load calls are cheap:
//
//	type StripeConfig struct {
//	    SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
//	    WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg StripeConfig
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// File-based configuration (the tier catalog, for instance) goes through LoadYAML,
// which decodes with gopkg.in/yaml.v3 and rejects unknown keys.
//
// Use ResetCache in tests that change the environment between loads.
package config
