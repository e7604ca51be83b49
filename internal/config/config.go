package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment        string `envconfig:"ENV" default:"development"`
	Port               string `envconfig:"PORT" default:"8080"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Stripe metered billing settings. The secret key is read from the
	// environment directly, or from Secret Manager when STRIPE_SECRET_NAME
	// is set (the env value then acts as a local fallback).
	StripeSecretKey         string `envconfig:"STRIPE_SECRET_KEY"`
	StripeSecretName        string `envconfig:"STRIPE_SECRET_NAME"`
	StripeBasicMeterEvent   string `envconfig:"STRIPE_BASIC_METER_EVENT" default:"basic_model_usage"`
	StripePremiumMeterEvent string `envconfig:"STRIPE_PREMIUM_METER_EVENT" default:"premium_model_usage"`
	MeterTimeoutSec         int    `envconfig:"METER_TIMEOUT_SEC" default:"3"`

	// Guest (anonymous) per-category ceilings.
	GuestBasicLimit   int64 `envconfig:"GUEST_BASIC_LIMIT" default:"10"`
	GuestPremiumLimit int64 `envconfig:"GUEST_PREMIUM_LIMIT" default:"0"`

	// Usage analytics events (optional; disabled when project ID is empty).
	GCPProjectID     string `envconfig:"GCP_PROJECT_ID"`
	UsageEventsTopic string `envconfig:"USAGE_EVENTS_TOPIC" default:"usage_events"`

	// S3 settings for the reconciliation export (optional; export is
	// disabled when the bucket is empty).
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
