package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/billing/meterevent"
)

// stripeMeteringClient reports usage to Stripe Billing Meters.
type stripeMeteringClient struct {
	logger zerolog.Logger
}

// NewStripeMeteringClient sets the Stripe API key and returns a
// MeteringClient backed by Stripe meter events.
func NewStripeMeteringClient(apiKey string, logger zerolog.Logger) MeteringClient {
	stripe.Key = apiKey
	return &stripeMeteringClient{
		logger: logger.With().Str("service", "StripeMeteringClient").Logger(),
	}
}

func (c *stripeMeteringClient) ReportUsageEvent(ctx context.Context, eventName, customerID string, quantity int64) error {
	params := &stripe.BillingMeterEventParams{
		EventName: stripe.String(eventName),
		Payload: map[string]string{
			"stripe_customer_id": customerID,
			"value":              strconv.FormatInt(quantity, 10),
		},
	}
	params.Context = ctx
	if _, err := meterevent.New(params); err != nil {
		return fmt.Errorf("reporting meter event %s for customer %s: %w", eventName, customerID, err)
	}
	return nil
}
