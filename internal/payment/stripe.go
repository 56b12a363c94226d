package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Intent is the slice of a gateway payment intent the entitlement logic needs.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64 // smallest currency unit
	Currency     string
	Status       string
	Metadata     map[string]string
}

const StatusSucceeded = "succeeded"

// Event is a verified gateway webhook event.
type Event struct {
	Type   string
	Intent *Intent
}

// StripeClient talks to the payment gateway.
type StripeClient struct {
	api           *client.API
	webhookSecret string
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api, webhookSecret: webhookSecret}
}

func (c *StripeClient) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (c *StripeClient) GetIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := c.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// VerifyWebhook checks the signature header and decodes the event payload.
func (c *StripeClient) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	out := &Event{Type: string(event.Type)}
	if len(event.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err == nil && pi.ID != "" {
			out.Intent = intentFromStripe(&pi)
		}
	}
	return out, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
}
