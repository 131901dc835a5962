package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gearyard/internal/app/policies"
	"gearyard/internal/domain/shared/fault"
)

// Client calls the external payment processor over HTTP to create intents.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	APIKey   string
	Logger   *slog.Logger
}

type intentRequest struct {
	Reference   string            `json:"reference"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func (c *Client) CreateIntent(ctx context.Context, reference string, amountCents int64, currency string, metadata map[string]string) (policies.PaymentIntent, error) {
	var zero policies.PaymentIntent

	if c == nil || c.HTTP == nil {
		return zero, errors.New("payments: http client not configured")
	}
	if c.Endpoint == "" {
		return zero, errors.New("payments: endpoint not configured")
	}

	body, err := json.Marshal(intentRequest{
		Reference:   reference,
		AmountCents: amountCents,
		Currency:    currency,
		Metadata:    metadata,
	})
	if err != nil {
		return zero, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(request)
	if err != nil {
		c.logError("payment intent request failed", reference, err)
		return zero, fault.Wrap(fault.UpstreamFailure, err, "payments: processor unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("payments processor returned status %d: %s", resp.StatusCode, string(snippet))
		c.logError("payment intent rejected", reference, err)
		return zero, fault.Wrap(fault.UpstreamFailure, err, "payments: intent creation failed")
	}

	var payload intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logError("payment intent decode failed", reference, err)
		return zero, fault.Wrap(fault.UpstreamFailure, err, "payments: malformed processor response")
	}

	if c.Logger != nil {
		c.Logger.Info("payment intent created",
			"reference", reference, "intent_id", payload.ID,
			"amount_cents", payload.AmountCents, "status", payload.Status)
	}
	return policies.PaymentIntent{
		ID:           payload.ID,
		ClientSecret: payload.ClientSecret,
		AmountCents:  payload.AmountCents,
		Currency:     payload.Currency,
		Status:       payload.Status,
	}, nil
}

func (c *Client) logError(msg, reference string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "reference", reference, "error", err)
}

var _ policies.PaymentsPort = (*Client)(nil)
