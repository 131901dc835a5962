package policies

import "context"

// PaymentIntent is the processor-side record a buyer completes checkout with.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
}

// PaymentsPort creates payment intents against the third-party processor.
type PaymentsPort interface {
	CreateIntent(ctx context.Context, reference string, amountCents int64, currency string, metadata map[string]string) (PaymentIntent, error)
}
