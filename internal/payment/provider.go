// Package payment talks to the external payment provider on behalf of the
// payment ledger.
package payment

import (
	"context"
	"errors"
)

type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
	ResultPending   ResultStatus = "pending"
)

// Intent is what the provider hands back when a charge is prepared.
// ClientSecret is shown to the payer once and must accompany confirmation.
type Intent struct {
	ID            string
	ClientSecret  string
	NextActionURL string
}

type Result struct {
	Status         ResultStatus
	FailureCode    string
	FailureMessage string
}

func (r Result) Succeeded() bool { return r.Status == ResultSucceeded }

type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error)
	Confirm(ctx context.Context, intentID string) (Result, error)
	Refund(ctx context.Context, intentID string, amountCents int64) error
}

var (
	// ErrIntentNotFound is permanent and never retried.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrUnavailable marks a transient provider outage.
	ErrUnavailable = errors.New("payment provider unavailable")
)
