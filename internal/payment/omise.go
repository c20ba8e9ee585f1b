package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// OmiseProvider prepares a PromptPay source and a pending charge per intent.
// The charge id is the intent id.
type OmiseProvider struct {
	base *omise.Client
}

func NewOmiseProvider(publicKey, secretKey string) (*OmiseProvider, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}
	return &OmiseProvider{base: client}, nil
}

func (p *OmiseProvider) Name() string { return "omise" }

// do runs call with a copy of the base client bound to ctx. WithContext
// mutates its receiver, so concurrent calls never share one. The HTTP
// client and endpoint overrides are shared read-only.
func (p *OmiseProvider) do(ctx context.Context, call func(c *omise.Client) error) error {
	client := *p.base
	client.WithContext(ctx)
	return call(&client)
}

func (p *OmiseProvider) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	src := &omise.Source{}
	if err := p.do(ctx, func(c *omise.Client) error {
		return c.Do(src, &operations.CreateSource{
			Type:     "promptpay",
			Amount:   amountCents,
			Currency: strings.ToLower(currency),
		})
	}); err != nil {
		return Intent{}, fmt.Errorf("create source: %w", err)
	}

	ch := &omise.Charge{}
	if err := p.do(ctx, func(c *omise.Client) error {
		return c.Do(ch, &operations.CreateCharge{
			Amount:   amountCents,
			Currency: strings.ToLower(currency),
			Source:   src.ID,
		})
	}); err != nil {
		return Intent{}, fmt.Errorf("create charge: %w", err)
	}

	secret, err := newClientSecret()
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: ch.ID, ClientSecret: secret, NextActionURL: ch.AuthorizeURI}, nil
}

func (p *OmiseProvider) Confirm(ctx context.Context, intentID string) (Result, error) {
	ch := &omise.Charge{}
	if err := p.do(ctx, func(c *omise.Client) error {
		return c.Do(ch, &operations.RetrieveCharge{ChargeID: intentID})
	}); err != nil {
		if isOmiseNotFound(err) {
			return Result{}, ErrIntentNotFound
		}
		return Result{}, fmt.Errorf("retrieve charge %s: %w", intentID, err)
	}

	switch string(ch.Status) {
	case "successful":
		return Result{Status: ResultSucceeded}, nil
	case "pending":
		return Result{Status: ResultPending}, nil
	default:
		res := Result{Status: ResultFailed}
		if ch.FailureCode != nil {
			res.FailureCode = *ch.FailureCode
		}
		if ch.FailureMessage != nil {
			res.FailureMessage = *ch.FailureMessage
		}
		if res.FailureCode == "" {
			res.FailureCode = string(ch.Status)
		}
		return res, nil
	}
}

func (p *OmiseProvider) Refund(ctx context.Context, intentID string, amountCents int64) error {
	refund := &omise.Refund{}
	if err := p.do(ctx, func(c *omise.Client) error {
		return c.Do(refund, &operations.CreateRefund{
			ChargeID: intentID,
			Amount:   amountCents,
		})
	}); err != nil {
		return fmt.Errorf("refund charge %s: %w", intentID, err)
	}
	return nil
}

// isOmiseNotFound matches the API's not_found error code.
func isOmiseNotFound(err error) bool {
	var apiErr *omise.Error
	return errors.As(err, &apiErr) && apiErr.Code == "not_found"
}

func newClientSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
