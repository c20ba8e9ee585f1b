package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type mockIntent struct {
	amountCents int64
	currency    string
	settled     bool
	refunded    bool
}

// MockProvider settles intents in process. Outcomes and transient failures
// are scriptable so the ledger can be exercised end to end.
type MockProvider struct {
	mu       sync.Mutex
	intents  map[string]*mockIntent
	outcome  Result
	failNext int
	calls    map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		intents: make(map[string]*mockIntent),
		outcome: Result{Status: ResultSucceeded},
		calls:   make(map[string]int),
	}
}

func (m *MockProvider) Name() string { return "mock" }

// SetOutcome decides what every later Confirm reports.
func (m *MockProvider) SetOutcome(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = r
}

// FailNext makes the next n calls fail with ErrUnavailable.
func (m *MockProvider) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *MockProvider) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockProvider) begin(op string) error {
	m.calls[op]++
	if m.failNext > 0 {
		m.failNext--
		return ErrUnavailable
	}
	return nil
}

func (m *MockProvider) CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("create"); err != nil {
		return Intent{}, err
	}
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}

	id := "pi_" + uuid.NewString()
	m.intents[id] = &mockIntent{amountCents: amountCents, currency: currency}
	return Intent{ID: id, ClientSecret: id + "_secret_" + uuid.NewString()}, nil
}

func (m *MockProvider) Confirm(ctx context.Context, intentID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("confirm"); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	intent, ok := m.intents[intentID]
	if !ok {
		return Result{}, ErrIntentNotFound
	}
	if intent.settled {
		return Result{Status: ResultSucceeded}, nil
	}
	if m.outcome.Succeeded() {
		intent.settled = true
	}
	return m.outcome, nil
}

func (m *MockProvider) Refund(ctx context.Context, intentID string, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("refund"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	intent, ok := m.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	if !intent.settled || intent.refunded {
		return fmt.Errorf("intent %s cannot be refunded", intentID)
	}
	if amountCents != intent.amountCents {
		return fmt.Errorf("refund amount %d does not match charge %d", amountCents, intent.amountCents)
	}
	intent.refunded = true
	return nil
}
