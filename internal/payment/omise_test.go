package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOmise(t *testing.T, handler http.HandlerFunc) *OmiseProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewOmiseProvider("pkey_test_123", "skey_test_123")
	require.NoError(t, err)
	p.base.Endpoints["https://api.omise.co"] = srv.URL
	return p
}

func TestOmise_ConfirmMapsChargeStatus(t *testing.T) {
	p := newTestOmise(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/charges/chrg_ok":
			_, _ = w.Write([]byte(`{"object":"charge","id":"chrg_ok","status":"successful"}`))
		case "/charges/chrg_wait":
			_, _ = w.Write([]byte(`{"object":"charge","id":"chrg_wait","status":"pending"}`))
		case "/charges/chrg_bad":
			_, _ = w.Write([]byte(`{"object":"charge","id":"chrg_bad","status":"failed","failure_code":"insufficient_fund","failure_message":"no money"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","code":"not_found","message":"charge was not found"}`))
		}
	})
	ctx := context.Background()

	res, err := p.Confirm(ctx, "chrg_ok")
	require.NoError(t, err)
	assert.Equal(t, ResultSucceeded, res.Status)

	res, err = p.Confirm(ctx, "chrg_wait")
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res.Status)

	res, err = p.Confirm(ctx, "chrg_bad")
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, res.Status)
	assert.Equal(t, "insufficient_fund", res.FailureCode)
	assert.Equal(t, "no money", res.FailureMessage)

	_, err = p.Confirm(ctx, "chrg_gone")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestOmise_CallHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	p := newTestOmise(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	// runs before the server closes
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Confirm(ctx, "chrg_slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
