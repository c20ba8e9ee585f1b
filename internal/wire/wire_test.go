package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindcare-booking/internal/data/entity"
	"mindcare-booking/internal/data/repository/memory"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/internal/usecase"
	"mindcare-booking/pkg/middleware"
	"mindcare-booking/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const secret = "wire-test-secret"

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *memory.Store
}

func newTestServer(t *testing.T, health func(context.Context) error) (*testServer, entity.Actor, entity.Actor) {
	t.Helper()

	dir := directory.NewMemoryDirectory()
	user := entity.User{Base: entity.Base{ID: uuid.New()}, FullName: "Ana"}
	prof := entity.Professional{Base: entity.Base{ID: uuid.New()}, FullName: "Dr. Ruiz", RateCents: 50000, Currency: "COP", Active: true}
	dir.AddUser(user)
	dir.AddProfessional(prof)

	store := memory.NewStore()
	config := &utils.Config{
		JWT:     utils.JWTConfig{Secret: secret},
		Booking: utils.BookingConfig{HoldTTL: 15 * time.Minute, BulkLimit: 500},
	}
	log := zap.NewNop()
	provider := payment.NewResilientProvider(payment.NewMockProvider(), payment.ResilienceConfig{
		MaxRetries: 1, RetryBase: time.Millisecond,
	}, log)

	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	app := Wiring(Deps{
		Repo:      store.Repository(),
		Directory: dir,
		Provider:  provider,
		Publisher: events.NewNoopPublisher(log),
		Health:    health,
	}, config, log, usecase.WithClock(func() time.Time { return now }), usecase.WithSecretCost(bcrypt.MinCost))

	return &testServer{t: t, router: app.Router, store: store},
		entity.Actor{ID: user.ID, Kind: entity.KindUser},
		entity.Actor{ID: prof.ID, Kind: entity.KindProfessional}
}

func (s *testServer) token(actor entity.Actor) string {
	s.t.Helper()
	claims := middleware.Claims{
		Role: string(actor.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(s.t, err)
	return signed
}

func (s *testServer) do(actor *entity.Actor, method, path string, body any, out any) int {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*actor))
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil {
		var resp apiResponse
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
		if len(resp.Data) > 0 {
			require.NoError(s.t, json.Unmarshal(resp.Data, out))
		}
	}
	return rec.Code
}

func TestAPI_BookAndPay(t *testing.T) {
	srv, user, prof := newTestServer(t, nil)
	other := entity.Actor{ID: uuid.New(), Kind: entity.KindUser}

	var slot struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	code := srv.do(&prof, http.MethodPost, "/api/professionals/"+prof.ID.String()+"/slots", map[string]any{
		"start_at":         "2024-11-03T14:00:00Z",
		"duration_minutes": 60,
		"timezone":         "America/Bogota",
	}, &slot)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "FREE", slot.Status)

	code = srv.do(&user, http.MethodPost, "/api/professionals/"+prof.ID.String()+"/slots", map[string]any{
		"start_at": "2024-11-03T15:00:00Z", "duration_minutes": 60, "timezone": "UTC",
	}, nil)
	assert.Equal(t, http.StatusForbidden, code, "users cannot publish slots")

	var available []struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusOK, srv.do(&user, http.MethodGet, "/api/professionals/"+prof.ID.String()+"/slots", nil, &available))
	require.Len(t, available, 1)

	var appointment struct {
		ID                 string `json:"id"`
		Status             string `json:"status"`
		PaymentAmountCents int64  `json:"payment_amount_cents"`
		PaymentCurrency    string `json:"payment_currency"`
	}
	booking := map[string]string{"professional_id": prof.ID.String(), "slot_id": slot.ID}
	require.Equal(t, http.StatusCreated, srv.do(&user, http.MethodPost, "/api/appointments", booking, &appointment))
	assert.Equal(t, "PENDING_PAYMENT", appointment.Status)
	assert.Equal(t, int64(50000), appointment.PaymentAmountCents)

	assert.Equal(t, http.StatusConflict, srv.do(&user, http.MethodPost, "/api/appointments", booking, nil))
	assert.Equal(t, http.StatusUnauthorized, srv.do(&other, http.MethodGet, "/api/appointments/"+appointment.ID, nil, nil), "unknown account")
	assert.Equal(t, http.StatusNotFound, srv.do(&user, http.MethodGet, "/api/appointments/"+uuid.NewString(), nil, nil))
	assert.Equal(t, http.StatusBadRequest, srv.do(&user, http.MethodPost, "/api/appointments", map[string]string{"slot_id": "x"}, nil))

	assert.Equal(t, http.StatusBadRequest, srv.do(&user, http.MethodPost, "/api/payments/intents", map[string]any{
		"appointment_id": appointment.ID, "amount_cents": 1, "currency": "COP",
	}, nil), "amount mismatch")

	var intent struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
	}
	require.Equal(t, http.StatusCreated, srv.do(&user, http.MethodPost, "/api/payments/intents", map[string]any{
		"appointment_id": appointment.ID, "amount_cents": 50000, "currency": "COP",
	}, &intent))
	require.NotEmpty(t, intent.ClientSecret)

	var confirmed struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
		Appointment struct {
			Status string `json:"status"`
			Paid   bool   `json:"paid"`
		} `json:"appointment"`
	}
	require.Equal(t, http.StatusOK, srv.do(&user, http.MethodPost, "/api/payments/confirm", map[string]string{
		"intent_id": intent.IntentID, "client_secret": intent.ClientSecret,
	}, &confirmed))
	assert.Equal(t, "COMPLETED", confirmed.Payment.Status)
	assert.Equal(t, "CONFIRMED", confirmed.Appointment.Status)
	assert.True(t, confirmed.Appointment.Paid)

	assert.Equal(t, http.StatusConflict, srv.do(&user, http.MethodPost, "/api/appointments/"+appointment.ID+"/cancel", nil, nil))
	assert.Equal(t, http.StatusForbidden, srv.do(&user, http.MethodPost, "/api/appointments/"+appointment.ID+"/start", nil, nil))
	assert.Equal(t, http.StatusOK, srv.do(&prof, http.MethodPost, "/api/appointments/"+appointment.ID+"/start", nil, nil))

	var payments []struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusOK, srv.do(&prof, http.MethodGet, "/api/appointments/"+appointment.ID+"/payments", nil, &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, confirmed.Payment.ID, payments[0].ID)
}

func TestAPI_RequiresToken(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusUnauthorized, srv.do(nil, http.MethodGet, "/api/appointments", nil, nil))
}

func TestAPI_Health(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, srv.do(nil, http.MethodGet, "/health", nil, nil))

	down, _, _ := newTestServer(t, func(context.Context) error { return errors.New("connection refused") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(nil, http.MethodGet, "/health", nil, nil))
}
