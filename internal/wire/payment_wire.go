package wire

import (
	"net/http"

	"mindcare-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/api/payments/intents", paymentHandler.CreatePaymentIntent)
		// Authorised by the intent's client secret on top of the token
		r.Post("/api/payments/confirm", paymentHandler.ConfirmPayment)
		r.Get("/api/payments/{id}", paymentHandler.GetPayment)
		r.Post("/api/payments/{id}/refund", paymentHandler.RefundPayment)
		r.Get("/api/appointments/{id}/payments", paymentHandler.ListPayments)
	})
}
