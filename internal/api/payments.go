package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/payment"
)

func toPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		TxnID:         p.TxnID,
		AppointmentID: p.AppointmentID,
		AmountCents:   p.AmountCents,
		Method:        string(p.Method),
		Status:        string(p.Status),
		ApprovedAt:    p.ApprovedAt,
	}
}

func openPaymentHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		p, err := svc.Open(r.Context(), appointmentID, req.AmountCents, payment.Method(req.Method))
		if err != nil {
			handlePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPaymentResponse(p))
	}
}

// approvePaymentHandler is the gateway webhook for approvals. Redelivered
// events respond 200 with the already-approved payment.
func approvePaymentHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txnID := chi.URLParam(r, "txn")

		var req ApprovePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		approvedAt := time.Now().UTC()
		if req.ApprovedAt != nil {
			approvedAt = *req.ApprovedAt
		}

		p, err := svc.MarkApproved(r.Context(), txnID, approvedAt)
		if err != nil {
			// The payment may have been approved while the appointment
			// refused confirmation; report the conflict, not a server error.
			if p != nil && errors.Is(err, appointment.ErrInvalidTransition) {
				writeError(w, http.StatusConflict, "appointment_not_confirmable", err.Error())
				return
			}
			handlePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

func getPaymentHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "txn"))
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

func failPaymentHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.MarkFailed(r.Context(), chi.URLParam(r, "txn"))
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

func refundPaymentHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Refund(r.Context(), chi.URLParam(r, "txn"))
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

func handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, payment.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "payment_not_found", err.Error())
	case errors.Is(err, payment.ErrInvalidMethod):
		writeError(w, http.StatusBadRequest, "invalid_method", err.Error())
	case errors.Is(err, payment.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, "amount_mismatch", err.Error())
	case errors.Is(err, payment.ErrPaymentExists):
		writeError(w, http.StatusConflict, "payment_exists", err.Error())
	case errors.Is(err, payment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, payment.ErrLedgerInconsistent):
		writeError(w, http.StatusInternalServerError, "ledger_inconsistent", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
