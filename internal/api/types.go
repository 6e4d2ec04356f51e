package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateSlotRequest struct {
	ProfessionalID string `json:"professional_id"`
	Weekday        int    `json:"weekday"` // 0 = Sunday ... 6 = Saturday
	Start          string `json:"start"`   // "HH:MM"
	End            string `json:"end"`     // "HH:MM"
}

type SlotResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Weekday        int       `json:"weekday"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Active         bool      `json:"active"`
}

type BookAppointmentRequest struct {
	ProfessionalID  string `json:"professional_id"`
	PatientID       string `json:"patient_id"`
	Date            string `json:"date"`  // "2006-01-02"
	Start           string `json:"start"` // "HH:MM"
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ProfessionalID   uuid.UUID `json:"professional_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	Date             string    `json:"date"`
	Start            string    `json:"start"`
	End              string    `json:"end"`
	Status           string    `json:"status"`
	MeetingURL       string    `json:"meeting_url"`
	PaymentConfirmed bool      `json:"payment_confirmed"`
}

type OpenPaymentRequest struct {
	AppointmentID string `json:"appointment_id"`
	AmountCents   int64  `json:"amount_cents"`
	Method        string `json:"method"` // credit_card, pix, boleto
}

type ApprovePaymentRequest struct {
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

type PaymentResponse struct {
	TxnID         string     `json:"transaction_id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	AmountCents   int64      `json:"amount_cents"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}

type SubmitReviewRequest struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	Rating        int16  `json:"rating"`
	Comment       string `json:"comment"`
}

type ReviewResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Rating        int16     `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	Status        string    `json:"status"`
}

type RatingSummaryResponse struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	Average        float64   `json:"average"`
	Count          int64     `json:"count"`
}
