package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/payment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/review"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

// memState is shared in-memory backing for all four repositories, so the
// cross-module behavior (payment approval confirming the appointment,
// payment_confirmed derived from the ledger) is observable end to end.
type memState struct {
	professionals map[uuid.UUID]*appointment.Professional
	patients      map[uuid.UUID]*appointment.Patient
	slots         map[uuid.UUID]*schedule.Slot
	appointments  map[uuid.UUID]*appointment.Appointment
	payments      map[string]*payment.Payment
	reviews       map[uuid.UUID]*review.Review
}

func newMemState() *memState {
	return &memState{
		professionals: map[uuid.UUID]*appointment.Professional{},
		patients:      map[uuid.UUID]*appointment.Patient{},
		slots:         map[uuid.UUID]*schedule.Slot{},
		appointments:  map[uuid.UUID]*appointment.Appointment{},
		payments:      map[string]*payment.Payment{},
		reviews:       map[uuid.UUID]*review.Review{},
	}
}

func (st *memState) paymentConfirmed(appointmentID uuid.UUID) bool {
	for _, p := range st.payments {
		if p.AppointmentID == appointmentID {
			return p.Status == payment.StatusApproved
		}
	}
	return false
}

type memScheduleRepo struct{ st *memState }

func (r *memScheduleRepo) CreateSlot(_ context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end schedule.MinuteOfDay) (*schedule.Slot, error) {
	if _, ok := r.st.professionals[professionalID]; !ok {
		return nil, schedule.ErrProfessionalNotFound
	}
	s := &schedule.Slot{ID: uuid.New(), ProfessionalID: professionalID, Weekday: weekday, Start: start, End: end, Active: true}
	r.st.slots[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memScheduleRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*schedule.Slot, error) {
	s, ok := r.st.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memScheduleRepo) DeactivateSlot(_ context.Context, id uuid.UUID) error {
	s, ok := r.st.slots[id]
	if !ok {
		return schedule.ErrSlotNotFound
	}
	s.Active = false
	return nil
}

func (r *memScheduleRepo) ListSlots(_ context.Context, professionalID uuid.UUID) ([]schedule.Slot, error) {
	var out []schedule.Slot
	for _, s := range r.st.slots {
		if s.ProfessionalID == professionalID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memScheduleRepo) ListActiveSlots(_ context.Context, professionalID uuid.UUID, weekday time.Weekday) ([]schedule.Slot, error) {
	var out []schedule.Slot
	for _, s := range r.st.slots {
		if s.ProfessionalID == professionalID && s.Weekday == weekday && s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

type memAppointmentRepo struct{ st *memState }

func (r *memAppointmentRepo) GetProfessionalByID(_ context.Context, id uuid.UUID) (*appointment.Professional, error) {
	p, ok := r.st.professionals[id]
	if !ok {
		return nil, appointment.ErrProfessionalNotFound
	}
	return p, nil
}

func (r *memAppointmentRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	p, ok := r.st.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return p, nil
}

func (r *memAppointmentRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := r.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	cp.PaymentConfirmed = r.st.paymentConfirmed(id)
	return &cp, nil
}

func (r *memAppointmentRepo) ListBookedOnDate(_ context.Context, professionalID uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range r.st.appointments {
		if a.ProfessionalID == professionalID && a.Date.Equal(date) && a.Status != appointment.StatusCancelled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAppointmentRepo) CreatePendingAppointment(_ context.Context, professionalID, patientID uuid.UUID, date time.Time, start, end schedule.MinuteOfDay, meetingRef string) (*appointment.Appointment, error) {
	a := &appointment.Appointment{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		PatientID:      patientID,
		Date:           date,
		Start:          start,
		End:            end,
		Status:         appointment.StatusPending,
		MeetingRef:     meetingRef,
	}
	r.st.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, to appointment.Status, from ...appointment.Status) (*appointment.Appointment, error) {
	a, ok := r.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	for _, allowed := range from {
		if a.Status == allowed {
			a.Status = to
			cp := *a
			cp.PaymentConfirmed = r.st.paymentConfirmed(id)
			return &cp, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

type memPaymentRepo struct{ st *memState }

func (r *memPaymentRepo) GetByTxnID(_ context.Context, txnID string) (*payment.Payment, error) {
	p, ok := r.st.payments[txnID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetConsultationFeeCents(_ context.Context, appointmentID uuid.UUID) (int64, error) {
	a, ok := r.st.appointments[appointmentID]
	if !ok {
		return 0, payment.ErrAppointmentNotFound
	}
	return r.st.professionals[a.ProfessionalID].ConsultationFeeCents, nil
}

func (r *memPaymentRepo) CreatePending(_ context.Context, txnID string, appointmentID uuid.UUID, amountCents int64, method payment.Method) (*payment.Payment, error) {
	for _, p := range r.st.payments {
		if p.AppointmentID == appointmentID {
			return nil, payment.ErrPaymentExists
		}
	}
	p := &payment.Payment{TxnID: txnID, AppointmentID: appointmentID, AmountCents: amountCents, Method: method, Status: payment.StatusPending}
	r.st.payments[txnID] = p
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) UpdateStatus(_ context.Context, txnID string, from, to payment.Status, approvedAt *time.Time) (*payment.Payment, error) {
	p, ok := r.st.payments[txnID]
	if !ok || p.Status != from {
		return nil, payment.ErrPaymentNotFound
	}
	p.Status = to
	if approvedAt != nil {
		p.ApprovedAt = approvedAt
	}
	cp := *p
	return &cp, nil
}

type memReviewRepo struct{ st *memState }

func (r *memReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*review.Review, error) {
	rev, ok := r.st.reviews[id]
	if !ok {
		return nil, review.ErrReviewNotFound
	}
	cp := *rev
	return &cp, nil
}

func (r *memReviewRepo) Create(_ context.Context, appointmentID, patientID uuid.UUID, rating int16, comment string) (*review.Review, error) {
	for _, rev := range r.st.reviews {
		if rev.AppointmentID == appointmentID {
			return nil, review.ErrDuplicateReview
		}
	}
	rev := &review.Review{ID: uuid.New(), AppointmentID: appointmentID, PatientID: patientID, Rating: rating, Comment: comment, Status: review.StatusPending}
	r.st.reviews[rev.ID] = rev
	cp := *rev
	return &cp, nil
}

func (r *memReviewRepo) UpdateStatus(_ context.Context, id uuid.UUID, to review.Status) (*review.Review, error) {
	rev, ok := r.st.reviews[id]
	if !ok {
		return nil, review.ErrReviewNotFound
	}
	rev.Status = to
	cp := *rev
	return &cp, nil
}

func (r *memReviewRepo) ListByProfessional(_ context.Context, professionalID uuid.UUID, onlyApproved bool) ([]review.Review, error) {
	var out []review.Review
	for _, rev := range r.st.reviews {
		a := r.st.appointments[rev.AppointmentID]
		if a == nil || a.ProfessionalID != professionalID {
			continue
		}
		if onlyApproved && rev.Status != review.StatusApproved {
			continue
		}
		out = append(out, *rev)
	}
	return out, nil
}

func (r *memReviewRepo) RatingSummary(_ context.Context, professionalID uuid.UUID) (*review.RatingSummary, error) {
	var sum, count int64
	for _, rev := range r.st.reviews {
		a := r.st.appointments[rev.AppointmentID]
		if a == nil || a.ProfessionalID != professionalID || rev.Status != review.StatusApproved {
			continue
		}
		sum += int64(rev.Rating)
		count++
	}
	summary := &review.RatingSummary{ProfessionalID: professionalID, Count: count}
	if count > 0 {
		summary.Average = float64(sum) / float64(count)
	}
	return summary, nil
}

type passLocker struct{}

func (passLocker) WithProfessionalLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	server *httptest.Server
	state  *memState
	profID uuid.UUID
	patID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newMemState()
	profID := uuid.New()
	patID := uuid.New()
	st.professionals[profID] = &appointment.Professional{ID: profID, Name: "Dra. Ana", Specialty: appointment.SpecialtyPsychologist, ConsultationFeeCents: 15000}
	st.patients[patID] = &appointment.Patient{ID: patID, Name: "João"}

	calendar := schedule.NewService(&memScheduleRepo{st: st})
	scheduler := appointment.NewService(&memAppointmentRepo{st: st}, calendar, passLocker{}, nil, nil, time.Hour)
	ledger := payment.NewService(&memPaymentRepo{st: st}, scheduler, nil, nil)
	reviews := review.NewService(&memReviewRepo{st: st}, scheduler, nil, nil)

	router := NewRouter(RouterConfig{
		Calendar:  calendar,
		Scheduler: scheduler,
		Ledger:    ledger,
		Reviews:   reviews,
		Env:       "test",
		Version:   "test",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, state: st, profID: profID, patID: patID}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t)

	// Publish Wednesday 14:00-18:00.
	resp := env.post(t, "/slots", CreateSlotRequest{
		ProfessionalID: env.profID.String(),
		Weekday:        int(time.Wednesday),
		Start:          "14:00",
		End:            "18:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	slot := decode[SlotResponse](t, resp)
	assert.True(t, slot.Active)

	// 2025-09-03 is a Wednesday.
	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "14:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, "14:00", appt.Start)
	assert.Equal(t, "15:00", appt.End)
	assert.Contains(t, appt.MeetingURL, "https://meet.google.com/")
	assert.False(t, appt.PaymentConfirmed)

	// Overlap is refused.
	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "14:30",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_conflict", decode[ErrorResponse](t, resp).Error)

	// Outside the published window.
	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "19:00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "outside_availability", decode[ErrorResponse](t, resp).Error)

	// Wrong weekday, same window.
	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-04",
		Start:          "14:00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentConfirmsAppointmentFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/slots", CreateSlotRequest{
		ProfessionalID: env.profID.String(),
		Weekday:        int(time.Wednesday),
		Start:          "14:00",
		End:            "18:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "15:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[AppointmentResponse](t, resp)

	// Wrong amount is rejected before any row is written.
	resp = env.post(t, "/payments", OpenPaymentRequest{
		AppointmentID: appt.ID.String(),
		AmountCents:   9900,
		Method:        "pix",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "amount_mismatch", decode[ErrorResponse](t, resp).Error)

	resp = env.post(t, "/payments", OpenPaymentRequest{
		AppointmentID: appt.ID.String(),
		AmountCents:   15000,
		Method:        "pix",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pay := decode[PaymentResponse](t, resp)
	assert.Equal(t, "pending", pay.Status)
	assert.Contains(t, pay.TxnID, "txn_")

	// One payment per appointment.
	resp = env.post(t, "/payments", OpenPaymentRequest{
		AppointmentID: appt.ID.String(),
		AmountCents:   15000,
		Method:        "credit_card",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Gateway approval confirms the appointment.
	resp = env.post(t, fmt.Sprintf("/payments/%s/approve", pay.TxnID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[PaymentResponse](t, resp)
	assert.Equal(t, "approved", approved.Status)

	resp = env.get(t, "/appointments/"+appt.ID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.True(t, confirmed.PaymentConfirmed)

	// Redelivered approval is a 200 no-op.
	resp = env.post(t, fmt.Sprintf("/payments/%s/approve", pay.TxnID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestApprovalAfterCancelConflicts(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/slots", CreateSlotRequest{
		ProfessionalID: env.profID.String(),
		Weekday:        int(time.Wednesday),
		Start:          "14:00",
		End:            "18:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "16:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[AppointmentResponse](t, resp)

	resp = env.post(t, "/payments", OpenPaymentRequest{
		AppointmentID: appt.ID.String(),
		AmountCents:   15000,
		Method:        "boleto",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pay := decode[PaymentResponse](t, resp)

	// Patient cancels before the gateway approves.
	resp = env.post(t, "/appointments/"+appt.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, fmt.Sprintf("/payments/%s/approve", pay.TxnID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "appointment_not_confirmable", decode[ErrorResponse](t, resp).Error)

	// The payment was approved and can now be refunded.
	resp = env.post(t, fmt.Sprintf("/payments/%s/refund", pay.TxnID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refunded := decode[PaymentResponse](t, resp)
	assert.Equal(t, "refunded", refunded.Status)
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/slots", CreateSlotRequest{
		ProfessionalID: env.profID.String(),
		Weekday:        int(time.Wednesday),
		Start:          "14:00",
		End:            "18:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/appointments", BookAppointmentRequest{
		ProfessionalID: env.profID.String(),
		PatientID:      env.patID.String(),
		Date:           "2025-09-03",
		Start:          "17:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decode[AppointmentResponse](t, resp)

	// Reviews are locked until the appointment is completed.
	resp = env.post(t, "/reviews", SubmitReviewRequest{
		AppointmentID: appt.ID.String(),
		PatientID:     env.patID.String(),
		Rating:        5,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "appointment_not_completed", decode[ErrorResponse](t, resp).Error)

	// Pay, approve, complete.
	resp = env.post(t, "/payments", OpenPaymentRequest{
		AppointmentID: appt.ID.String(),
		AmountCents:   15000,
		Method:        "pix",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pay := decode[PaymentResponse](t, resp)

	resp = env.post(t, fmt.Sprintf("/payments/%s/approve", pay.TxnID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/appointments/"+appt.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.post(t, "/reviews", SubmitReviewRequest{
		AppointmentID: appt.ID.String(),
		PatientID:     env.patID.String(),
		Rating:        5,
		Comment:       "ótimo atendimento",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rev := decode[ReviewResponse](t, resp)
	assert.Equal(t, "pending", rev.Status)

	// Unmoderated reviews do not count toward the rating.
	resp = env.get(t, "/professionals/"+env.profID.String()+"/rating")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[RatingSummaryResponse](t, resp)
	assert.Equal(t, int64(0), summary.Count)

	resp = env.post(t, "/reviews/"+rev.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/professionals/"+env.profID.String()+"/rating")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary = decode[RatingSummaryResponse](t, resp)
	assert.Equal(t, int64(1), summary.Count)
	assert.Equal(t, 5.0, summary.Average)
}
