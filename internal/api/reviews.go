package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/review"
)

func toReviewResponse(r *review.Review) ReviewResponse {
	return ReviewResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		PatientID:     r.PatientID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		Status:        string(r.Status),
	}
}

func submitReviewHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		rev, err := svc.Submit(r.Context(), appointmentID, patientID, req.Rating, req.Comment)
		if err != nil {
			handleReviewError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReviewResponse(rev))
	}
}

func moderateReviewHandler(fn func(r *http.Request, id uuid.UUID) (*review.Review, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_review_id", "id must be a valid UUID")
			return
		}

		rev, err := fn(r, id)
		if err != nil {
			handleReviewError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReviewResponse(rev))
	}
}

func approveReviewHandler(svc *review.Service) http.HandlerFunc {
	return moderateReviewHandler(func(r *http.Request, id uuid.UUID) (*review.Review, error) {
		return svc.Approve(r.Context(), id)
	})
}

func flagReviewHandler(svc *review.Service) http.HandlerFunc {
	return moderateReviewHandler(func(r *http.Request, id uuid.UUID) (*review.Review, error) {
		return svc.Flag(r.Context(), id)
	})
}

// listReviewsHandler returns only approved reviews, the public view.
func listReviewsHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
			return
		}

		reviews, err := svc.ListByProfessional(r.Context(), professionalID)
		if err != nil {
			handleReviewError(w, err)
			return
		}

		resp := make([]ReviewResponse, 0, len(reviews))
		for i := range reviews {
			resp = append(resp, toReviewResponse(&reviews[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ratingSummaryHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "id must be a valid UUID")
			return
		}

		summary, err := svc.RatingSummary(r.Context(), professionalID)
		if err != nil {
			handleReviewError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, RatingSummaryResponse{
			ProfessionalID: summary.ProfessionalID,
			Average:        summary.Average,
			Count:          summary.Count,
		})
	}
}

func handleReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "invalid_rating", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, review.ErrReviewNotFound):
		writeError(w, http.StatusNotFound, "review_not_found", err.Error())
	case errors.Is(err, review.ErrAppointmentNotCompleted):
		writeError(w, http.StatusConflict, "appointment_not_completed", err.Error())
	case errors.Is(err, review.ErrNotAppointmentPatient):
		writeError(w, http.StatusForbidden, "not_appointment_patient", err.Error())
	case errors.Is(err, review.ErrDuplicateReview):
		writeError(w, http.StatusConflict, "duplicate_review", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
