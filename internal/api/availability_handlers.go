package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/availability"
)

func getAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		a, err := svc.GetOrCreate(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, a)
	}
}

func setAvailabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		var req SetAvailabilityRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		a, err := svc.Set(r.Context(), doctorID, availability.Config{
			DurationMinutes: req.DurationMinutes,
			SessionCapacity: req.SessionCapacity,
			Timezone:        req.Timezone,
			WeeklyHours:     req.WeeklyHours,
			Breaks:          toExceptionInputs(req.Breaks),
			Blocks:          toExceptionInputs(req.Blocks),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, a)
	}
}

func upsertDayHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		var req UpsertDayRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		a, err := svc.UpsertDay(r.Context(), doctorID, availability.DayInput{
			Date:            req.Date,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			DurationMinutes: req.DurationMinutes,
			SessionCapacity: req.SessionCapacity,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, a)
	}
}

func addBreakHandler(svc *availability.Service) http.HandlerFunc {
	return addExceptionHandler(svc.AddBreak)
}

func addBlockHandler(svc *availability.Service) http.HandlerFunc {
	return addExceptionHandler(svc.AddBlock)
}

type addExceptionFunc func(ctx context.Context, doctorID uuid.UUID, in availability.ExceptionInput) (*availability.Availability, availability.Exception, error)

func addExceptionHandler(add addExceptionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		var req ExceptionRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		_, e, err := add(r.Context(), doctorID, availability.ExceptionInput(req))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, e)
	}
}

func removeExceptionHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		exceptionID, ok := uuidParam(w, r, "exceptionID")
		if !ok {
			return
		}

		a, err := svc.RemoveException(r.Context(), doctorID, exceptionID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, a)
	}
}

func toExceptionInputs(in []ExceptionRequest) []availability.ExceptionInput {
	out := make([]availability.ExceptionInput, 0, len(in))
	for _, e := range in {
		out = append(out, availability.ExceptionInput(e))
	}
	return out
}
