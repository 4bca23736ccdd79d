package api

import (
	"errors"
	"net/http"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
)

const genericError = "שגיאה טכנית. נסי שוב"

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody renders err for the client. Internal causes are logged, never returned.
func (s *HTTPServer) errorBody(r *http.Request, err error) (int, map[string]any) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		return http.StatusInternalServerError, map[string]any{"success": false, "error": genericError}
	}

	status := statusFor(de.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	body := map[string]any{"success": false, "error": de.Message}
	if de.Code != "" {
		body["error_code"] = de.Code
	}

	switch {
	case errors.Is(err, domain.ErrCapExceeded) && len(de.Existing) > 0:
		body["existing_appointment"] = s.appointmentView(de.Existing[0])
		body["existing_appointments"] = s.appointmentViews(de.Existing)
	case errors.Is(err, domain.ErrHasFutureAppts):
		body["has_future_appointments"] = true
		body["future_appointments"] = s.appointmentViews(de.Existing)
	}
	return status, body
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.errorBody(r, err)
	writeJSON(w, status, body)
}
