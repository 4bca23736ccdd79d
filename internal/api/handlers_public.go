package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/notify"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"
	"github.com/adirsaban8-oss/ADIRS/internal/service"
)

const (
	msgBooked       = "התור נקבע בהצלחה!"
	msgCancelled    = "התור בוטל בהצלחה"
	msgClosedDay    = "סגור ביום זה"
	msgContactSent  = "ההודעה נשלחה בהצלחה! אחזור אלייך בהקדם."
	msgPhoneMissing = "מספר טלפון חסר"
	robotsTxt       = "User-agent: *\nDisallow: /admin\nDisallow: /api/admin/\n"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().In(s.Location).Format(time.RFC3339),
		"email":     s.Status.Email,
		"calendar":  s.Status.Calendar,
		"sms":       s.Status.SMS,
		"storage":   s.Status.Storage,
	})
}

func (s *HTTPServer) handleRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(robotsTxt))
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": s.Catalog.Services()})
}

func (s *HTTPServer) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidDate.Message)
		return
	}

	res, err := s.Booking.AvailableSlots(r.Context(), date, q.Get("service"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if res.Closed {
		writeJSON(w, http.StatusOK, map[string]any{"slots": res.Slots, "message": msgClosedDay})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": res.Slots})
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.Booking.Book(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var eventID any
	if res.EventID != "" {
		eventID = res.EventID
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"message":        msgBooked,
		"event_id":       eventID,
		"appointment_id": res.Appointment.ID,
		"email_sent":     res.EmailQueued,
	})
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID string `json:"event_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if _, err := s.Booking.Cancel(r.Context(), body.EventID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgCancelled})
}

func (s *HTTPServer) handleMyAppointments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")

	raw := strings.TrimSpace(r.URL.Query().Get("phone"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, msgPhoneMissing)
		return
	}
	appts, err := s.Booking.MyAppointments(r.Context(), raw)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": s.appointmentViews(appts),
		"count":        len(appts),
	})
}

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Name, body.Phone, body.Message = strings.TrimSpace(body.Name), strings.TrimSpace(body.Phone), strings.TrimSpace(body.Message)
	if body.Name == "" || body.Phone == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, domain.ErrMissingField.Message)
		return
	}

	s.logger.Info().Str("phone", phone.Mask(body.Phone)).Msg("contact form submitted")
	if s.Owner != nil {
		if err := s.Owner.OwnerAlert(r.Context(), notify.ContactAlert(body.Name, body.Phone, body.Message)); err != nil {
			s.logger.Warn().Err(err).Msg("contact alert failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgContactSent})
}

func (s *HTTPServer) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Phone) == "" {
		writeError(w, http.StatusBadRequest, msgPhoneMissing)
		return
	}

	mock, err := s.OTP.Request(r.Context(), body.Phone)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mock": mock})
}

func (s *HTTPServer) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	err := s.OTP.Verify(r.Context(), body.Phone, body.Code)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"verified": true})
		return
	}
	status, payload := s.errorBody(r, err)
	if status < http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	delete(payload, "success")
	payload["verified"] = false
	writeJSON(w, status, payload)
}

func (s *HTTPServer) handleUserLookup(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("phone"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"found": false})
		return
	}

	c, err := s.Customers.Lookup(r.Context(), raw)
	if err != nil || c == nil {
		if err != nil && domain.KindOf(err) == domain.KindInternal {
			s.logger.Warn().Err(err).Msg("customer lookup failed")
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "name": c.Name, "email": c.Email})
}

func (s *HTTPServer) handleUserRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	c, err := s.Customers.Register(r.Context(), body.Name, body.Phone, body.Email)
	if err != nil {
		status, payload := s.errorBody(r, err)
		if c != nil {
			payload["customer"] = s.customerView(c, false)
		}
		writeJSON(w, status, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "customer": s.customerView(c, false)})
}

func (s *HTTPServer) handlePublicGallery(w http.ResponseWriter, r *http.Request) {
	g, err := s.Gallery.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("gallery list failed")
		writeError(w, http.StatusInternalServerError, genericError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
