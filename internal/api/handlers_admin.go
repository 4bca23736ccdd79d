package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/adirsaban8-oss/ADIRS/internal/adminstore"
	"github.com/adirsaban8-oss/ADIRS/internal/export"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

const (
	msgWrongPassword   = "סיסמה שגויה"
	msgPasswordMissing = "נדרשת סיסמה"
	msgAdminDisabled   = "ממשק הניהול אינו מוגדר"
	msgCustomerDeleted = "הלקוח/ה נמחק/ה בהצלחה"
	msgDateRequired    = "נדרש תאריך"
	msgFileRequired    = "לא נבחר קובץ"
	msgFilenameMissing = "נדרש שם קובץ"
	msgImagesMissing   = "נדרשת רשימת תמונות"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Password == "" {
		writeError(w, http.StatusBadRequest, msgPasswordMissing)
		return
	}
	if !s.auth.Enabled() {
		writeError(w, http.StatusServiceUnavailable, msgAdminDisabled)
		return
	}
	if !s.auth.CheckPassword(body.Password) {
		s.logger.Warn().Str("client", clientKey(r)).Msg("admin login failed")
		writeError(w, http.StatusUnauthorized, msgWrongPassword)
		return
	}

	token, expires, err := s.auth.Issue()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue admin session")
		writeError(w, http.StatusInternalServerError, genericError)
		return
	}
	s.auth.setCookie(w, token, expires)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleAdminCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := s.Customers.List(r.Context(), q.Get("search"), limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]customerView, 0, len(page.Customers))
	for _, c := range page.Customers {
		views = append(views, s.customerView(c, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": views,
		"total":     page.Total,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

func (s *HTTPServer) handleAdminDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	force := strings.EqualFold(r.URL.Query().Get("force"), "true")
	if err := s.Customers.Delete(r.Context(), r.PathValue("id"), force); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgCustomerDeleted})
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Customers.Export(r.Context(), &buf); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(s.now().In(s.Location))))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleBlockedSlots(w http.ResponseWriter, r *http.Request) {
	blocked, err := s.Blocked.All(r.Context())
	if err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocked)
}

func (s *HTTPServer) handleSetBlockedSlots(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Date) == "" {
		writeError(w, http.StatusBadRequest, msgDateRequired)
		return
	}

	blocked, err := s.Blocked.Set(r.Context(), body.Date, body.Slots)
	if err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	s.logger.Info().Str("date", body.Date).Int("slots", len(body.Slots)).Msg("blocked slots updated")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "blocked": blocked})
}

func (s *HTTPServer) handleClearBlockedSlots(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Date) == "" {
		writeError(w, http.StatusBadRequest, msgDateRequired)
		return
	}
	if err := s.Blocked.Clear(r.Context(), body.Date); err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleAdminGallery(w http.ResponseWriter, r *http.Request) {
	s.handlePublicGallery(w, r)
}

func (s *HTTPServer) handleGalleryUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, models.MaxGalleryUploadBytes+maxJSONBody)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.adminStoreError(w, r, adminstore.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgFileRequired)
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, msgFileRequired)
		return
	}

	name, err := s.Gallery.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	s.logger.Info().Str("filename", name).Msg("gallery image uploaded")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filename": name})
}

func (s *HTTPServer) handleGalleryDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filename string `json:"filename"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Filename) == "" {
		writeError(w, http.StatusBadRequest, msgFilenameMissing)
		return
	}
	if err := s.Gallery.Delete(r.Context(), body.Filename); err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleGalleryReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Images *[]string `json:"images"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Images == nil {
		writeError(w, http.StatusBadRequest, msgImagesMissing)
		return
	}
	if err := s.Gallery.Reorder(r.Context(), *body.Images); err != nil {
		s.adminStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// adminStoreError maps file store validation errors to 400 with a Hebrew message.
func (s *HTTPServer) adminStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, adminstore.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "תאריך לא תקין")
	case errors.Is(err, adminstore.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "שעה לא תקינה")
	case errors.Is(err, adminstore.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "סוג קובץ לא נתמך. יש להעלות JPG, PNG או WebP")
	case errors.Is(err, adminstore.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "הקובץ גדול מדי. עד 5MB")
	case errors.Is(err, adminstore.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, "הקובץ ריק")
	case errors.Is(err, adminstore.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, "שם קובץ לא תקין")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("admin store failed")
		writeError(w, http.StatusInternalServerError, genericError)
	}
}
