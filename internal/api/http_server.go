package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/adminstore"
	"github.com/adirsaban8-oss/ADIRS/internal/availability"
	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/service"

	"github.com/rs/zerolog"
)

const maxJSONBody = 1 << 20

type Booking interface {
	Book(ctx context.Context, req service.BookingRequest) (*service.BookingResult, error)
	Cancel(ctx context.Context, ref string) (*models.Appointment, error)
	MyAppointments(ctx context.Context, phone string) ([]*models.Appointment, error)
	AvailableSlots(ctx context.Context, date, serviceName string) (availability.Result, error)
}

type Customers interface {
	Lookup(ctx context.Context, phone string) (*models.Customer, error)
	Register(ctx context.Context, name, phone, email string) (*models.Customer, error)
	List(ctx context.Context, search string, limit, offset int) (*service.CustomerPage, error)
	Delete(ctx context.Context, id string, force bool) error
	Export(ctx context.Context, w io.Writer) error
}

type OTP interface {
	Request(ctx context.Context, phone string) (bool, error)
	Verify(ctx context.Context, phone, code string) error
}

type Catalog interface {
	Services() []models.Service
}

type BlockedSlots interface {
	All(ctx context.Context) (adminstore.BlockedSlots, error)
	Set(ctx context.Context, date string, times []string) (adminstore.BlockedSlots, error)
	Clear(ctx context.Context, date string) error
}

type Gallery interface {
	List(ctx context.Context) (*adminstore.Gallery, error)
	Upload(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	Reorder(ctx context.Context, images []string) error
}

type OwnerAlerter interface {
	OwnerAlert(ctx context.Context, text string) error
}

// Status is what /health reports about the configured integrations.
type Status struct {
	Email    bool
	Calendar bool
	SMS      bool
	Storage  string
}

type Deps struct {
	Booking   Booking
	Customers Customers
	OTP       OTP
	Catalog   Catalog
	Blocked   BlockedSlots
	Gallery   Gallery
	Owner     OwnerAlerter
	Status    Status
	Location  *time.Location
}

// HTTPServer serves the public booking API and the admin API.
type HTTPServer struct {
	Deps
	cfg    config.APIConfig
	auth   *AdminAuth
	server *http.Server
	now    func() time.Time
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) (*HTTPServer, error) {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	auth, err := NewAdminAuth(cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin auth: %w", err)
	}
	httpLogger := logger.With().Str("component", "http").Logger()
	srv := &HTTPServer{Deps: deps, cfg: cfg, auth: auth, now: time.Now, logger: &httpLogger}

	handler := srv.loggingMiddleware(newRateLimiter(cfg.RateLimit).Wrap(srv.routes()))
	port := cfg.HTTP.Port
	if port == 0 {
		port = 8080
	}
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv, nil
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, h))
	}

	handle("GET /health", s.handleHealth)
	handle("GET /robots.txt", s.handleRobots)

	handle("GET /api/services", s.handleServices)
	handle("GET /api/available-slots", s.handleAvailableSlots)
	handle("POST /api/book", s.handleBook)
	handle("POST /api/cancel-appointment", s.handleCancel)
	handle("GET /api/my-appointments", s.handleMyAppointments)
	handle("POST /api/contact", s.handleContact)
	handle("POST /api/otp/request", s.handleOTPRequest)
	handle("POST /api/otp/verify", s.handleOTPVerify)
	handle("GET /api/user/lookup", s.handleUserLookup)
	handle("POST /api/user/register", s.handleUserRegister)
	handle("GET /api/gallery-images", s.handlePublicGallery)

	handle("POST /api/admin/login", s.handleAdminLogin)
	handle("POST /api/admin/logout", s.handleAdminLogout)
	handle("GET /api/admin/customers", s.auth.Require(s.handleAdminCustomers))
	handle("GET /api/admin/customers/export", s.auth.Require(s.handleAdminExport))
	handle("DELETE /api/admin/customers/{id}", s.auth.Require(s.handleAdminDeleteCustomer))
	handle("GET /api/admin/blocked-slots", s.auth.Require(s.handleBlockedSlots))
	handle("POST /api/admin/blocked-slots", s.auth.Require(s.handleSetBlockedSlots))
	handle("POST /api/admin/blocked-slots/clear", s.auth.Require(s.handleClearBlockedSlots))
	handle("GET /api/admin/gallery", s.auth.Require(s.handleAdminGallery))
	handle("POST /api/admin/gallery/upload", s.auth.Require(s.handleGalleryUpload))
	handle("POST /api/admin/gallery/delete", s.auth.Require(s.handleGalleryDelete))
	handle("POST /api/admin/gallery/reorder", s.auth.Require(s.handleGalleryReorder))

	handle("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return mux
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

func (s *HTTPServer) Addr() string { return s.server.Addr }

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func instrument(endpoint string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				if !recorder.wrote {
					writeError(recorder, http.StatusInternalServerError, "Internal server error")
				}
			}
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(recorder, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeJSON reads a JSON object body. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON data")
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wrote {
		return
	}
	r.status = status
	r.wrote = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
