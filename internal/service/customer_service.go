package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/export"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

const (
	defaultCustomerPage = 50
	maxCustomerPage     = 500
	exportBatch         = 500
)

// CustomerDirectory finds customer details outside the customer table,
// e.g. in calendar event payloads.
type CustomerDirectory interface {
	LookupCustomer(ctx context.Context, phone string, now time.Time) (*models.Customer, error)
}

type CustomerPage struct {
	Customers []*models.Customer
	Total     int
	Limit     int
	Offset    int
}

type CustomerService struct {
	store     domain.CustomerStore
	repo      domain.AppointmentRepository
	directory CustomerDirectory
	loc       *time.Location
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewCustomerService builds the service. directory may be nil.
func NewCustomerService(
	store domain.CustomerStore,
	repo domain.AppointmentRepository,
	directory CustomerDirectory,
	loc *time.Location,
	logger *zerolog.Logger,
) *CustomerService {
	if loc == nil {
		loc = time.UTC
	}
	return &CustomerService{store: store, repo: repo, directory: directory, loc: loc, now: time.Now, logger: logger}
}

// Lookup returns the known details for a phone, or nil when none exist.
// Directory failures are logged and reported as not found.
func (s *CustomerService) Lookup(ctx context.Context, rawPhone string) (*models.Customer, error) {
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, domain.ErrInvalidPhone.With(err)
	}

	c, err := s.store.GetCustomerByPhone(ctx, canonical)
	switch {
	case err == nil:
		return c, nil
	case !errors.Is(err, domain.ErrCustomerNotFound):
		return nil, domain.ErrTechnical.With(err)
	}

	if s.directory == nil {
		return nil, nil
	}
	c, err = s.directory.LookupCustomer(ctx, canonical, s.now())
	if err != nil {
		if !errors.Is(err, domain.ErrCustomerNotFound) {
			s.logger.Warn().Err(err).Str("phone", phone.Mask(canonical)).Msg("customer directory lookup failed")
		}
		return nil, nil
	}
	return c, nil
}

// Register creates a customer. An already registered phone yields
// domain.ErrCustomerExists along with the stored customer.
func (s *CustomerService) Register(ctx context.Context, name, rawPhone, email string) (*models.Customer, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || strings.TrimSpace(rawPhone) == "" || email == "" {
		return nil, domain.ErrMissingField
	}
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, domain.ErrInvalidPhone.With(err)
	}

	existing, err := s.store.GetCustomerByPhone(ctx, canonical)
	if err == nil {
		return existing, domain.ErrCustomerExists
	}
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		return nil, domain.ErrCustomerFailed.With(err)
	}

	c := &models.Customer{Name: name, Phone: canonical, Email: email}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		if errors.Is(err, domain.ErrCustomerExists) {
			existing, getErr := s.store.GetCustomerByPhone(ctx, canonical)
			if getErr == nil {
				return existing, domain.ErrCustomerExists
			}
		}
		return nil, domain.ErrCustomerFailed.With(err)
	}
	s.logger.Info().Str("customer_id", c.ID).Str("phone", phone.Mask(canonical)).Msg("customer registered")
	return c, nil
}

func (s *CustomerService) List(ctx context.Context, search string, limit, offset int) (*CustomerPage, error) {
	if limit <= 0 {
		limit = defaultCustomerPage
	}
	if limit > maxCustomerPage {
		limit = maxCustomerPage
	}
	if offset < 0 {
		offset = 0
	}
	customers, total, err := s.store.ListCustomers(ctx, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, domain.ErrTechnical.With(err)
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	return &CustomerPage{Customers: customers, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes a customer and their appointments. Without force, a
// customer with active future appointments is kept and the appointments are
// returned in the error.
func (s *CustomerService) Delete(ctx context.Context, id string, force bool) error {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.ErrCustomerNotFound
		}
		return domain.ErrTechnical.With(err)
	}

	if !force {
		n, err := s.store.CountActiveFutureByCustomer(ctx, id, s.now())
		if err != nil {
			return domain.ErrTechnical.With(err)
		}
		if n > 0 {
			future, err := s.repo.ListActiveFutureByPhone(ctx, c.Phone, s.now())
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to list future appointments")
			}
			return domain.ErrHasFutureAppts.WithExisting(future)
		}
	}

	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.ErrCustomerNotFound
		}
		return domain.ErrTechnical.With(err)
	}
	s.logger.Info().Str("customer_id", id).Bool("force", force).Msg("customer deleted")
	return nil
}

// Export writes every customer as an XLSX workbook to w.
func (s *CustomerService) Export(ctx context.Context, w io.Writer) error {
	var all []*models.Customer
	for offset := 0; ; offset += exportBatch {
		page, _, err := s.store.ListCustomers(ctx, "", exportBatch, offset)
		if err != nil {
			return domain.ErrTechnical.With(err)
		}
		all = append(all, page...)
		if len(page) < exportBatch {
			break
		}
	}

	upcoming := make(map[string]int, len(all))
	now := s.now()
	for _, c := range all {
		n, err := s.store.CountActiveFutureByCustomer(ctx, c.ID, now)
		if err != nil {
			return domain.ErrTechnical.With(err)
		}
		upcoming[c.ID] = n
	}
	if err := export.WriteCustomers(w, all, upcoming, s.loc); err != nil {
		return domain.ErrTechnical.With(err)
	}
	s.logger.Info().Int("customers", len(all)).Msg("customers exported")
	return nil
}
