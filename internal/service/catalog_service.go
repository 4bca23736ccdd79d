package service

import (
	"strings"
	"sync"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
)

// DefaultSlotDuration applies to availability queries without a known service.
const DefaultSlotDuration = 60

// CatalogService serves the studio's service list.
type CatalogService struct {
	mu       sync.RWMutex
	services []models.Service
	byName   map[string]models.Service
	logger   *zerolog.Logger
}

func NewCatalogService(services []models.Service, logger *zerolog.Logger) *CatalogService {
	s := &CatalogService{logger: logger}
	s.Replace(services)
	return s
}

// Services returns a copy of the catalog in configured order.
func (s *CatalogService) Services() []models.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Service, len(s.services))
	copy(out, s.services)
	return out
}

// Lookup resolves a service by its key or its localized display name.
func (s *CatalogService) Lookup(name string) (models.Service, error) {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if svc, ok := s.byName[name]; ok {
		return svc, nil
	}
	return models.Service{}, domain.ErrUnknownService
}

// DurationFor returns the duration in minutes for name, or DefaultSlotDuration.
func (s *CatalogService) DurationFor(name string) int {
	if name == "" {
		return DefaultSlotDuration
	}
	svc, err := s.Lookup(name)
	if err != nil {
		return DefaultSlotDuration
	}
	return svc.DurationMinutes
}

// Replace swaps the catalog, e.g. after the services file was reloaded.
func (s *CatalogService) Replace(services []models.Service) {
	byName := make(map[string]models.Service, len(services)*2)
	for _, svc := range services {
		byName[svc.Name] = svc
		if svc.DisplayName != "" {
			byName[svc.DisplayName] = svc
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = append([]models.Service(nil), services...)
	s.byName = byName
	if s.logger != nil {
		s.logger.Debug().Int("services", len(services)).Msg("catalog loaded")
	}
}
