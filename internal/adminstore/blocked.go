package adminstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
)

// BlockedSlots maps "YYYY-MM-DD" to the "HH:MM" start times an admin closed.
type BlockedSlots map[string][]string

// BlockedStore persists BlockedSlots in a JSON file. Writes are serialized
// within the process only.
type BlockedStore struct {
	mu     sync.Mutex
	path   string
	logger *zerolog.Logger
}

func NewBlockedStore(path string, logger *zerolog.Logger) *BlockedStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BlockedStore{path: path, logger: logger}
}

// All returns every blocked date. A missing file is an empty set.
func (s *BlockedStore) All(_ context.Context) (BlockedSlots, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// BlockedTimes implements domain.BlockedSlotSource.
func (s *BlockedStore) BlockedTimes(ctx context.Context, date string) ([]string, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return all[date], nil
}

// Set replaces the blocked times for date. An empty list clears the date.
func (s *BlockedStore) Set(_ context.Context, date string, times []string) (BlockedSlots, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	cleaned, err := cleanTimes(times)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(cleaned) == 0 {
		delete(all, date)
	} else {
		all[date] = cleaned
	}
	if err := writeJSON(s.path, all); err != nil {
		return nil, err
	}
	s.logger.Info().Str("date", date).Int("slots", len(cleaned)).Msg("blocked slots updated")
	return all, nil
}

func (s *BlockedStore) Clear(ctx context.Context, date string) error {
	_, err := s.Set(ctx, date, nil)
	return err
}

func (s *BlockedStore) load() (BlockedSlots, error) {
	all := BlockedSlots{}
	if _, err := readJSON(s.path, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = BlockedSlots{}
	}
	return all, nil
}

func cleanTimes(times []string) ([]string, error) {
	seen := make(map[string]bool, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse(models.TimeLayout, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTime, t)
		}
		norm := parsed.Format(models.TimeLayout)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	sort.Strings(out)
	return out, nil
}
