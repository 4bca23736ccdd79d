package service

import (
	"context"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, appt *models.Appointment, c *models.Customer) error {
	return m.Called(ctx, appt, c).Error(0)
}
func (m *mockRepo) AttachExternalEventID(ctx context.Context, id, eventID string) error {
	return m.Called(ctx, id, eventID).Error(0)
}
func (m *mockRepo) ListActiveFutureByPhone(ctx context.Context, p string, now time.Time) ([]*models.Appointment, error) {
	args := m.Called(ctx, p, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}
func (m *mockRepo) CountActiveFutureByPhone(ctx context.Context, p string, now time.Time) (int, error) {
	args := m.Called(ctx, p, now)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) GetByRef(ctx context.Context, ref string) (*models.Appointment, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}
func (m *mockRepo) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) Complete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}
func (m *mockRepo) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockCustomers struct {
	mock.Mock
}

func (m *mockCustomers) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}
func (m *mockCustomers) GetCustomerByPhone(ctx context.Context, p string) (*models.Customer, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}
func (m *mockCustomers) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCustomers) ListCustomers(ctx context.Context, search string, limit, offset int) ([]*models.Customer, int, error) {
	args := m.Called(ctx, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Customer), args.Int(1), args.Error(2)
}
func (m *mockCustomers) DeleteCustomer(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockCustomers) CountActiveFutureByCustomer(ctx context.Context, id string, now time.Time) (int, error) {
	args := m.Called(ctx, id, now)
	return args.Int(0), args.Error(1)
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) CreateEvent(ctx context.Context, appt *models.Appointment) (string, error) {
	args := m.Called(ctx, appt)
	return args.String(0), args.Error(1)
}
func (m *mockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetAppointments(ctx context.Context, p string) ([]*models.Appointment, bool, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.Appointment), args.Bool(1), args.Error(2)
}
func (m *mockCache) SetAppointments(ctx context.Context, p string, appts []*models.Appointment) error {
	return m.Called(ctx, p, appts).Error(0)
}
func (m *mockCache) Invalidate(ctx context.Context, p string) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fakeBusy struct {
	intervals []models.BusyInterval
	err       error
}

func (f *fakeBusy) BusyIntervals(context.Context, time.Time) ([]models.BusyInterval, error) {
	return f.intervals, f.err
}

type fakeBlocked map[string][]string

func (f fakeBlocked) BlockedTimes(_ context.Context, date string) ([]string, error) {
	return f[date], nil
}
