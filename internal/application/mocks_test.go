package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/booking"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/demand"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/scarcity"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

// === Mock implementations ===

// MockHoldRepository implements hold.Repository
type MockHoldRepository struct {
	mock.Mock
}

var _ hold.Repository = (*MockHoldRepository)(nil)

func (m *MockHoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockHoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	args := m.Called(ctx, id, expiresAt)
	return args.Error(0)
}

func (m *MockHoldRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockHoldRepository) FindConflicts(ctx context.Context, restaurantID string, tableIDs []string, startAt, endAt time.Time) ([]*hold.Hold, error) {
	args := m.Called(ctx, restaurantID, tableIDs, startAt, endAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) ListActiveForBooking(ctx context.Context, bookingID string, now time.Time) ([]*hold.Hold, error) {
	args := m.Called(ctx, bookingID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldRepository) SweepExpired(ctx context.Context, now time.Time, pageSize int) ([]string, error) {
	args := m.Called(ctx, now, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

var _ booking.Repository = (*MockBookingRepository)(nil)

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByDate(ctx context.Context, restaurantID, bookingDate string) ([]*booking.Booking, error) {
	args := m.Called(ctx, restaurantID, bookingDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetRestaurantTimezone(ctx context.Context, restaurantID string) (string, error) {
	args := m.Called(ctx, restaurantID)
	return args.String(0), args.Error(1)
}

// MockTableRepository implements table.Repository
type MockTableRepository struct {
	mock.Mock
}

var _ table.Repository = (*MockTableRepository)(nil)

func (m *MockTableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

func (m *MockTableRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*table.Table, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*table.Table), args.Error(1)
}

func (m *MockTableRepository) ListAdjacency(ctx context.Context, tableIDs []string) ([][2]string, error) {
	args := m.Called(ctx, tableIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][2]string), args.Error(1)
}

func (m *MockTableRepository) ListBusyTableIDs(ctx context.Context, restaurantID string, startAt, endAt time.Time) ([]string, error) {
	args := m.Called(ctx, restaurantID, startAt, endAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockCommitter implements assignment.Committer
type MockCommitter struct {
	mock.Mock
}

var _ assignment.Committer = (*MockCommitter)(nil)

func (m *MockCommitter) Commit(ctx context.Context, commitArgs assignment.CommitArgs) ([]*assignment.Record, error) {
	args := m.Called(ctx, commitArgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*assignment.Record), args.Error(1)
}

// MockDemandRepository implements demand.Repository
type MockDemandRepository struct {
	mock.Mock
}

var _ demand.Repository = (*MockDemandRepository)(nil)

func (m *MockDemandRepository) FetchMultiplier(ctx context.Context, restaurantID string, dayOfWeek time.Weekday, serviceWindow string) (*demand.Result, error) {
	args := m.Called(ctx, restaurantID, dayOfWeek, serviceWindow)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*demand.Result), args.Error(1)
}

// MockScarcityRepository implements scarcity.Repository
type MockScarcityRepository struct {
	mock.Mock
}

var _ scarcity.Repository = (*MockScarcityRepository)(nil)

func (m *MockScarcityRepository) LoadMetrics(ctx context.Context, restaurantID string) (map[string]float64, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// MockEmitter implements event.Emitter
type MockEmitter struct {
	mock.Mock
}

var _ event.Emitter = (*MockEmitter)(nil)

func (m *MockEmitter) Emit(ctx context.Context, eventType string, payload map[string]any) {
	m.Called(ctx, eventType, payload)
}
