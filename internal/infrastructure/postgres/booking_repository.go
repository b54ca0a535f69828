package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/booking"
)

type bookingRow struct {
	ID           string     `db:"id"`
	RestaurantID string     `db:"restaurant_id"`
	PartySize    int        `db:"party_size"`
	BookingDate  string     `db:"booking_date"`
	StartTime    string     `db:"start_time"`
	StartAt      *time.Time `db:"start_at"`
	ServiceKey   string     `db:"service_key"`
	ZoneID       string     `db:"zone_id"`
	Status       string     `db:"status"`
	Notes        string     `db:"notes"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: r.ID, RestaurantID: r.RestaurantID, PartySize: r.PartySize,
		BookingDate: r.BookingDate, StartTime: r.StartTime, StartAt: r.StartAt,
		ServiceKey: r.ServiceKey, ZoneID: r.ZoneID,
		Status: booking.Status(r.Status), Notes: r.Notes,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type BookingRepository struct{ db *sqlx.DB }

var _ booking.Repository = (*BookingRepository)(nil)

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, restaurant_id, party_size,
	to_char(booking_date, 'YYYY-MM-DD') AS booking_date,
	COALESCE(to_char(start_time, 'HH24:MI'), '') AS start_time,
	start_at, service_key, zone_id, status, notes, created_at, updated_at`

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) ListByDate(ctx context.Context, restaurantID, bookingDate string) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE restaurant_id = $1 AND booking_date = $2
		ORDER BY start_at NULLS LAST, created_at`
	if err := r.db.SelectContext(ctx, &rows, query, restaurantID, bookingDate); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}

	bookings := make([]*booking.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toEntity())
	}
	return bookings, nil
}

func (r *BookingRepository) GetRestaurantTimezone(ctx context.Context, restaurantID string) (string, error) {
	var timezone string
	query := `SELECT timezone FROM restaurants WHERE id = $1`
	if err := r.db.GetContext(ctx, &timezone, query, restaurantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("レストラン %s が見つかりません", restaurantID)
		}
		return "", fmt.Errorf("タイムゾーン取得に失敗: %w", err)
	}
	return timezone, nil
}
