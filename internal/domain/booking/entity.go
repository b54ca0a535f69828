package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSeated    Status = "seated"
	StatusCancelled Status = "cancelled"
)

// Booking は予約エンティティを表す
type Booking struct {
	ID           string
	RestaurantID string
	PartySize    int
	BookingDate  string // "2006-01-02"
	StartTime    string // "15:04"
	StartAt      *time.Time
	ServiceKey   string
	ZoneID       string
	Status       Status
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive は座席競合の対象となる状態かを返す
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.RestaurantID == "" {
		return ErrRestaurantIDRequired
	}
	if b.PartySize <= 0 {
		return ErrInvalidPartySize
	}
	return nil
}
