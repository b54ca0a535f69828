package booking

import "context"

// Repository は予約コンテキストの読み取りインターフェース
type Repository interface {
	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// ListByDate はサービス日を共有する予約一覧を取得する（競合スキャン用）
	ListByDate(ctx context.Context, restaurantID, bookingDate string) ([]*Booking, error)

	// GetRestaurantTimezone はレストランのタイムゾーンを取得する
	GetRestaurantTimezone(ctx context.Context, restaurantID string) (string, error)
}
