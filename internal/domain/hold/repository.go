package hold

import (
	"context"
	"time"
)

// Repository はホールド永続化のインターフェース
type Repository interface {
	// Create はホールド行とテーブル所属行を一体で挿入する
	// 所属行の挿入に失敗した場合はホールド行をロールバックする
	Create(ctx context.Context, h *Hold) error

	// GetByID はIDからホールドを取得する（存在しない場合は NotFoundError）
	GetByID(ctx context.Context, id string) (*Hold, error)

	// UpdateExpiry はホールドの有効期限を更新する
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error

	// Delete はホールドを削除する（存在しないIDは何もしない）
	Delete(ctx context.Context, id string) error

	// FindConflicts は指定レストラン・テーブル集合・ウィンドウと重なる有効なホールドを返す
	FindConflicts(ctx context.Context, restaurantID string, tableIDs []string, startAt, endAt time.Time) ([]*Hold, error)

	// ListActiveForBooking は予約に紐づく未失効のホールドを返す
	ListActiveForBooking(ctx context.Context, bookingID string, now time.Time) ([]*Hold, error)

	// SweepExpired は expiresAt <= now のホールドをページサイズ上限で削除し、削除IDを返す
	SweepExpired(ctx context.Context, now time.Time, pageSize int) ([]string, error)
}
