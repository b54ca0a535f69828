package table

import (
	"context"
	"time"
)

// Repository はテーブルインベントリのインターフェース
// プランニング1回につき一度だけ読み取られる
type Repository interface {
	// GetByID はIDからテーブルを取得する
	GetByID(ctx context.Context, id string) (*Table, error)

	// ListByRestaurant はレストランの全テーブルを取得する
	ListByRestaurant(ctx context.Context, restaurantID string) ([]*Table, error)

	// ListAdjacency はテーブル集合内の隣接エッジを取得する
	ListAdjacency(ctx context.Context, tableIDs []string) ([][2]string, error)

	// ListBusyTableIDs は指定ウィンドウと重なる確定済みアサインを持つテーブルIDを返す
	ListBusyTableIDs(ctx context.Context, restaurantID string, startAt, endAt time.Time) ([]string, error)
}
