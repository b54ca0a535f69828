package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

type tableRow struct {
	ID           string    `db:"id"`
	RestaurantID string    `db:"restaurant_id"`
	Number       string    `db:"table_number"`
	Capacity     int       `db:"capacity"`
	MinPartySize *int      `db:"min_party_size"`
	MaxPartySize *int      `db:"max_party_size"`
	ZoneID       string    `db:"zone_id"`
	Mobility     string    `db:"mobility"`
	Category     string    `db:"category"`
	SeatingType  string    `db:"seating_type"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *tableRow) toEntity() *table.Table {
	return &table.Table{
		ID: r.ID, RestaurantID: r.RestaurantID, Number: r.Number,
		Capacity: r.Capacity, MinPartySize: r.MinPartySize, MaxPartySize: r.MaxPartySize,
		ZoneID: r.ZoneID, Mobility: table.Mobility(r.Mobility),
		Category: r.Category, SeatingType: r.SeatingType, Active: r.Active,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type TableRepository struct{ db *sqlx.DB }

var _ table.Repository = (*TableRepository)(nil)

func NewTableRepository(db *sqlx.DB) *TableRepository {
	return &TableRepository{db: db}
}

func (r *TableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	var row tableRow
	query := `SELECT id, restaurant_id, table_number, capacity, min_party_size, max_party_size,
		zone_id, mobility, category, seating_type, active, created_at, updated_at
		FROM tables WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, table.ErrTableNotFound
		}
		return nil, fmt.Errorf("テーブル取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TableRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*table.Table, error) {
	var rows []tableRow
	query := `SELECT id, restaurant_id, table_number, capacity, min_party_size, max_party_size,
		zone_id, mobility, category, seating_type, active, created_at, updated_at
		FROM tables WHERE restaurant_id = $1 ORDER BY table_number`
	if err := r.db.SelectContext(ctx, &rows, query, restaurantID); err != nil {
		return nil, fmt.Errorf("テーブル一覧取得に失敗: %w", err)
	}

	tables := make([]*table.Table, 0, len(rows))
	for i := range rows {
		tables = append(tables, rows[i].toEntity())
	}
	return tables, nil
}

func (r *TableRepository) ListAdjacency(ctx context.Context, tableIDs []string) ([][2]string, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT table_a, table_b FROM table_adjacency WHERE table_a IN (?) AND table_b IN (?)`,
		tableIDs, tableIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("隣接クエリ構築に失敗: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []struct {
		TableA string `db:"table_a"`
		TableB string `db:"table_b"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("隣接関係取得に失敗: %w", err)
	}

	edges := make([][2]string, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, [2]string{row.TableA, row.TableB})
	}
	return edges, nil
}

// ListBusyTableIDs は指定ウィンドウと重なる確定済みアサインを持つテーブルIDを返す
// 区間は半開区間 [startAt, endAt) として比較する
func (r *TableRepository) ListBusyTableIDs(ctx context.Context, restaurantID string, startAt, endAt time.Time) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT a.table_id
		FROM assignments a
		JOIN tables t ON t.id = a.table_id
		WHERE t.restaurant_id = $1 AND a.start_at < $3 AND $2 < a.end_at`
	if err := r.db.SelectContext(ctx, &ids, query, restaurantID, startAt, endAt); err != nil {
		return nil, fmt.Errorf("使用中テーブル取得に失敗: %w", err)
	}
	return ids, nil
}
