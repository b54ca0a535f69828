package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/transaction"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

type holdRow struct {
	ID           string          `db:"id"`
	BookingID    *string         `db:"booking_id"`
	RestaurantID string          `db:"restaurant_id"`
	ZoneID       string          `db:"zone_id"`
	TableIDs     pq.StringArray  `db:"table_ids"`
	StartAt      time.Time       `db:"start_at"`
	EndAt        time.Time       `db:"end_at"`
	ExpiresAt    time.Time       `db:"expires_at"`
	CreatedBy    *string         `db:"created_by"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r *holdRow) toEntity() (*hold.Hold, error) {
	var metadata map[string]string
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("ホールドメタデータの読み取りに失敗: %w", err)
		}
	}
	return &hold.Hold{
		ID: r.ID, BookingID: r.BookingID, RestaurantID: r.RestaurantID,
		ZoneID: r.ZoneID, TableIDs: r.TableIDs,
		StartAt: r.StartAt, EndAt: r.EndAt, ExpiresAt: r.ExpiresAt,
		CreatedBy: r.CreatedBy, Metadata: metadata, CreatedAt: r.CreatedAt,
	}, nil
}

type HoldRepository struct {
	db  *sqlx.DB
	txm transaction.Manager
}

var _ hold.Repository = (*HoldRepository)(nil)

func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db, txm: NewTxManager(db)}
}

// ホールド行とテーブル所属行をまとめて取得するための共通SELECT
const holdColumns = `h.id, h.booking_id, h.restaurant_id, h.zone_id,
	COALESCE(array_agg(ht.table_id ORDER BY ht.table_id)
		FILTER (WHERE ht.table_id IS NOT NULL), '{}') AS table_ids,
	h.start_at, h.end_at, h.expires_at, h.created_by, h.metadata, h.created_at`

// Create はホールド行とテーブル所属行を1トランザクションで挿入する
func (r *HoldRepository) Create(ctx context.Context, h *hold.Hold) error {
	metadata, err := json.Marshal(h.Metadata)
	if err != nil {
		return fmt.Errorf("ホールドメタデータの書き込みに失敗: %w", err)
	}

	return transaction.Run(ctx, r.txm, func(t transaction.Tx) error {
		tx := UnwrapTx(t)

		insertHold := `INSERT INTO holds
			(id, booking_id, restaurant_id, zone_id, start_at, end_at, expires_at, created_by, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.ExecContext(ctx, insertHold,
			h.ID, h.BookingID, h.RestaurantID, h.ZoneID,
			h.StartAt, h.EndAt, h.ExpiresAt, h.CreatedBy, metadata, h.CreatedAt,
		); err != nil {
			return fmt.Errorf("ホールド挿入に失敗: %w", err)
		}

		insertMember := `INSERT INTO hold_tables (hold_id, table_id) VALUES ($1, $2)`
		for _, tableID := range h.TableIDs {
			if _, err := tx.ExecContext(ctx, insertMember, h.ID, tableID); err != nil {
				return fmt.Errorf("ホールド所属テーブル挿入に失敗: %w", err)
			}
		}
		return nil
	})
}

func (r *HoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	var row holdRow
	query := `SELECT ` + holdColumns + `
		FROM holds h LEFT JOIN hold_tables ht ON ht.hold_id = h.id
		WHERE h.id = $1
		GROUP BY h.id`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &hold.NotFoundError{HoldID: id}
		}
		return nil, fmt.Errorf("ホールド取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *HoldRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE holds SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("ホールド期限更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ホールド期限更新の結果確認に失敗: %w", err)
	}
	if affected == 0 {
		return &hold.NotFoundError{HoldID: id}
	}
	return nil
}

// Delete はホールドを削除する。存在しないIDは何もしない
// 所属行は外部キーのON DELETE CASCADEで連動して消える
func (r *HoldRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM holds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ホールド削除に失敗: %w", err)
	}
	return nil
}

// FindConflicts は指定テーブル集合・半開区間 [startAt, endAt) と重なる
// 未失効ホールドを返す。予約単位の除外判定は呼び出し側で行う
//
// 通常は所属インデックス（hold_tables）経由の高速経路を使い、
// インデックスが未作成のスキーマ世代では店舗単位の走査に切り替える
func (r *HoldRepository) FindConflicts(ctx context.Context, restaurantID string, tableIDs []string, startAt, endAt time.Time) ([]*hold.Hold, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+holdColumns+`
		FROM holds h JOIN hold_tables ht ON ht.hold_id = h.id
		WHERE h.restaurant_id = ? AND h.expires_at > NOW()
		  AND h.start_at < ? AND ? < h.end_at
		  AND h.id IN (SELECT hold_id FROM hold_tables WHERE table_id IN (?))
		GROUP BY h.id
		ORDER BY h.created_at`,
		restaurantID, endAt, startAt, tableIDs)
	if err != nil {
		return nil, fmt.Errorf("競合クエリ構築に失敗: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []holdRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if isMissingRelation(err) {
			logger.Warn("ホールド所属インデックスが未作成のため走査経路に切り替えます", zap.Error(err))
			return r.findConflictsScan(ctx, restaurantID, tableIDs, startAt, endAt)
		}
		return nil, fmt.Errorf("ホールド競合検索に失敗: %w", err)
	}

	holds := make([]*hold.Hold, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// findConflictsScan は所属インデックスのない旧スキーマ世代向けの代替経路
// テーブルIDを holds.table_ids 列から読み、交差判定をプロセス内で行う
func (r *HoldRepository) findConflictsScan(ctx context.Context, restaurantID string, tableIDs []string, startAt, endAt time.Time) ([]*hold.Hold, error) {
	query := `SELECT id, booking_id, restaurant_id, zone_id, table_ids,
		start_at, end_at, expires_at, created_by, metadata, created_at
		FROM holds
		WHERE restaurant_id = $1 AND expires_at > NOW()
		ORDER BY created_at`

	var rows []holdRow
	if err := r.db.SelectContext(ctx, &rows, query, restaurantID); err != nil {
		return nil, fmt.Errorf("ホールド走査に失敗: %w", err)
	}
	return filterScannedConflicts(rows, tableIDs, startAt, endAt)
}

// filterScannedConflicts は走査結果から区間とテーブル集合の両方が交差する行だけを残す
// フィルタ条件は高速経路のWHERE句と同じ集合を与える
func filterScannedConflicts(rows []holdRow, tableIDs []string, startAt, endAt time.Time) ([]*hold.Hold, error) {
	holds := make([]*hold.Hold, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		if !h.SharesTable(tableIDs) || !h.OverlapsWindow(startAt, endAt) {
			continue
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// ListActiveForBooking は予約に紐づく未失効ホールドを作成順に返す
func (r *HoldRepository) ListActiveForBooking(ctx context.Context, bookingID string, now time.Time) ([]*hold.Hold, error) {
	query := `SELECT ` + holdColumns + `
		FROM holds h LEFT JOIN hold_tables ht ON ht.hold_id = h.id
		WHERE h.booking_id = $1 AND h.expires_at > $2
		GROUP BY h.id
		ORDER BY h.created_at`

	var rows []holdRow
	if err := r.db.SelectContext(ctx, &rows, query, bookingID, now); err != nil {
		return nil, fmt.Errorf("予約のホールド一覧取得に失敗: %w", err)
	}

	holds := make([]*hold.Hold, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// SweepExpired は期限切れホールドをページサイズ上限で削除し、削除IDを返す
// 複数ワーカーが同時に実行しても同じ行を二重に返さないようロックをスキップする
func (r *HoldRepository) SweepExpired(ctx context.Context, now time.Time, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var deleted []string
	query := `DELETE FROM holds WHERE id IN (
		SELECT id FROM holds WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	) RETURNING id`
	if err := r.db.SelectContext(ctx, &deleted, query, now, pageSize); err != nil {
		return nil, fmt.Errorf("期限切れホールド削除に失敗: %w", err)
	}
	return deleted, nil
}
