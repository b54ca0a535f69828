package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/scarcity"
)

type ScarcityRepository struct{ db *sqlx.DB }

var _ scarcity.Repository = (*ScarcityRepository)(nil)

func NewScarcityRepository(db *sqlx.DB) *ScarcityRepository {
	return &ScarcityRepository{db: db}
}

// LoadMetrics はレストランのテーブルタイプ別希少度スコアを返す
// テーブル未作成の環境では空のマップを返し、ヒューリスティックに委ねる
func (r *ScarcityRepository) LoadMetrics(ctx context.Context, restaurantID string) (map[string]float64, error) {
	var rows []struct {
		TableType string  `db:"table_type"`
		Score     float64 `db:"score"`
	}
	query := `SELECT table_type, score FROM table_scarcity_metrics WHERE restaurant_id = $1`
	if err := r.db.SelectContext(ctx, &rows, query, restaurantID); err != nil {
		if isMissingRelation(err) {
			return map[string]float64{}, nil
		}
		return nil, fmt.Errorf("希少度メトリクス取得に失敗: %w", err)
	}

	metrics := make(map[string]float64, len(rows))
	for _, row := range rows {
		metrics[row.TableType] = row.Score
	}
	return metrics, nil
}
