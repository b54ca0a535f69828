package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/demand"
)

type demandRow struct {
	Label         string        `db:"label"`
	ServiceWindow string        `db:"service_window"`
	Days          pq.Int64Array `db:"days"`
	StartTime     string        `db:"start_time"`
	EndTime       string        `db:"end_time"`
	Multiplier    float64       `db:"multiplier"`
	Priority      int           `db:"priority"`
}

func (r *demandRow) toRule() *demand.Rule {
	days := make([]time.Weekday, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, time.Weekday(d))
	}
	return &demand.Rule{
		Label:         r.Label,
		ServiceWindow: r.ServiceWindow,
		Days:          days,
		Start:         r.StartTime,
		End:           r.EndTime,
		Multiplier:    r.Multiplier,
		Source:        "restaurant",
		Priority:      r.Priority,
	}
}

type DemandRepository struct{ db *sqlx.DB }

var _ demand.Repository = (*DemandRepository)(nil)

func NewDemandRepository(db *sqlx.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

// FetchMultiplier はレストラン固有の需要ルールのうち最も優先度の高いものを返す
// テーブル未作成の環境（段階的ロールアウト中）ではルール無しとして扱う
func (r *DemandRepository) FetchMultiplier(ctx context.Context, restaurantID string, dayOfWeek time.Weekday, serviceWindow string) (*demand.Result, error) {
	var row demandRow
	query := `SELECT label, service_window, days,
		COALESCE(to_char(start_time, 'HH24:MI'), '') AS start_time,
		COALESCE(to_char(end_time, 'HH24:MI'), '') AS end_time,
		multiplier, priority
		FROM demand_profiles
		WHERE restaurant_id = $1
		  AND lower(service_window) = lower($2)
		  AND $3 = ANY(days)
		ORDER BY priority DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &row, query, restaurantID, serviceWindow, int(dayOfWeek))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("需要プロファイル取得に失敗: %w", err)
	}

	rule := row.toRule()
	return &demand.Result{Multiplier: rule.Multiplier, Rule: rule}, nil
}

// isMissingRelation はテーブルや列がまだ存在しないスキーマ世代かを判定する
func isMissingRelation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 42P01: undefined_table, 42703: undefined_column
	return pqErr.Code == "42P01" || pqErr.Code == "42703"
}
