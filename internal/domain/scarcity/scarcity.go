// Package scarcity はテーブルタイプごとの希少度スコアを提供する
package scarcity

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

// Repository は希少度メトリクスの読み取りインターフェース
type Repository interface {
	// LoadMetrics はレストランのテーブルタイプ別希少度スコアを返す
	LoadMetrics(ctx context.Context, restaurantID string) (map[string]float64, error)
}

// DeriveTableType はテーブルの希少度キーを導出する
// 形式: "capacity:N|category:c|seating:s"
func DeriveTableType(t *table.Table) string {
	capacity := t.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return fmt.Sprintf("capacity:%d|category:%s|seating:%s",
		capacity,
		sanitizeSegment(t.Category, "uncategorized"),
		sanitizeSegment(t.SeatingType, "standard"))
}

// ComputeScore はタイプ内のテーブル数から希少度スコアを計算する
func ComputeScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return round4(1 / float64(count))
}

// HeuristicScores はメトリクスが無いテーブルに対して
// 需要重み / 座席供給量 のヒューリスティックでスコアを補完する
func HeuristicScores(tables []*table.Table, metrics map[string]float64) map[string]float64 {
	seatSupplyByCapacity := make(map[int]int)
	for _, t := range tables {
		if t.Capacity > 0 {
			seatSupplyByCapacity[t.Capacity] += t.Capacity
		}
	}

	scores := make(map[string]float64, len(tables))
	for _, t := range tables {
		tableType := DeriveTableType(t)
		if score, ok := metrics[tableType]; ok && score > 0 {
			scores[t.ID] = round4(score)
			continue
		}
		supply := seatSupplyByCapacity[t.Capacity]
		if supply < 1 {
			supply = max(1, t.Capacity)
		}
		scores[t.ID] = round4(demandWeight(t.Capacity) / float64(supply))
	}
	return scores
}

// demandWeight は容量帯ごとの経験的な需要重みを返す
// 2名席は需要過多になりやすいため重みが大きい
func demandWeight(capacity int) float64 {
	switch {
	case capacity <= 0:
		return 0.1
	case capacity <= 2:
		return 1.6
	case capacity <= 4:
		return 0.18
	case capacity <= 6:
		return 0.12
	default:
		return 0.08
	}
}

func sanitizeSegment(value, fallback string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
