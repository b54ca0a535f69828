// Package selector はテーブルプランの列挙とスコアリングを提供する
package selector

import (
	"math"
	"sort"
	"strings"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

// Weights はスコアリングの重みを表す（スコアは小さいほど良い）
type Weights struct {
	Overage       float64
	TableCount    float64
	Fragmentation float64
	ZoneBalance   float64
	AdjacencyCost float64
	Scarcity      float64
}

// DefaultWeights は組み込みのデフォルト重みを返す
func DefaultWeights() Weights {
	return Weights{
		Overage:       5,
		TableCount:    3,
		Fragmentation: 2,
		ZoneBalance:   4,
		AdjacencyCost: 1,
		Scarcity:      2,
	}
}

// Metrics は候補プランの評価指標を表す
type Metrics struct {
	Overage       int
	TableCount    int
	Fragmentation int
	ZoneBalance   int
	AdjacencyCost int
	// ScarcityScore はプラン内テーブルの希少度スコアの平均
	ScarcityScore float64
}

// ScoreBreakdown はスコアの内訳を表す
type ScoreBreakdown struct {
	SlackPenalty      float64
	StructuralPenalty float64
	ScarcityPenalty   float64
	Total             float64
}

// RankedPlan はスコア付けされた候補プランを表す
// スコアリング後は変更しない
type RankedPlan struct {
	Tables          []*table.Table
	TotalCapacity   int
	Slack           int
	Metrics         Metrics
	Score           float64
	Breakdown       ScoreBreakdown
	TableKey        string
	AdjacencyStatus string
}

// TableIDs はプランのテーブルID一覧を返す
func (p *RankedPlan) TableIDs() []string {
	ids := make([]string, 0, len(p.Tables))
	for _, t := range p.Tables {
		ids = append(ids, t.ID)
	}
	return ids
}

// computeMetrics はテーブル集合の評価指標を計算する
func computeMetrics(tables []*table.Table, partySize int, adjacency table.AdjacencyResult, scarcity map[string]float64) Metrics {
	totalCapacity := 0
	maxCapacity := 0
	zones := make(map[string]struct{})
	scarcitySum := 0.0
	for _, t := range tables {
		totalCapacity += t.Capacity
		if t.Capacity > maxCapacity {
			maxCapacity = t.Capacity
		}
		zones[t.ZoneID] = struct{}{}
		scarcitySum += scarcity[t.ID]
	}

	overage := totalCapacity - partySize
	if overage < 0 {
		overage = 0
	}
	fragmentation := totalCapacity - maxCapacity
	if fragmentation < 0 {
		fragmentation = 0
	}
	zoneBalance := len(zones) - 1
	if zoneBalance < 0 {
		zoneBalance = 0
	}
	scarcityScore := 0.0
	if len(tables) > 0 {
		scarcityScore = scarcitySum / float64(len(tables))
	}

	return Metrics{
		Overage:       overage,
		TableCount:    len(tables),
		Fragmentation: fragmentation,
		ZoneBalance:   zoneBalance,
		AdjacencyCost: adjacency.Cost,
		ScarcityScore: scarcityScore,
	}
}

// computeScore はスコアと内訳を計算する
//
// slackPenalty は需要倍率で増幅され、複数テーブルの構造ペナルティは
// 希少度係数 min(3, 1+avgScarcity) で増幅される
func computeScore(m Metrics, w Weights, demandMultiplier float64) ScoreBreakdown {
	if demandMultiplier <= 0 {
		demandMultiplier = 1
	}
	slack := float64(m.Overage) * w.Overage * demandMultiplier

	structuralBase := 0.0
	if m.TableCount > 1 {
		structuralBase = float64(m.TableCount-1)*w.TableCount + float64(m.AdjacencyCost)*w.AdjacencyCost
	}
	scarcityFactor := math.Min(3, 1+m.ScarcityScore)
	if m.TableCount <= 1 {
		scarcityFactor = 1
	}
	structural := structuralBase*scarcityFactor +
		float64(m.Fragmentation)*w.Fragmentation +
		float64(m.ZoneBalance)*w.ZoneBalance

	scarcityPenalty := m.ScarcityScore * w.Scarcity

	return ScoreBreakdown{
		SlackPenalty:      slack,
		StructuralPenalty: structural,
		ScarcityPenalty:   scarcityPenalty,
		Total:             slack + structural + scarcityPenalty,
	}
}

// comparePlans は厳密な全順序を定める
// スコア → overage → テーブル数 → 総容量 → 断片化 → 隣接コスト → テーブルキー
func comparePlans(a, b *RankedPlan) int {
	switch {
	case a.Score != b.Score:
		return compareFloat(a.Score, b.Score)
	case a.Metrics.Overage != b.Metrics.Overage:
		return a.Metrics.Overage - b.Metrics.Overage
	case a.Metrics.TableCount != b.Metrics.TableCount:
		return a.Metrics.TableCount - b.Metrics.TableCount
	case a.TotalCapacity != b.TotalCapacity:
		return a.TotalCapacity - b.TotalCapacity
	case a.Metrics.Fragmentation != b.Metrics.Fragmentation:
		return a.Metrics.Fragmentation - b.Metrics.Fragmentation
	case a.Metrics.AdjacencyCost != b.Metrics.AdjacencyCost:
		return a.Metrics.AdjacencyCost - b.Metrics.AdjacencyCost
	default:
		return strings.Compare(a.TableKey, b.TableKey)
	}
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// buildTableKey はテーブル番号をソートして結合した正規化キーを返す
func buildTableKey(tables []*table.Table) string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		name := t.Number
		if name == "" {
			name = t.ID
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
