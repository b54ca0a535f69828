package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

func tbl(id string, capacity int, zone string) *table.Table {
	return &table.Table{ID: id, Number: id, Capacity: capacity, ZoneID: zone, Active: true}
}

func baseOptions(tables []*table.Table, graph *table.Graph, partySize int) Options {
	return Options{
		Tables:             tables,
		PartySize:          partySize,
		Graph:              graph,
		Weights:            DefaultWeights(),
		MaxOverage:         2,
		EnableCombinations: true,
		KMax:               3,
		RequireAdjacency:   true,
	}
}

func planKeys(result *Result) []string {
	keys := make([]string, 0, len(result.Plans))
	for _, p := range result.Plans {
		keys = append(keys, p.TableKey)
	}
	return keys
}

func TestBuildScoredPlans_シナリオ(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 4, "Z1"),
		tbl("T2", 2, "Z1"),
		tbl("T3", 6, "Z2"),
	}
	graph := table.NewGraph([][2]string{{"T1", "T2"}})

	result := BuildScoredPlans(baseOptions(tables, graph, 4))

	require.Equal(t, []string{"T1", "T3", "T1+T2"}, planKeys(result))

	first := result.Plans[0]
	assert.Equal(t, 0, first.Metrics.Overage)
	assert.Equal(t, "single", first.AdjacencyStatus)
	assert.Equal(t, float64(0), first.Score)

	second := result.Plans[1]
	assert.Equal(t, 2, second.Metrics.Overage)
	assert.Equal(t, float64(10), second.Score)

	combo := result.Plans[2]
	assert.Equal(t, 2, combo.Metrics.TableCount)
	assert.Equal(t, 6, combo.TotalCapacity)
	assert.Equal(t, 2, combo.Metrics.Overage)
	assert.Equal(t, 2, combo.Metrics.Fragmentation)
	assert.Equal(t, "pairwise", combo.AdjacencyStatus)
	// slack 2*5 + 構造 (1*3 + 1*1) + 断片化 2*2
	assert.Equal(t, float64(18), combo.Score)

	assert.Equal(t, 2, result.Diagnostics.SinglesConsidered)
	assert.Empty(t, result.FallbackReason)
}

func TestBuildScoredPlans_決定性(t *testing.T) {
	tables := []*table.Table{
		tbl("T5", 2, "Z1"), tbl("T2", 2, "Z1"), tbl("T9", 4, "Z1"),
		tbl("T1", 2, "Z1"), tbl("T7", 4, "Z1"),
	}
	graph := table.NewGraph([][2]string{
		{"T5", "T2"}, {"T2", "T9"}, {"T9", "T1"}, {"T1", "T7"}, {"T7", "T5"},
	})

	first := BuildScoredPlans(baseOptions(tables, graph, 4))
	for i := 0; i < 5; i++ {
		again := BuildScoredPlans(baseOptions(tables, graph, 4))
		assert.Equal(t, planKeys(first), planKeys(again))
	}
}

func TestBuildScoredPlans_容量超過の除外(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 4, "Z1"),
		tbl("T8", 12, "Z1"), // maxOverage=2 では大きすぎる
	}
	result := BuildScoredPlans(baseOptions(tables, table.NewGraph(nil), 4))

	assert.Equal(t, []string{"T1"}, planKeys(result))
	assert.Equal(t, 1, result.Diagnostics.Skipped[SkipOverage])
}

func TestBuildScoredPlans_容量オーバーフロー許可(t *testing.T) {
	tables := []*table.Table{tbl("T8", 12, "Z1")}
	opts := baseOptions(tables, table.NewGraph(nil), 4)
	opts.AllowCapacityOverflow = true

	result := BuildScoredPlans(opts)
	require.Len(t, result.Plans, 1)
	assert.Equal(t, 8, result.Plans[0].Metrics.Overage)
}

func TestBuildScoredPlans_ゾーンロック(t *testing.T) {
	// パーティー6はどの単体テーブルも満たせず、ゾーンを跨ぐ組み合わせは禁止
	tables := []*table.Table{
		tbl("T1", 4, "Z1"),
		tbl("T2", 4, "Z2"),
	}
	graph := table.NewGraph([][2]string{{"T1", "T2"}})
	opts := baseOptions(tables, graph, 6)

	result := BuildScoredPlans(opts)

	assert.Empty(t, result.Plans)
	assert.Equal(t, FallbackNoTables, result.FallbackReason)
	assert.Positive(t, result.Diagnostics.Skipped[SkipZone])
}

func TestBuildScoredPlans_隣接制約(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 4, "Z1"),
		tbl("T2", 4, "Z1"),
	}

	t.Run("非隣接の組み合わせは除外される", func(t *testing.T) {
		opts := baseOptions(tables, table.NewGraph(nil), 8)
		result := BuildScoredPlans(opts)
		assert.Empty(t, result.Plans)
		assert.Positive(t, result.Diagnostics.Skipped[SkipAdjacency])
	})

	t.Run("隣接不要なら許可される", func(t *testing.T) {
		opts := baseOptions(tables, table.NewGraph(nil), 8)
		opts.RequireAdjacency = false
		result := BuildScoredPlans(opts)
		require.Len(t, result.Plans, 1)
		assert.Equal(t, "disconnected", result.Plans[0].AdjacencyStatus)
	})

	t.Run("pairwiseモードは鎖を拒否する", func(t *testing.T) {
		chain := []*table.Table{
			tbl("T1", 4, "Z1"), tbl("T2", 4, "Z1"), tbl("T3", 4, "Z1"),
		}
		graph := table.NewGraph([][2]string{{"T1", "T2"}, {"T2", "T3"}})
		opts := baseOptions(chain, graph, 10)
		opts.MaxOverage = 2
		opts.AdjacencyMode = table.AdjacencyModePairwise
		result := BuildScoredPlans(opts)
		assert.Empty(t, result.Plans)
	})
}

func TestBuildScoredPlans_kMax上限(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 2, "Z1"), tbl("T2", 2, "Z1"), tbl("T3", 2, "Z1"), tbl("T4", 2, "Z1"),
	}
	graph := table.NewGraph([][2]string{
		{"T1", "T2"}, {"T2", "T3"}, {"T3", "T4"}, {"T4", "T1"},
	})
	opts := baseOptions(tables, graph, 8)
	opts.KMax = 3

	result := BuildScoredPlans(opts)

	// 4テーブル必要だが kMax=3 のためプランなし
	assert.Empty(t, result.Plans)
	assert.Positive(t, result.Diagnostics.Skipped[SkipKMax])
}

func TestBuildScoredPlans_評価上限で打ち切る(t *testing.T) {
	tables := make([]*table.Table, 0, 12)
	edges := make([][2]string, 0)
	for i := 0; i < 12; i++ {
		id := string(rune('A' + i))
		tables = append(tables, tbl(id, 2, "Z1"))
		for j := 0; j < i; j++ {
			edges = append(edges, [2]string{id, string(rune('A' + j))})
		}
	}
	opts := baseOptions(tables, table.NewGraph(edges), 4)
	opts.MaxCombinationEvaluations = 3

	result := BuildScoredPlans(opts)

	assert.Equal(t, 1, result.Diagnostics.Skipped[SkipLimit])
	assert.LessOrEqual(t, result.Diagnostics.CombinationsEnumerated, 3)
}

func TestBuildScoredPlans_実時間上限で打ち切る(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 2, "Z1"), tbl("T2", 2, "Z1"), tbl("T3", 2, "Z1"),
	}
	graph := table.NewGraph([][2]string{{"T1", "T2"}, {"T2", "T3"}, {"T1", "T3"}})

	opts := baseOptions(tables, graph, 4)
	opts.EnumerationBudget = 10 * time.Millisecond
	base := time.Now()
	calls := 0
	opts.Now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		// 2回目の時計参照で予算超過にする
		return base.Add(time.Minute)
	}

	result := BuildScoredPlans(opts)

	assert.True(t, result.Diagnostics.TimedOut)
	assert.Equal(t, 1, result.Diagnostics.Skipped[SkipTimeout])
}

func TestBuildScoredPlans_slackバケット上限(t *testing.T) {
	tables := make([]*table.Table, 0, 6)
	edges := make([][2]string, 0)
	for i := 0; i < 6; i++ {
		id := string(rune('A' + i))
		tables = append(tables, tbl(id, 2, "Z1"))
		for j := 0; j < i; j++ {
			edges = append(edges, [2]string{id, string(rune('A' + j))})
		}
	}
	opts := baseOptions(tables, table.NewGraph(edges), 4)
	opts.MaxPlansPerSlack = 2

	result := BuildScoredPlans(opts)

	// slack=0 のペアは C(6,2)=15 通りだが上限2件に絞られる
	count := 0
	for _, p := range result.Plans {
		if p.Slack == 0 && p.Metrics.TableCount == 2 {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Positive(t, result.Diagnostics.Skipped[SkipBucket])
}

func TestBuildScoredPlans_重複プランは1度だけ(t *testing.T) {
	tables := []*table.Table{
		tbl("T1", 2, "Z1"), tbl("T2", 2, "Z1"),
	}
	graph := table.NewGraph([][2]string{{"T1", "T2"}})
	result := BuildScoredPlans(baseOptions(tables, graph, 4))

	require.Len(t, result.Plans, 1)
	assert.Equal(t, "T1+T2", result.Plans[0].TableKey)
}

func TestComputeScore_需要倍率と希少度(t *testing.T) {
	t.Run("需要倍率はslackペナルティのみ増幅する", func(t *testing.T) {
		m := Metrics{Overage: 2, TableCount: 1}
		normal := computeScore(m, DefaultWeights(), 1)
		peak := computeScore(m, DefaultWeights(), 1.35)
		assert.Equal(t, float64(10), normal.Total)
		assert.InDelta(t, 13.5, peak.Total, 1e-9)
	})

	t.Run("希少度係数は複数テーブルの構造ペナルティを増幅する", func(t *testing.T) {
		m := Metrics{TableCount: 2, AdjacencyCost: 1, ScarcityScore: 1}
		w := DefaultWeights()
		got := computeScore(m, w, 1)
		// (1*3 + 1*1) * min(3, 1+1) + 希少度 1*2
		assert.InDelta(t, 8+2, got.Total, 1e-9)
	})

	t.Run("希少度係数は3で頭打ち", func(t *testing.T) {
		m := Metrics{TableCount: 2, AdjacencyCost: 1, ScarcityScore: 10}
		w := DefaultWeights()
		got := computeScore(m, w, 1)
		assert.InDelta(t, 4*3+10*2, got.Total, 1e-9)
	})

	t.Run("単体テーブルには希少度係数を適用しない", func(t *testing.T) {
		m := Metrics{TableCount: 1, ScarcityScore: 2}
		got := computeScore(m, DefaultWeights(), 1)
		assert.InDelta(t, 2*2, got.Total, 1e-9)
	})
}

func TestComparePlans_全順序(t *testing.T) {
	base := func() *RankedPlan {
		return &RankedPlan{Score: 10, TotalCapacity: 4, TableKey: "T1",
			Metrics: Metrics{Overage: 1, TableCount: 1, Fragmentation: 0, AdjacencyCost: 0}}
	}

	t.Run("スコア優先", func(t *testing.T) {
		a, b := base(), base()
		b.Score = 11
		assert.Negative(t, comparePlans(a, b))
	})

	t.Run("同スコアはoverage", func(t *testing.T) {
		a, b := base(), base()
		b.Metrics.Overage = 2
		assert.Negative(t, comparePlans(a, b))
	})

	t.Run("最終的にテーブルキーで決まる", func(t *testing.T) {
		a, b := base(), base()
		b.TableKey = "T2"
		assert.Negative(t, comparePlans(a, b))
		assert.Positive(t, comparePlans(b, a))
		assert.Zero(t, comparePlans(a, base()))
	})
}

func TestBuildScoredPlans_シード制限(t *testing.T) {
	tables := make([]*table.Table, 0, 8)
	edges := make([][2]string, 0)
	for i := 0; i < 8; i++ {
		id := string(rune('A' + i))
		tables = append(tables, tbl(id, 2, "Z1"))
		if i > 0 {
			edges = append(edges, [2]string{id, string(rune('A' + i - 1))})
		}
	}
	opts := baseOptions(tables, table.NewGraph(edges), 4)
	opts.MaxSeedTables = 2

	result := BuildScoredPlans(opts)

	// 起点2テーブルからの探索でも決定的にプランが得られる
	assert.NotEmpty(t, result.Plans)
	again := BuildScoredPlans(opts)
	assert.Equal(t, planKeys(result), planKeys(again))
}
