package selector

import (
	"sort"
	"time"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
)

// 探索打ち切り・候補除外の理由キー
const (
	SkipCapacity  = "capacity"
	SkipOverage   = "overage"
	SkipAdjacency = "adjacency"
	SkipKMax      = "kmax"
	SkipZone      = "zone"
	SkipLimit     = "limit"
	SkipBucket    = "bucket"
	SkipTimeout   = "timeout"
)

const (
	defaultMaxPlansPerSlack          = 50
	defaultMaxCombinationEvaluations = 500
	defaultEnumerationBudget         = time.Second
)

// FallbackNoTables はプランが1件も作れなかった場合の理由メッセージ
const FallbackNoTables = "パーティーサイズを満たすテーブルがありません"

// Diagnostics は探索の観測情報を表す
// 打ち切りは結果を縮退させるだけでエラーにはせず、ここに必ず記録する
type Diagnostics struct {
	SinglesConsidered      int
	CombinationsEnumerated int
	CombinationsAccepted   int
	Skipped                map[string]int
	TimedOut               bool
	Limits                 Limits
	TotalEnumerated        int
	TotalAccepted          int
}

// Limits は実際に適用された探索上限を表す
type Limits struct {
	KMax                      int
	MaxPlansPerSlack          int
	MaxCombinationEvaluations int
	EnumerationBudget         time.Duration
}

// Options はプラン生成の入力を表す
type Options struct {
	Tables    []*table.Table
	PartySize int
	Graph     *table.Graph
	Weights   Weights
	MaxOverage int

	EnableCombinations        bool
	KMax                      int
	MaxPlansPerSlack          int
	MaxCombinationEvaluations int
	// EnumerationBudget は探索全体の実時間上限（0はデフォルト1秒）
	EnumerationBudget time.Duration
	// MaxSeedTables は大規模インベントリでDFSの起点テーブル数を制限する（0は無制限）
	MaxSeedTables int

	RequireAdjacency bool
	AdjacencyMode    table.AdjacencyMode

	// DemandMultiplier は外部から供給される需要倍率（0以下は1として扱う）
	DemandMultiplier float64
	// ScarcityScores はテーブルIDごとの希少度スコア（欠損は0）
	ScarcityScores map[string]float64

	// AllowCapacityOverflow は maxOverage を超えるプランも許可する
	AllowCapacityOverflow bool

	// Now はテスト用の時計注入（nilなら time.Now）
	Now func() time.Time
}

// Result はプラン生成の結果を表す
type Result struct {
	Plans          []*RankedPlan
	FallbackReason string
	Diagnostics    *Diagnostics
}

// BuildScoredPlans はテーブルインベントリから候補プランを列挙しランク付けする
func BuildScoredPlans(opts Options) *Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	budget := opts.EnumerationBudget
	if budget <= 0 {
		budget = defaultEnumerationBudget
	}
	deadline := now().Add(budget)

	maxAllowedCapacity := opts.PartySize + max(opts.MaxOverage, 0)
	kMax := opts.KMax
	if kMax < 1 {
		kMax = 1
	}
	if n := len(opts.Tables); n > 0 && kMax > n {
		kMax = n
	}
	bucketLimit := opts.MaxPlansPerSlack
	if bucketLimit < 1 {
		bucketLimit = defaultMaxPlansPerSlack
	}
	evaluationLimit := opts.MaxCombinationEvaluations
	if evaluationLimit < 1 {
		evaluationLimit = defaultMaxCombinationEvaluations
	}
	mode := opts.AdjacencyMode
	if mode == "" {
		mode = table.AdjacencyModeConnected
	}
	graph := opts.Graph
	if graph == nil {
		graph = table.NewGraph(nil)
	}

	diag := &Diagnostics{
		Skipped: make(map[string]int),
		Limits: Limits{
			KMax:                      kMax,
			MaxPlansPerSlack:          bucketLimit,
			MaxCombinationEvaluations: evaluationLimit,
			EnumerationBudget:         budget,
		},
	}

	// 候補の事前フィルタ: 容量0以下、人数制約違反、overage超過を除外
	valid := make([]*table.Table, 0, len(opts.Tables))
	singles := make([]*table.Table, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		if t.Capacity <= 0 {
			diag.Skipped[SkipCapacity]++
			continue
		}
		if t.MinPartySize != nil && *t.MinPartySize > 0 && opts.PartySize < *t.MinPartySize {
			diag.Skipped[SkipCapacity]++
			continue
		}
		if t.MaxPartySize != nil && *t.MaxPartySize > 0 && opts.PartySize > *t.MaxPartySize {
			diag.Skipped[SkipCapacity]++
			continue
		}
		if !opts.AllowCapacityOverflow && t.Capacity > maxAllowedCapacity {
			diag.Skipped[SkipOverage]++
			continue
		}
		valid = append(valid, t)
		if t.Capacity >= opts.PartySize {
			singles = append(singles, t)
		}
	}
	diag.SinglesConsidered = len(singles)

	plans := make([]*RankedPlan, 0, len(singles))
	for _, t := range singles {
		selection := []*table.Table{t}
		adjacency := graph.EvaluateAdjacency([]string{t.ID})
		metrics := computeMetrics(selection, opts.PartySize, adjacency, opts.ScarcityScores)
		breakdown := computeScore(metrics, opts.Weights, opts.DemandMultiplier)
		plans = append(plans, &RankedPlan{
			Tables:          selection,
			TotalCapacity:   t.Capacity,
			Slack:           metrics.Overage,
			Metrics:         metrics,
			Score:           breakdown.Total,
			Breakdown:       breakdown,
			TableKey:        buildTableKey(selection),
			AdjacencyStatus: "single",
		})
	}

	if opts.EnableCombinations && kMax > 1 && len(valid) > 1 {
		s := &search{
			opts:               opts,
			graph:              graph,
			mode:               mode,
			maxAllowedCapacity: maxAllowedCapacity,
			kMax:               kMax,
			bucketLimit:        bucketLimit,
			evaluationLimit:    evaluationLimit,
			deadline:           deadline,
			now:                now,
			diag:               diag,
			seenKeys:           make(map[string]struct{}),
			buckets:            make(map[int][]*RankedPlan),
		}
		plans = append(plans, s.run(valid)...)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return comparePlans(plans[i], plans[j]) < 0
	})

	diag.TotalEnumerated = diag.SinglesConsidered + diag.CombinationsEnumerated
	diag.TotalAccepted = len(plans)

	result := &Result{Plans: plans, Diagnostics: diag}
	if len(plans) == 0 {
		result.FallbackReason = FallbackNoTables
	}
	return result
}

// search は組み合わせDFSの状態を保持する
// 停止条件（評価上限・実時間・bucket溢れ）は各フレームで明示的に確認する
type search struct {
	opts               Options
	graph              *table.Graph
	mode               table.AdjacencyMode
	maxAllowedCapacity int
	kMax               int
	bucketLimit        int
	evaluationLimit    int
	deadline           time.Time
	now                func() time.Time

	diag          *Diagnostics
	seenKeys      map[string]struct{}
	buckets       map[int][]*RankedPlan
	evaluations   int
	limitRecorded bool
	stopSearch    bool
}

func (s *search) run(candidates []*table.Table) []*RankedPlan {
	// 容量昇順（同値はテーブル番号順）でソートすると、
	// overage超過時にそのパス以降を一括で打ち切れる
	sorted := make([]*table.Table, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Capacity != sorted[j].Capacity {
			return sorted[i].Capacity < sorted[j].Capacity
		}
		return sortName(sorted[i]) < sortName(sorted[j])
	})

	seeds := s.rankSeeds(sorted)
	for _, seedIndex := range seeds {
		if s.stopSearch {
			break
		}
		base := sorted[seedIndex]
		s.dfs(sorted, seedIndex+1, []*table.Table{base}, base.Capacity, base.ZoneID)
	}

	out := make([]*RankedPlan, 0)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return comparePlans(out[i], out[j]) < 0
	})
	return out
}

// rankSeeds はDFSの起点インデックスを返す
// MaxSeedTables が設定され候補数が多い場合は
// (容量不足の小ささ, 隣接次数の多さ, 容量の大きさ) の順で有望な起点を優先する
func (s *search) rankSeeds(sorted []*table.Table) []int {
	indexes := make([]int, len(sorted))
	for i := range sorted {
		indexes[i] = i
	}
	limit := s.opts.MaxSeedTables
	if limit <= 0 || len(sorted) <= limit {
		return indexes
	}

	deficit := func(t *table.Table) int {
		d := s.opts.PartySize - t.Capacity
		if d < 0 {
			d = 0
		}
		return d
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		ta, tb := sorted[indexes[a]], sorted[indexes[b]]
		if deficit(ta) != deficit(tb) {
			return deficit(ta) < deficit(tb)
		}
		if s.graph.Degree(ta.ID) != s.graph.Degree(tb.ID) {
			return s.graph.Degree(ta.ID) > s.graph.Degree(tb.ID)
		}
		return ta.Capacity > tb.Capacity
	})
	return indexes[:limit]
}

func (s *search) dfs(sorted []*table.Table, startIndex int, selection []*table.Table, runningCapacity int, zoneLock string) {
	if s.stopSearch {
		return
	}
	if s.now().After(s.deadline) {
		s.stopSearch = true
		s.diag.TimedOut = true
		s.diag.Skipped[SkipTimeout]++
		return
	}

	if len(selection) >= 2 && runningCapacity >= s.opts.PartySize {
		s.diag.CombinationsEnumerated++

		key := buildTableKey(selection)
		if _, seen := s.seenKeys[key]; !seen {
			s.seenKeys[key] = struct{}{}
			s.emit(selection, key)
		}

		s.evaluations++
		if s.evaluations >= s.evaluationLimit {
			s.stopSearch = true
			if !s.limitRecorded {
				s.diag.Skipped[SkipLimit]++
				s.limitRecorded = true
			}
			return
		}
	}

	if len(selection) >= s.kMax {
		if runningCapacity < s.opts.PartySize {
			s.diag.Skipped[SkipCapacity]++
		}
		s.diag.Skipped[SkipKMax]++
		return
	}

	for index := startIndex; index < len(sorted); index++ {
		if s.stopSearch {
			return
		}
		candidate := sorted[index]

		if zoneLock != "" && candidate.ZoneID != "" && candidate.ZoneID != zoneLock {
			s.diag.Skipped[SkipZone]++
			continue
		}

		nextCapacity := runningCapacity + candidate.Capacity
		if !s.opts.AllowCapacityOverflow && nextCapacity > s.maxAllowedCapacity {
			s.diag.Skipped[SkipOverage]++
			// 容量昇順なのでこのパスの残り候補も全て超過する
			return
		}

		if s.opts.RequireAdjacency && !s.adjacentToSelection(candidate, selection) {
			s.diag.Skipped[SkipAdjacency]++
			continue
		}

		nextZone := zoneLock
		if nextZone == "" {
			nextZone = candidate.ZoneID
		}
		s.dfs(sorted, index+1, append(selection, candidate), nextCapacity, nextZone)
	}
}

// emit は選択集合をプラン化してslackバケットに登録する
func (s *search) emit(selection []*table.Table, key string) {
	ids := make([]string, 0, len(selection))
	for _, t := range selection {
		ids = append(ids, t.ID)
	}
	adjacency := s.graph.EvaluateAdjacency(ids)
	if s.opts.RequireAdjacency && !adjacency.Satisfies(s.mode) {
		s.diag.Skipped[SkipAdjacency]++
		return
	}

	metrics := computeMetrics(selection, s.opts.PartySize, adjacency, s.opts.ScarcityScores)
	breakdown := computeScore(metrics, s.opts.Weights, s.opts.DemandMultiplier)

	tables := make([]*table.Table, len(selection))
	copy(tables, selection)
	totalCapacity := 0
	for _, t := range tables {
		totalCapacity += t.Capacity
	}

	plan := &RankedPlan{
		Tables:          tables,
		TotalCapacity:   totalCapacity,
		Slack:           metrics.Overage,
		Metrics:         metrics,
		Score:           breakdown.Total,
		Breakdown:       breakdown,
		TableKey:        key,
		AdjacencyStatus: adjacency.Classification(len(tables)),
	}

	bucket := append(s.buckets[plan.Slack], plan)
	sort.SliceStable(bucket, func(i, j int) bool {
		return comparePlans(bucket[i], bucket[j]) < 0
	})
	if len(bucket) > s.bucketLimit {
		bucket = bucket[:s.bucketLimit]
		s.diag.Skipped[SkipBucket]++
	}
	s.buckets[plan.Slack] = bucket
	s.diag.CombinationsAccepted++
}

func (s *search) adjacentToSelection(candidate *table.Table, selection []*table.Table) bool {
	for _, t := range selection {
		if s.graph.Adjacent(t.ID, candidate.ID) {
			return true
		}
	}
	return false
}

func sortName(t *table.Table) string {
	if t.Number != "" {
		return t.Number
	}
	return t.ID
}
