package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/config"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/booking"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/policy"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/metrics"
	"github.com/kyohei-watanabe/go-table-seating/internal/selector"
)

// QuoteService は対話的な見積もりフローを構成する
// ウィンドウ解決 → 空席抽出 → プラン列挙 → ホールド競合の回避 → 仮押さえ
type QuoteService struct {
	bookings    booking.Repository
	tables      table.Repository
	holdSvc     *HoldService
	demandSvc   *DemandService
	scarcitySvc *ScarcityService
	emitter     event.Emitter
	basePolicy  *policy.VenuePolicy
	policyCfg   config.PolicyConfig
	selectorCfg config.SelectorConfig
}

func NewQuoteService(
	bookings booking.Repository,
	tables table.Repository,
	holdSvc *HoldService,
	demandSvc *DemandService,
	scarcitySvc *ScarcityService,
	emitter event.Emitter,
	basePolicy *policy.VenuePolicy,
	policyCfg config.PolicyConfig,
	selectorCfg config.SelectorConfig,
) *QuoteService {
	return &QuoteService{
		bookings:    bookings,
		tables:      tables,
		holdSvc:     holdSvc,
		demandSvc:   demandSvc,
		scarcitySvc: scarcitySvc,
		emitter:     emitter,
		basePolicy:  basePolicy,
		policyCfg:   policyCfg,
		selectorCfg: selectorCfg,
	}
}

// QuoteInput は見積もりの入力を表す
type QuoteInput struct {
	BookingID string
	// ZoneID を指定すると対象ゾーンに限定する（空は予約のゾーン設定に従う）
	ZoneID      string
	ServiceHint policy.ServiceKey
	// RequireAdjacency が nil の場合は設定から導出する
	RequireAdjacency *bool
	// CreateHold が真の場合、最良プランを仮押さえする
	CreateHold bool
	HoldTTL    time.Duration
	ActorID    *string
	// MaxAlternates は代替プランの最大件数（0はデフォルト3）
	MaxAlternates int
}

// QuoteResult は見積もりの結果を表す
type QuoteResult struct {
	Window           *policy.BookingWindow
	UsedFallback     bool
	FallbackService  policy.ServiceKey
	BestPlan         *selector.RankedPlan
	Alternates       []*selector.RankedPlan
	Hold             *hold.Hold
	SkippedForHolds  []string
	Diagnostics      *selector.Diagnostics
	FallbackReason   string
	DemandMultiplier float64
	RelaxedAdjacency bool
	RelaxedMinParty  bool
	AllowedOverflow  bool
}

const defaultMaxAlternates = 3

// Quote は予約に対する候補プランを算出する
func (s *QuoteService) Quote(ctx context.Context, input QuoteInput) (*QuoteResult, error) {
	b, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}

	pol := s.resolvePolicy(ctx, b.RestaurantID)
	windowResult, err := pol.ResolveWindowWithFallback(policy.ResolveWindowArgs{
		StartAt:     startAtOf(b),
		BookingDate: b.BookingDate,
		StartTime:   b.StartTime,
		PartySize:   b.PartySize,
		ServiceHint: input.ServiceHint,
	}, s.policyCfg.ServiceFailHard)
	if err != nil {
		return nil, err
	}
	window := windowResult.Window

	inventory, err := s.tables.ListByRestaurant(ctx, b.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("テーブル一覧の取得に失敗: %w", err)
	}

	busyIDs, err := s.tables.ListBusyTableIDs(ctx, b.RestaurantID, window.BlockStart, window.BlockEnd)
	if err != nil {
		return nil, fmt.Errorf("使用中テーブルの取得に失敗: %w", err)
	}
	inventory = excludeTables(inventory, busyIDs)

	zoneID := input.ZoneID
	if zoneID == "" {
		zoneID = b.ZoneID
	}

	filter := table.FilterOptions{
		PartySize:            b.PartySize,
		ZoneID:               zoneID,
		AllowPartialCapacity: s.selectorCfg.CombinationsEnabled,
	}
	available := table.FilterAvailable(inventory, filter)

	graph, err := s.buildGraph(ctx, available)
	if err != nil {
		return nil, err
	}

	requireAdjacency := s.resolveAdjacencyRequirement(input.RequireAdjacency, graph, b.PartySize)

	demandResult := s.demandSvc.Resolve(ctx, b.RestaurantID, window.DiningStart, string(window.Service), pol.Timezone)
	scarcityScores := s.scarcitySvc.LoadScores(ctx, b.RestaurantID, available)

	plannerStart := time.Now()
	runPlanner := func(tables []*table.Table, requireAdj, allowOverflow bool) *selector.Result {
		return selector.BuildScoredPlans(selector.Options{
			Tables:                    tables,
			PartySize:                 b.PartySize,
			Graph:                     graph,
			Weights:                   s.weights(),
			MaxOverage:                s.selectorCfg.MaxOverage,
			EnableCombinations:        s.selectorCfg.CombinationsEnabled,
			KMax:                      s.selectorCfg.KMax,
			MaxPlansPerSlack:          s.selectorCfg.MaxPlansPerSlack,
			MaxCombinationEvaluations: s.selectorCfg.MaxCombinationEvaluations,
			EnumerationBudget:         s.selectorCfg.EnumerationBudget,
			RequireAdjacency:          requireAdj,
			AdjacencyMode:             table.AdjacencyMode(s.selectorCfg.AdjacencyMode),
			DemandMultiplier:          demandResult.Multiplier,
			ScarcityScores:            scarcityScores,
			AllowCapacityOverflow:     allowOverflow,
		})
	}

	result := &QuoteResult{
		Window:           window,
		UsedFallback:     windowResult.UsedFallback,
		FallbackService:  windowResult.FallbackService,
		DemandMultiplier: demandResult.Multiplier,
	}

	// 緩和ラダー: 隣接 → 最小人数 → 容量オーバーフロー の順に制約を緩める
	planResult := runPlanner(available, requireAdjacency, false)
	requireAdjacencyUsed := requireAdjacency
	if len(planResult.Plans) == 0 && requireAdjacency {
		relaxed := runPlanner(available, false, false)
		if len(relaxed.Plans) > 0 {
			planResult = relaxed
			requireAdjacencyUsed = false
			result.RelaxedAdjacency = true
		}
	}
	if len(planResult.Plans) == 0 {
		filter.AllowMinPartyViolation = true
		relaxedTables := table.FilterAvailable(inventory, filter)
		if len(relaxedTables) > len(available) {
			available = relaxedTables
			scarcityScores = s.scarcitySvc.LoadScores(ctx, b.RestaurantID, available)
			relaxed := runPlanner(available, requireAdjacencyUsed, false)
			if len(relaxed.Plans) == 0 && requireAdjacencyUsed {
				relaxed = runPlanner(available, false, false)
				if len(relaxed.Plans) > 0 {
					requireAdjacencyUsed = false
					result.RelaxedAdjacency = true
				}
			}
			if len(relaxed.Plans) > 0 {
				planResult = relaxed
				result.RelaxedMinParty = true
			}
		}
	}
	if len(planResult.Plans) == 0 {
		overflow := runPlanner(available, requireAdjacencyUsed, true)
		if len(overflow.Plans) > 0 {
			planResult = overflow
			result.AllowedOverflow = true
		}
	}

	s.observePlanner(plannerStart, planResult)
	result.Diagnostics = planResult.Diagnostics
	result.FallbackReason = planResult.FallbackReason

	if len(planResult.Plans) == 0 {
		s.emitDecision(ctx, b, result, planResult)
		return result, nil
	}

	best, alternates, skipped, heldHold, err := s.chooseAvailablePlan(ctx, b, window, planResult.Plans, input, requireAdjacencyUsed, pol.Version())
	if err != nil {
		return nil, err
	}
	result.BestPlan = best
	result.Alternates = limitAlternates(alternates, input.MaxAlternates)
	result.SkippedForHolds = skipped
	result.Hold = heldHold

	s.emitDecision(ctx, b, result, planResult)
	return result, nil
}

// chooseAvailablePlan はランク順にホールド競合のないプランを選ぶ
// CreateHold 指定時は選んだプランをその場で仮押さえし、
// 競合検査と作成の間のレースで負けた場合は次のプランへ進む
func (s *QuoteService) chooseAvailablePlan(
	ctx context.Context,
	b *booking.Booking,
	window *policy.BookingWindow,
	plans []*selector.RankedPlan,
	input QuoteInput,
	requireAdjacency bool,
	policyVersion string,
) (*selector.RankedPlan, []*selector.RankedPlan, []string, *hold.Hold, error) {
	skipped := make([]string, 0)

	for i, plan := range plans {
		conflicts, err := s.holdSvc.FindConflicts(ctx, b.RestaurantID, plan.TableIDs(), window.BlockStart, window.BlockEnd, &b.ID)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("ホールド競合検査に失敗: %w", err)
		}
		if len(conflicts) > 0 {
			s.emit(ctx, event.TypeSelectorSkipped, map[string]any{
				"booking_id": b.ID,
				"table_key":  plan.TableKey,
				"reason":     "hold_conflict",
			})
			skipped = append(skipped, plan.TableKey)
			continue
		}

		if !input.CreateHold {
			return plan, plans[i+1:], skipped, nil, nil
		}

		h, err := s.holdSvc.CreateHold(ctx, CreateHoldInput{
			BookingID:    &b.ID,
			RestaurantID: b.RestaurantID,
			ZoneID:       zoneOf(plan),
			TableIDs:     plan.TableIDs(),
			StartAt:      window.BlockStart,
			EndAt:        window.BlockEnd,
			TTL:          input.HoldTTL,
			CreatedBy:    input.ActorID,
			Metadata: map[string]string{
				"table_key":         plan.TableKey,
				"score":             strconv.FormatFloat(plan.Score, 'f', -1, 64),
				"adjacency_status":  plan.AdjacencyStatus,
				"require_adjacency": strconv.FormatBool(requireAdjacency),
				"policy_version":    policyVersion,
			},
		})
		if err != nil {
			var conflict *hold.ConflictError
			if errors.As(err, &conflict) {
				skipped = append(skipped, plan.TableKey)
				continue
			}
			return nil, nil, nil, nil, err
		}
		return plan, plans[i+1:], skipped, h, nil
	}

	return nil, nil, skipped, nil, nil
}

func (s *QuoteService) resolvePolicy(ctx context.Context, restaurantID string) *policy.VenuePolicy {
	tz, err := s.bookings.GetRestaurantTimezone(ctx, restaurantID)
	if err != nil {
		logger.Warn("レストランのタイムゾーン取得に失敗したためポリシー既定値を使用します",
			zap.String("restaurant_id", restaurantID), zap.Error(err))
		return s.basePolicy
	}
	return s.basePolicy.WithTimezone(tz)
}

func (s *QuoteService) buildGraph(ctx context.Context, tables []*table.Table) (*table.Graph, error) {
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	edges, err := s.tables.ListAdjacency(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("隣接関係の取得に失敗: %w", err)
	}
	return table.NewGraph(edges), nil
}

func (s *QuoteService) resolveAdjacencyRequirement(override *bool, graph *table.Graph, partySize int) bool {
	if override != nil {
		return *override
	}
	if s.selectorCfg.AdjacencyMinPartySize > 0 && partySize < s.selectorCfg.AdjacencyMinPartySize {
		return false
	}
	return true
}

func (s *QuoteService) weights() selector.Weights {
	return selector.Weights{
		Overage:       s.selectorCfg.WeightOverage,
		TableCount:    s.selectorCfg.WeightTableCount,
		Fragmentation: s.selectorCfg.WeightFragmentation,
		ZoneBalance:   s.selectorCfg.WeightZoneBalance,
		AdjacencyCost: s.selectorCfg.WeightAdjacencyCost,
		Scarcity:      s.selectorCfg.WeightScarcity,
	}
}

func (s *QuoteService) observePlanner(start time.Time, result *selector.Result) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.SelectorDuration.Observe(time.Since(start).Seconds())
	singles := 0
	combinations := 0
	for _, p := range result.Plans {
		if p.Metrics.TableCount > 1 {
			combinations++
		} else {
			singles++
		}
	}
	m.SelectorPlansGenerated.WithLabelValues("single").Add(float64(singles))
	m.SelectorPlansGenerated.WithLabelValues("combination").Add(float64(combinations))
	for _, cause := range []string{selector.SkipLimit, selector.SkipTimeout, selector.SkipBucket} {
		if count := result.Diagnostics.Skipped[cause]; count > 0 {
			m.SelectorSearchStops.WithLabelValues(cause).Add(float64(count))
		}
	}
}

func (s *QuoteService) emitDecision(ctx context.Context, b *booking.Booking, result *QuoteResult, planResult *selector.Result) {
	payload := map[string]any{
		"booking_id":        b.ID,
		"restaurant_id":     b.RestaurantID,
		"party_size":        b.PartySize,
		"service":           string(result.Window.Service),
		"plans_total":       len(planResult.Plans),
		"demand_multiplier": result.DemandMultiplier,
		"used_fallback":     result.UsedFallback,
		"relaxed_adjacency": result.RelaxedAdjacency,
		"relaxed_min_party": result.RelaxedMinParty,
		"allowed_overflow":  result.AllowedOverflow,
		"timed_out":         planResult.Diagnostics.TimedOut,
	}
	if result.BestPlan != nil {
		payload["best_table_key"] = result.BestPlan.TableKey
		payload["best_score"] = result.BestPlan.Score
	}
	s.emit(ctx, event.TypeSelectorPlanned, payload)
}

func (s *QuoteService) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, eventType, payload)
	}
}

func startAtOf(b *booking.Booking) time.Time {
	if b.StartAt != nil {
		return *b.StartAt
	}
	return time.Time{}
}

func zoneOf(plan *selector.RankedPlan) string {
	if len(plan.Tables) == 0 {
		return ""
	}
	return plan.Tables[0].ZoneID
}

func excludeTables(tables []*table.Table, excludeIDs []string) []*table.Table {
	if len(excludeIDs) == 0 {
		return tables
	}
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	out := make([]*table.Table, 0, len(tables))
	for _, t := range tables {
		if _, ok := excluded[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func limitAlternates(plans []*selector.RankedPlan, limit int) []*selector.RankedPlan {
	if limit <= 0 {
		limit = defaultMaxAlternates
	}
	if len(plans) > limit {
		plans = plans[:limit]
	}
	return plans
}
