package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kyohei-watanabe/go-table-seating/internal/api/middleware"
	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/policy"
	"github.com/kyohei-watanabe/go-table-seating/internal/selector"
)

type QuoteHandler struct {
	service QuoteServiceInterface
}

func NewQuoteHandler(s QuoteServiceInterface) *QuoteHandler {
	return &QuoteHandler{service: s}
}

type QuoteRequest struct {
	ZoneID           string `json:"zone_id"`
	ServiceHint      string `json:"service_hint" validate:"omitempty,oneof=lunch dinner drinks"`
	RequireAdjacency *bool  `json:"require_adjacency"`
	CreateHold       bool   `json:"create_hold"`
	HoldTTLSeconds   int    `json:"hold_ttl_seconds" validate:"omitempty,min=0,max=3600"`
	MaxAlternates    int    `json:"max_alternates" validate:"omitempty,min=0,max=20"`
}

type WindowResponse struct {
	Service         string    `json:"service"`
	DurationMinutes int       `json:"duration_minutes"`
	DiningStart     time.Time `json:"dining_start"`
	DiningEnd       time.Time `json:"dining_end"`
	BlockStart      time.Time `json:"block_start"`
	BlockEnd        time.Time `json:"block_end"`
	Clamped         bool      `json:"clamped_to_service_end"`
}

type PlanResponse struct {
	TableIDs        []string `json:"table_ids"`
	TableKey        string   `json:"table_key"`
	TotalCapacity   int      `json:"total_capacity"`
	Overage         int      `json:"overage"`
	TableCount      int      `json:"table_count"`
	Score           float64  `json:"score"`
	AdjacencyStatus string   `json:"adjacency_status"`
}

type HoldResponse struct {
	ID        string    `json:"id"`
	TableIDs  []string  `json:"table_ids"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type QuoteResponse struct {
	Window           WindowResponse `json:"window"`
	UsedFallback     bool           `json:"used_fallback"`
	FallbackService  string         `json:"fallback_service,omitempty"`
	BestPlan         *PlanResponse  `json:"best_plan"`
	Alternates       []PlanResponse `json:"alternates"`
	Hold             *HoldResponse  `json:"hold,omitempty"`
	SkippedForHolds  []string       `json:"skipped_for_holds,omitempty"`
	FallbackReason   string         `json:"fallback_reason,omitempty"`
	DemandMultiplier float64        `json:"demand_multiplier"`
	RelaxedAdjacency bool           `json:"relaxed_adjacency"`
	RelaxedMinParty  bool           `json:"relaxed_min_party"`
	AllowedOverflow  bool           `json:"allowed_overflow"`
	TimedOut         bool           `json:"timed_out"`
}

func toPlanResponse(p *selector.RankedPlan) PlanResponse {
	return PlanResponse{
		TableIDs:        p.TableIDs(),
		TableKey:        p.TableKey,
		TotalCapacity:   p.TotalCapacity,
		Overage:         p.Metrics.Overage,
		TableCount:      p.Metrics.TableCount,
		Score:           p.Score,
		AdjacencyStatus: p.AdjacencyStatus,
	}
}

func toQuoteResponse(r *application.QuoteResult) QuoteResponse {
	resp := QuoteResponse{
		Window: WindowResponse{
			Service:         string(r.Window.Service),
			DurationMinutes: r.Window.DurationMinutes,
			DiningStart:     r.Window.DiningStart,
			DiningEnd:       r.Window.DiningEnd,
			BlockStart:      r.Window.BlockStart,
			BlockEnd:        r.Window.BlockEnd,
			Clamped:         r.Window.ClampedToServiceEnd,
		},
		UsedFallback:     r.UsedFallback,
		FallbackService:  string(r.FallbackService),
		Alternates:       make([]PlanResponse, 0, len(r.Alternates)),
		SkippedForHolds:  r.SkippedForHolds,
		FallbackReason:   r.FallbackReason,
		DemandMultiplier: r.DemandMultiplier,
		RelaxedAdjacency: r.RelaxedAdjacency,
		RelaxedMinParty:  r.RelaxedMinParty,
		AllowedOverflow:  r.AllowedOverflow,
	}
	if r.BestPlan != nil {
		best := toPlanResponse(r.BestPlan)
		resp.BestPlan = &best
	}
	for _, p := range r.Alternates {
		resp.Alternates = append(resp.Alternates, toPlanResponse(p))
	}
	if r.Hold != nil {
		resp.Hold = &HoldResponse{
			ID:        r.Hold.ID,
			TableIDs:  r.Hold.TableIDs,
			StartAt:   r.Hold.StartAt,
			EndAt:     r.Hold.EndAt,
			ExpiresAt: r.Hold.ExpiresAt,
		}
	}
	if r.Diagnostics != nil {
		resp.TimedOut = r.Diagnostics.TimedOut
	}
	return resp
}

// Quote godoc
// @Summary 予約に対する座席プランを見積もる
// @Description パーティーサイズと時間帯から候補テーブルプランを算出します
// @Tags quotes
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body QuoteRequest true "見積もり条件"
// @Success 200 {object} QuoteResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string "サービス時間外"
// @Router /bookings/{id}/quote [post]
func (h *QuoteHandler) Quote(c echo.Context) error {
	bookingID := c.Param("id")
	if bookingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "予約IDが必要です")
	}

	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.QuoteInput{
		BookingID:        bookingID,
		ZoneID:           req.ZoneID,
		ServiceHint:      policy.ServiceKey(req.ServiceHint),
		RequireAdjacency: req.RequireAdjacency,
		CreateHold:       req.CreateHold,
		HoldTTL:          time.Duration(req.HoldTTLSeconds) * time.Second,
		MaxAlternates:    req.MaxAlternates,
	}
	if actorID := middleware.ActorID(c); actorID != "" {
		input.ActorID = &actorID
	}

	result, err := h.service.Quote(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toQuoteResponse(result))
}
