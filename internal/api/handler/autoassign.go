package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kyohei-watanabe/go-table-seating/internal/api/middleware"
	"github.com/kyohei-watanabe/go-table-seating/internal/application"
)

type AutoAssignHandler struct {
	service AutoAssignServiceInterface
}

func NewAutoAssignHandler(s AutoAssignServiceInterface) *AutoAssignHandler {
	return &AutoAssignHandler{service: s}
}

type AutoAssignRequest struct {
	RestaurantID     string `json:"restaurant_id" validate:"required"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	Shadow           bool   `json:"shadow"`
	RequireAdjacency *bool  `json:"require_adjacency"`
}

type AutoAssignOutcomeResponse struct {
	BookingID    string  `json:"booking_id"`
	Status       string  `json:"status"`
	TableKey     string  `json:"table_key,omitempty"`
	Score        float64 `json:"score,omitempty"`
	MergeGroupID string  `json:"merge_group_id,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

type AutoAssignResponse struct {
	RestaurantID string                      `json:"restaurant_id"`
	Date         string                      `json:"date"`
	Processed    int                         `json:"processed"`
	Assigned     int                         `json:"assigned"`
	Shadowed     int                         `json:"shadowed"`
	Failed       int                         `json:"failed"`
	Outcomes     []AutoAssignOutcomeResponse `json:"outcomes"`
	DurationMs   int64                       `json:"duration_ms"`
}

func toAutoAssignResponse(r *application.AutoAssignReport) AutoAssignResponse {
	resp := AutoAssignResponse{
		RestaurantID: r.RestaurantID,
		Date:         r.Date,
		Processed:    r.Processed,
		Assigned:     r.Assigned,
		Shadowed:     r.Shadowed,
		Failed:       r.Failed,
		Outcomes:     make([]AutoAssignOutcomeResponse, 0, len(r.Outcomes)),
		DurationMs:   r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
	for _, o := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, AutoAssignOutcomeResponse{
			BookingID: o.BookingID, Status: o.Status, TableKey: o.TableKey,
			Score: o.Score, MergeGroupID: o.MergeGroupID, Reason: o.Reason,
		})
	}
	return resp
}

// Run godoc
// @Summary 指定日の予約を自動割当
// @Description 保留中の予約をスコア順にまとめて割り当てます
// @Tags auto-assign
// @Accept json
// @Produce json
// @Param request body AutoAssignRequest true "対象レストランと日付"
// @Success 200 {object} AutoAssignResponse
// @Failure 409 {object} map[string]string "同一対象のバッチが実行中"
// @Router /auto-assign [post]
func (h *AutoAssignHandler) Run(c echo.Context) error {
	var req AutoAssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.AutoAssignInput{
		RestaurantID:     req.RestaurantID,
		Date:             req.Date,
		Shadow:           req.Shadow,
		RequireAdjacency: req.RequireAdjacency,
	}
	if actorID := middleware.ActorID(c); actorID != "" {
		input.ActorID = &actorID
	}

	report, err := h.service.Run(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAutoAssignResponse(report))
}
