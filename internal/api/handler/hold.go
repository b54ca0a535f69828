package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kyohei-watanabe/go-table-seating/internal/api/middleware"
	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
)

type HoldHandler struct {
	service HoldServiceInterface
}

func NewHoldHandler(s HoldServiceInterface) *HoldHandler {
	return &HoldHandler{service: s}
}

type CreateHoldRequest struct {
	BookingID    *string           `json:"booking_id"`
	RestaurantID string            `json:"restaurant_id" validate:"required"`
	ZoneID       string            `json:"zone_id"`
	TableIDs     []string          `json:"table_ids" validate:"required,min=1"`
	StartAt      time.Time         `json:"start_at" validate:"required"`
	EndAt        time.Time         `json:"end_at" validate:"required"`
	TTLSeconds   int               `json:"ttl_seconds" validate:"omitempty,min=0,max=3600"`
	Metadata     map[string]string `json:"metadata"`
}

type ExtendHoldRequest struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

type HoldDetailResponse struct {
	ID           string            `json:"id"`
	BookingID    *string           `json:"booking_id,omitempty"`
	RestaurantID string            `json:"restaurant_id"`
	ZoneID       string            `json:"zone_id,omitempty"`
	TableIDs     []string          `json:"table_ids"`
	StartAt      time.Time         `json:"start_at"`
	EndAt        time.Time         `json:"end_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func toHoldDetailResponse(h *hold.Hold) HoldDetailResponse {
	return HoldDetailResponse{
		ID: h.ID, BookingID: h.BookingID, RestaurantID: h.RestaurantID,
		ZoneID: h.ZoneID, TableIDs: h.TableIDs,
		StartAt: h.StartAt, EndAt: h.EndAt, ExpiresAt: h.ExpiresAt,
		Metadata: h.Metadata, CreatedAt: h.CreatedAt,
	}
}

// Create godoc
// @Summary テーブルホールドを作成
// @Description 候補プランを短時間仮押さえします
// @Tags holds
// @Accept json
// @Produce json
// @Param request body CreateHoldRequest true "ホールド情報"
// @Success 201 {object} HoldDetailResponse
// @Failure 409 {object} map[string]string "既存ホールドと競合"
// @Failure 429 {object} map[string]string "レート制限超過"
// @Router /holds [post]
func (h *HoldHandler) Create(c echo.Context) error {
	var req CreateHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.CreateHoldInput{
		BookingID:    req.BookingID,
		RestaurantID: req.RestaurantID,
		ZoneID:       req.ZoneID,
		TableIDs:     req.TableIDs,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		TTL:          time.Duration(req.TTLSeconds) * time.Second,
		Metadata:     req.Metadata,
	}
	if actorID := middleware.ActorID(c); actorID != "" {
		input.CreatedBy = &actorID
	}

	created, err := h.service.CreateHold(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toHoldDetailResponse(created))
}

// Extend godoc
// @Summary ホールドの有効期限を延長
// @Description 作成者本人または昇格ロールのみ延長できます
// @Tags holds
// @Accept json
// @Produce json
// @Param id path string true "ホールドID"
// @Param request body ExtendHoldRequest true "新しい有効期限"
// @Success 200 {object} HoldDetailResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /holds/{id}/extend [post]
func (h *HoldHandler) Extend(c echo.Context) error {
	holdID := c.Param("id")

	var req ExtendHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	extended, err := h.service.ExtendHold(c.Request().Context(), holdID,
		middleware.ActorID(c), middleware.ElevatedFor(c), req.ExpiresAt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHoldDetailResponse(extended))
}

// ListForBooking godoc
// @Summary 予約に紐づく有効なホールドを一覧
// @Tags holds
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {array} HoldDetailResponse
// @Router /bookings/{id}/holds [get]
func (h *HoldHandler) ListForBooking(c echo.Context) error {
	bookingID := c.Param("id")
	if bookingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "予約IDが必要です")
	}

	holds, err := h.service.ListActiveForBooking(c.Request().Context(), bookingID)
	if err != nil {
		return err
	}

	resp := make([]HoldDetailResponse, 0, len(holds))
	for _, item := range holds {
		resp = append(resp, toHoldDetailResponse(item))
	}
	return c.JSON(http.StatusOK, resp)
}

// Release godoc
// @Summary ホールドを解放
// @Description 仮押さえを明示的に解除します
// @Tags holds
// @Param id path string true "ホールドID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /holds/{id} [delete]
func (h *HoldHandler) Release(c echo.Context) error {
	if err := h.service.ReleaseHold(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
