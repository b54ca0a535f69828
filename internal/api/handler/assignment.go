package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kyohei-watanabe/go-table-seating/internal/api/middleware"
	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
)

type AssignmentHandler struct {
	service AssignmentServiceInterface
}

func NewAssignmentHandler(s AssignmentServiceInterface) *AssignmentHandler {
	return &AssignmentHandler{service: s}
}

type CommitAssignmentRequest struct {
	BookingID        string    `json:"booking_id" validate:"required"`
	TableIDs         []string  `json:"table_ids" validate:"required,min=1"`
	StartAt          time.Time `json:"start_at" validate:"required"`
	EndAt            time.Time `json:"end_at" validate:"required"`
	IdempotencyKey   string    `json:"idempotency_key"`
	RequireAdjacency bool      `json:"require_adjacency"`
	Shadow           bool      `json:"shadow"`
	HoldID           string    `json:"hold_id"`
}

type ConfirmHoldRequest struct {
	BookingID      string `json:"booking_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
	Shadow         bool   `json:"shadow"`
}

type AssignmentRecordResponse struct {
	ID           string    `json:"id"`
	BookingID    string    `json:"booking_id"`
	TableID      string    `json:"table_id"`
	MergeGroupID string    `json:"merge_group_id"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
}

type CommitResponse struct {
	Assignments  []AssignmentRecordResponse `json:"assignments"`
	MergeGroupID string                     `json:"merge_group_id"`
	Shadow       bool                       `json:"shadow"`
}

func toCommitResponse(r *assignment.Result) CommitResponse {
	resp := CommitResponse{
		Assignments:  make([]AssignmentRecordResponse, 0, len(r.Assignments)),
		MergeGroupID: r.MergeGroupID,
		Shadow:       r.Shadow,
	}
	for _, a := range r.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentRecordResponse{
			ID: a.ID, BookingID: a.BookingID, TableID: a.TableID,
			MergeGroupID: a.MergeGroupID, StartAt: a.StartAt, EndAt: a.EndAt,
		})
	}
	return resp
}

func commitOptions(c echo.Context, idempotencyKey string, requireAdjacency, shadow bool, holdID string) application.CommitOptions {
	opts := application.CommitOptions{
		IdempotencyKey:   idempotencyKey,
		RequireAdjacency: requireAdjacency,
		Shadow:           shadow,
		HoldID:           holdID,
	}
	if actorID := middleware.ActorID(c); actorID != "" {
		opts.ActorID = &actorID
	}
	return opts
}

// Commit godoc
// @Summary プランをアトミックにコミット
// @Description 予約にテーブル集合を全か無かで割り当てます。同一入力の再試行は冪等です
// @Tags assignments
// @Accept json
// @Produce json
// @Param request body CommitAssignmentRequest true "コミット内容"
// @Success 201 {object} CommitResponse
// @Failure 409 {object} map[string]string "重複ウィンドウと競合"
// @Failure 422 {object} map[string]string
// @Router /assignments [post]
func (h *AssignmentHandler) Commit(c echo.Context) error {
	var req CommitAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	plan := assignment.NewPlan(req.BookingID, req.TableIDs, req.StartAt, req.EndAt)
	result, err := h.service.CommitPlan(c.Request().Context(), plan,
		commitOptions(c, req.IdempotencyKey, req.RequireAdjacency, req.Shadow, req.HoldID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCommitResponse(result))
}

// ConfirmHold godoc
// @Summary ホールドを確定コミット
// @Description 仮押さえ中のテーブル集合をそのまま予約に割り当てます
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path string true "ホールドID"
// @Param request body ConfirmHoldRequest true "確定内容"
// @Success 201 {object} CommitResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /holds/{id}/confirm [post]
func (h *AssignmentHandler) ConfirmHold(c echo.Context) error {
	holdID := c.Param("id")

	var req ConfirmHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.ConfirmHold(c.Request().Context(), holdID, req.BookingID,
		commitOptions(c, req.IdempotencyKey, false, req.Shadow, ""))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCommitResponse(result))
}
