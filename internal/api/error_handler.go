package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/booking"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/policy"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// CustomHTTPErrorHandler はドメインエラーをHTTPステータスへ変換するエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message, details := classifyError(err)

	// サーバー側の異常のみエラーログに残す
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func classifyError(err error) (int, string, any) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m, nil
		}
		return he.Code, http.StatusText(he.Code), nil
	}

	var (
		inputErr           *policy.InputError
		serviceNotFound    *policy.ServiceNotFoundError
		serviceOverrun     *policy.ServiceOverrunError
		unknownService     *policy.UnknownServiceError
		holdConflict       *hold.ConflictError
		holdNotFound       *hold.NotFoundError
		assignConflict     *assignment.ConflictError
		assignValidation   *assignment.ValidationError
		assignInfraFailure *assignment.RepositoryError
	)

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Message, map[string]string{"code": inputErr.Code}
	case errors.As(err, &serviceNotFound):
		return http.StatusUnprocessableEntity, err.Error(), nil
	case errors.As(err, &serviceOverrun):
		return http.StatusUnprocessableEntity, err.Error(), nil
	case errors.As(err, &unknownService):
		return http.StatusUnprocessableEntity, err.Error(), nil
	case errors.As(err, &holdConflict):
		return http.StatusConflict, err.Error(), map[string]any{
			"conflicting_hold_ids": holdConflict.ConflictingIDs,
			"blocking_booking":     holdConflict.BlockingBooking,
		}
	case errors.As(err, &holdNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, hold.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, err.Error(), nil
	case errors.Is(err, hold.ErrNotAuthorized):
		return http.StatusForbidden, err.Error(), nil
	case errors.As(err, &assignConflict):
		return http.StatusConflict, err.Error(), map[string]any{
			"table_ids":        assignConflict.TableIDs,
			"blocking_booking": assignConflict.BlockingBooking,
		}
	case errors.As(err, &assignValidation):
		return http.StatusUnprocessableEntity, assignValidation.Message, nil
	case errors.As(err, &assignInfraFailure):
		return http.StatusBadGateway, "依存サービスでエラーが発生しました", nil
	case errors.Is(err, booking.ErrBookingNotFound), errors.Is(err, table.ErrTableNotFound):
		return http.StatusNotFound, err.Error(), nil
	default:
		return http.StatusInternalServerError, "内部サーバーエラー", nil
	}
}
