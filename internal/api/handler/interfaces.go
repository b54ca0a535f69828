package handler

import (
	"context"
	"time"

	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
)

// QuoteServiceInterface は見積もりサービスのインターフェース
type QuoteServiceInterface interface {
	Quote(ctx context.Context, input application.QuoteInput) (*application.QuoteResult, error)
}

// HoldServiceInterface はホールドサービスのインターフェース
type HoldServiceInterface interface {
	CreateHold(ctx context.Context, input application.CreateHoldInput) (*hold.Hold, error)
	ExtendHold(ctx context.Context, holdID string, actorID string, elevatedFor func(restaurantID string) bool, expiresAt time.Time) (*hold.Hold, error)
	ReleaseHold(ctx context.Context, holdID string) error
	ListActiveForBooking(ctx context.Context, bookingID string) ([]*hold.Hold, error)
}

// AssignmentServiceInterface はアサインコミットサービスのインターフェース
type AssignmentServiceInterface interface {
	CommitPlan(ctx context.Context, plan *assignment.Plan, opts application.CommitOptions) (*assignment.Result, error)
	ConfirmHold(ctx context.Context, holdID, bookingID string, opts application.CommitOptions) (*assignment.Result, error)
}

// AutoAssignServiceInterface は自動割当バッチのインターフェース
type AutoAssignServiceInterface interface {
	Run(ctx context.Context, input application.AutoAssignInput) (*application.AutoAssignReport, error)
}
