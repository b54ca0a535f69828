package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/metrics"
)

// AssignmentService はプランの確定コミットをオーケストレーションする
type AssignmentService struct {
	committer assignment.Committer
	holds     hold.Repository
	emitter   event.Emitter
	salt      string
}

func NewAssignmentService(committer assignment.Committer, holds hold.Repository, emitter event.Emitter, signatureSalt string) *AssignmentService {
	return &AssignmentService{
		committer: committer,
		holds:     holds,
		emitter:   emitter,
		salt:      signatureSalt,
	}
}

// CommitOptions はコミットの挙動を制御する
type CommitOptions struct {
	// IdempotencyKey が空の場合はプランのシグネチャを使う
	IdempotencyKey   string
	RequireAdjacency bool
	ActorID          *string
	// Shadow は永続化せずに同じ呼び出し経路だけを通す
	Shadow bool
	// HoldID が指定されている場合、コミット成功後にベストエフォートで削除する
	HoldID string
}

// CommitPlan はプランをアトミックかつ冪等にコミットする
//
// 同一の (予約, テーブル集合, ウィンドウ, 冪等性キー) での再試行は安全。
// 競合・検証・インフラ障害は型付きエラーとして呼び出し側に返す
func (s *AssignmentService) CommitPlan(ctx context.Context, plan *assignment.Plan, opts CommitOptions) (*assignment.Result, error) {
	if err := plan.Validate(); err != nil {
		s.countCommit("validation")
		return nil, &assignment.ValidationError{Message: err.Error(), Cause: err}
	}

	key := opts.IdempotencyKey
	if key == "" {
		key = plan.Signature(s.salt)
	}

	committer := s.committer
	if opts.Shadow {
		committer = noopCommitter{}
	}

	records, err := committer.Commit(ctx, assignment.CommitArgs{
		BookingID:        plan.BookingID,
		TableIDs:         plan.TableIDs,
		IdempotencyKey:   key,
		RequireAdjacency: opts.RequireAdjacency,
		ActorID:          opts.ActorID,
		StartAt:          plan.StartAt,
		EndAt:            plan.EndAt,
	})
	if err != nil {
		return nil, s.translateFailure(ctx, plan, err)
	}

	mergeGroupID := ""
	if len(records) > 0 {
		mergeGroupID = records[0].MergeGroupID
	}
	result := &assignment.Result{
		Assignments:  records,
		MergeGroupID: mergeGroupID,
		Shadow:       opts.Shadow,
	}

	if opts.Shadow {
		s.countCommit("shadow")
		s.emit(ctx, event.TypeAssignmentShadow, map[string]any{
			"booking_id": plan.BookingID,
			"table_ids":  plan.TableIDs,
		})
		return result, nil
	}

	// コミット成功後のホールド削除はベストエフォート
	// 失敗してもコミット自体は成立しているため伝播させない
	if opts.HoldID != "" && s.holds != nil {
		if err := s.holds.Delete(ctx, opts.HoldID); err != nil {
			logger.Warn("コミット後のホールド削除に失敗しました",
				zap.String("hold_id", opts.HoldID), zap.Error(err))
		} else if m := metrics.Get(); m != nil {
			m.ActiveHolds.Dec()
		}
	}

	s.countCommit("success")
	s.emit(ctx, event.TypeAssignmentCommit, map[string]any{
		"booking_id":      plan.BookingID,
		"table_ids":       plan.TableIDs,
		"merge_group_id":  mergeGroupID,
		"idempotency_key": key,
	})
	return result, nil
}

// ConfirmHold はホールドをそのままコミットして確定させる
func (s *AssignmentService) ConfirmHold(ctx context.Context, holdID, bookingID string, opts CommitOptions) (*assignment.Result, error) {
	h, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		s.countHoldConfirm("error")
		return nil, err
	}
	if h.BookingID != nil && *h.BookingID != bookingID {
		s.countHoldConfirm("error")
		return nil, &assignment.ValidationError{
			Message: "ホールドは別の予約に紐付いています",
		}
	}

	plan := assignment.NewPlan(bookingID, h.TableIDs, h.StartAt, h.EndAt)
	opts.HoldID = holdID
	result, err := s.CommitPlan(ctx, plan, opts)
	if err != nil {
		s.countHoldConfirm("error")
		return nil, err
	}
	s.countHoldConfirm("success")
	return result, nil
}

func (s *AssignmentService) translateFailure(ctx context.Context, plan *assignment.Plan, err error) error {
	var conflict *assignment.ConflictError
	var validation *assignment.ValidationError
	var repository *assignment.RepositoryError

	switch {
	case errors.As(err, &conflict):
		s.countCommit("conflict")
		s.emit(ctx, event.TypeAssignmentConflict, map[string]any{
			"booking_id": plan.BookingID,
			"table_ids":  conflict.TableIDs,
		})
		return err
	case errors.As(err, &validation):
		s.countCommit("validation")
		return err
	case errors.As(err, &repository):
		s.countCommit("error")
		return err
	default:
		s.countCommit("error")
		return &assignment.RepositoryError{Cause: err}
	}
}

func (s *AssignmentService) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, eventType, payload)
	}
}

func (s *AssignmentService) countCommit(status string) {
	if m := metrics.Get(); m != nil {
		m.CommitsTotal.WithLabelValues(status).Inc()
	}
}

func (s *AssignmentService) countHoldConfirm(status string) {
	if m := metrics.Get(); m != nil {
		m.HoldOperationsTotal.WithLabelValues("confirm", status).Inc()
	}
}

// noopCommitter はシャドーモード用の何もしないコミット先
type noopCommitter struct{}

func (noopCommitter) Commit(_ context.Context, args assignment.CommitArgs) ([]*assignment.Record, error) {
	now := time.Now()
	records := make([]*assignment.Record, 0, len(args.TableIDs))
	for _, tableID := range args.TableIDs {
		records = append(records, &assignment.Record{
			BookingID:    args.BookingID,
			TableID:      tableID,
			MergeGroupID: args.IdempotencyKey,
			StartAt:      args.StartAt,
			EndAt:        args.EndAt,
			AssignedBy:   args.ActorID,
			CreatedAt:    now,
		})
	}
	return records, nil
}
