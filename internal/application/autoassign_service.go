package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/assignment"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/booking"
	redisinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/redis"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// autoAssignLockTTL は日次バッチの分散ロック保持時間
const autoAssignLockTTL = 2 * time.Minute

// AutoAssignService は指定日の未割当予約をまとめて座席に割り当てる
//
// 同一レストラン・同一日の同時実行は分散ロックで直列化する。
// 個々の予約の失敗はバッチ全体を止めず、レポートに記録する。
type AutoAssignService struct {
	bookings  booking.Repository
	quoteSvc  *QuoteService
	assignSvc *AssignmentService
	locks     *redisinfra.LockManager
}

func NewAutoAssignService(
	bookings booking.Repository,
	quoteSvc *QuoteService,
	assignSvc *AssignmentService,
	locks *redisinfra.LockManager,
) *AutoAssignService {
	return &AutoAssignService{
		bookings:  bookings,
		quoteSvc:  quoteSvc,
		assignSvc: assignSvc,
		locks:     locks,
	}
}

// AutoAssignInput は自動割当バッチの入力を表す
type AutoAssignInput struct {
	RestaurantID string
	// Date は対象日 "2006-01-02"
	Date string
	// Shadow が真の場合、割当の永続化を行わずスコアのみ記録する
	Shadow           bool
	RequireAdjacency *bool
	ActorID          *string
}

// BookingOutcome は予約1件の処理結果を表す
type BookingOutcome struct {
	BookingID    string
	Status       string // assigned | shadow | no_plan | conflict | error
	TableKey     string
	Score        float64
	MergeGroupID string
	Reason       string
}

// AutoAssignReport はバッチ全体の結果を表す
type AutoAssignReport struct {
	RestaurantID string
	Date         string
	Processed    int
	Assigned     int
	Shadowed     int
	Failed       int
	Outcomes     []BookingOutcome
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Run は対象日の保留中予約をスコア順に割り当てる
func (s *AutoAssignService) Run(ctx context.Context, input AutoAssignInput) (*AutoAssignReport, error) {
	if input.RestaurantID == "" || input.Date == "" {
		return nil, fmt.Errorf("レストランIDと対象日は必須です")
	}

	var report *AutoAssignReport
	run := func(ctx context.Context) error {
		var err error
		report, err = s.runLocked(ctx, input)
		return err
	}

	if s.locks == nil {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return report, nil
	}

	lockKey := fmt.Sprintf("autoassign:%s:%s", input.RestaurantID, input.Date)
	if err := s.locks.WithLock(ctx, lockKey, autoAssignLockTTL, run); err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, fmt.Errorf("自動割当は既に実行中です: %s %s", input.RestaurantID, input.Date)
		}
		return nil, err
	}
	return report, nil
}

func (s *AutoAssignService) runLocked(ctx context.Context, input AutoAssignInput) (*AutoAssignReport, error) {
	report := &AutoAssignReport{
		RestaurantID: input.RestaurantID,
		Date:         input.Date,
		StartedAt:    time.Now(),
	}

	bookings, err := s.bookings.ListByDate(ctx, input.RestaurantID, input.Date)
	if err != nil {
		return nil, fmt.Errorf("対象日の予約取得に失敗: %w", err)
	}

	// 大きいパーティーから先に割り当てる。候補テーブルの選択肢が少ない
	// 予約を後回しにすると結合プランが先に崩れるため
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].PartySize != bookings[j].PartySize {
			return bookings[i].PartySize > bookings[j].PartySize
		}
		si, sj := bookings[i].StartAt, bookings[j].StartAt
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return si.Before(*sj)
		}
	})

	for _, b := range bookings {
		if b.Status != booking.StatusPending {
			continue
		}
		report.Processed++
		outcome := s.assignOne(ctx, b, input)
		switch outcome.Status {
		case "assigned":
			report.Assigned++
		case "shadow":
			report.Shadowed++
		default:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = time.Now()
	logger.Info("自動割当バッチが完了しました",
		zap.String("restaurant_id", input.RestaurantID),
		zap.String("date", input.Date),
		zap.Int("processed", report.Processed),
		zap.Int("assigned", report.Assigned),
		zap.Int("shadowed", report.Shadowed),
		zap.Int("failed", report.Failed),
		zap.Bool("shadow", input.Shadow),
	)
	return report, nil
}

func (s *AutoAssignService) assignOne(ctx context.Context, b *booking.Booking, input AutoAssignInput) BookingOutcome {
	outcome := BookingOutcome{BookingID: b.ID}

	quote, err := s.quoteSvc.Quote(ctx, QuoteInput{
		BookingID:        b.ID,
		RequireAdjacency: input.RequireAdjacency,
	})
	if err != nil {
		outcome.Status = "error"
		outcome.Reason = err.Error()
		return outcome
	}
	if quote.BestPlan == nil {
		outcome.Status = "no_plan"
		outcome.Reason = quote.FallbackReason
		return outcome
	}

	plan := assignment.NewPlan(b.ID, quote.BestPlan.TableIDs(), quote.Window.BlockStart, quote.Window.BlockEnd)
	commitResult, err := s.assignSvc.CommitPlan(ctx, plan, CommitOptions{
		ActorID: input.ActorID,
		Shadow:  input.Shadow,
	})
	if err != nil {
		var conflict *assignment.ConflictError
		if errors.As(err, &conflict) {
			outcome.Status = "conflict"
		} else {
			outcome.Status = "error"
		}
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.TableKey = quote.BestPlan.TableKey
	outcome.Score = quote.BestPlan.Score
	outcome.MergeGroupID = commitResult.MergeGroupID
	if input.Shadow {
		outcome.Status = "shadow"
	} else {
		outcome.Status = "assigned"
	}
	return outcome
}
