package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/config"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/hold"
	redisinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/redis"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/metrics"
)

// HoldService はテーブルホールドのライフサイクルを管理する
type HoldService struct {
	holds   hold.Repository
	limiter *redisinfra.HoldRateLimiter
	emitter event.Emitter
	cfg     config.HoldConfig
	now     func() time.Time
}

func NewHoldService(holds hold.Repository, limiter *redisinfra.HoldRateLimiter, emitter event.Emitter, cfg config.HoldConfig) *HoldService {
	return &HoldService{
		holds:   holds,
		limiter: limiter,
		emitter: emitter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// CreateHoldInput はホールド作成の入力を表す
type CreateHoldInput struct {
	BookingID    *string
	RestaurantID string
	ZoneID       string
	TableIDs     []string
	StartAt      time.Time
	EndAt        time.Time
	TTL          time.Duration
	CreatedBy    *string
	Metadata     map[string]string
}

// CreateHold は候補プランを仮押さえする
//
// 有効期限は設定の最小TTLまで切り上げる。厳格競合モードでは
// 重複ホールドを作成前に検査するが、検査と挿入の間のレースは
// 許容する（最終的な正しさはアトミックコミットが保証する）
func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (*hold.Hold, error) {
	now := s.now()

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl < s.cfg.MinTTL {
		ttl = s.cfg.MinTTL
	}

	h := &hold.Hold{
		ID:           uuid.New().String(),
		BookingID:    input.BookingID,
		RestaurantID: input.RestaurantID,
		ZoneID:       input.ZoneID,
		TableIDs:     input.TableIDs,
		StartAt:      input.StartAt,
		EndAt:        input.EndAt,
		ExpiresAt:    now.Add(ttl),
		CreatedBy:    input.CreatedBy,
		Metadata:     input.Metadata,
		CreatedAt:    now,
	}
	if err := h.Validate(); err != nil {
		s.countHold("create", "error")
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, rateLimitKey(input.CreatedBy, input.BookingID)) {
		s.countHold("create", "rate_limited")
		return nil, hold.ErrRateLimitExceeded
	}

	if s.cfg.StrictConflicts {
		conflicts, err := s.FindConflicts(ctx, input.RestaurantID, input.TableIDs, input.StartAt, input.EndAt, input.BookingID)
		if err != nil {
			s.countHold("create", "error")
			return nil, fmt.Errorf("ホールド競合検査に失敗: %w", err)
		}
		if len(conflicts) > 0 {
			s.countHold("create", "conflict")
			conflictErr := toConflictError(input.TableIDs, conflicts)
			s.emit(ctx, event.TypeHoldConflict, map[string]any{
				"restaurant_id":   input.RestaurantID,
				"table_ids":       input.TableIDs,
				"conflicting_ids": conflictErr.ConflictingIDs,
			})
			return nil, conflictErr
		}
	}

	if err := s.holds.Create(ctx, h); err != nil {
		s.countHold("create", "error")
		return nil, fmt.Errorf("ホールド作成に失敗: %w", err)
	}

	s.countHold("create", "success")
	if m := metrics.Get(); m != nil {
		m.ActiveHolds.Inc()
	}
	s.emit(ctx, event.TypeHoldCreated, map[string]any{
		"hold_id":       h.ID,
		"restaurant_id": h.RestaurantID,
		"table_ids":     h.TableIDs,
		"expires_at":    h.ExpiresAt,
	})
	return h, nil
}

// ExtendHold はホールドの有効期限を延長する
//
// 作成者本人か、ホールドの店舗に対する昇格ロールのみが延長でき、
// 現在より後の期限のみ受け付ける。現在の期限以前が指定された場合は
// 変更せず成功を返す
func (s *HoldService) ExtendHold(ctx context.Context, holdID string, actorID string, elevatedFor func(restaurantID string) bool, expiresAt time.Time) (*hold.Hold, error) {
	h, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		s.countHold("extend", "error")
		return nil, err
	}

	authorized := h.CreatedBy != nil && *h.CreatedBy == actorID
	if !authorized && elevatedFor != nil && elevatedFor(h.RestaurantID) {
		authorized = true
	}
	if !authorized {
		s.countHold("extend", "error")
		return nil, hold.ErrNotAuthorized
	}

	if !expiresAt.After(h.ExpiresAt) {
		s.countHold("extend", "success")
		return h, nil
	}

	if err := s.holds.UpdateExpiry(ctx, holdID, expiresAt); err != nil {
		s.countHold("extend", "error")
		return nil, fmt.Errorf("ホールド延長に失敗: %w", err)
	}
	h.ExpiresAt = expiresAt

	s.countHold("extend", "success")
	s.emit(ctx, event.TypeHoldExtended, map[string]any{
		"hold_id":    h.ID,
		"expires_at": expiresAt,
	})
	return h, nil
}

// ReleaseHold はホールドを解放する
func (s *HoldService) ReleaseHold(ctx context.Context, holdID string) error {
	if _, err := s.holds.GetByID(ctx, holdID); err != nil {
		s.countHold("release", "error")
		return err
	}
	if err := s.holds.Delete(ctx, holdID); err != nil {
		s.countHold("release", "error")
		return fmt.Errorf("ホールド解放に失敗: %w", err)
	}
	s.countHold("release", "success")
	if m := metrics.Get(); m != nil {
		m.ActiveHolds.Dec()
	}
	s.emit(ctx, event.TypeHoldReleased, map[string]any{"hold_id": holdID})
	return nil
}

// FindConflicts は指定ウィンドウ・テーブル集合と競合する有効なホールドを返す
// excludeBooking と同じ予約のホールドは競合に含めない
func (s *HoldService) FindConflicts(ctx context.Context, restaurantID string, tableIDs []string, startAt, endAt time.Time, excludeBooking *string) ([]*hold.Hold, error) {
	candidates, err := s.holds.FindConflicts(ctx, restaurantID, tableIDs, startAt, endAt)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conflicts := make([]*hold.Hold, 0, len(candidates))
	for _, h := range candidates {
		if h.IsExpired(now) {
			continue
		}
		if !h.ConflictsWith(excludeBooking, tableIDs, startAt, endAt) {
			continue
		}
		conflicts = append(conflicts, h)
	}
	return conflicts, nil
}

// ListActiveForBooking は予約に紐づく未失効のホールドを返す
func (s *HoldService) ListActiveForBooking(ctx context.Context, bookingID string) ([]*hold.Hold, error) {
	holds, err := s.holds.ListActiveForBooking(ctx, bookingID, s.now())
	if err != nil {
		return nil, fmt.Errorf("予約のホールド一覧取得に失敗: %w", err)
	}
	return holds, nil
}

// SweepExpired は期限切れホールドをページサイズ上限で削除する
// 複数ワーカーから同時実行しても安全（削除済みIDの削除は空振りする）
func (s *HoldService) SweepExpired(ctx context.Context) ([]string, error) {
	deleted, err := s.holds.SweepExpired(ctx, s.now(), s.cfg.SweepPageSize)
	if err != nil {
		s.countHold("sweep", "error")
		return nil, fmt.Errorf("期限切れホールドの削除に失敗: %w", err)
	}
	if len(deleted) > 0 {
		s.countHold("sweep", "success")
		if m := metrics.Get(); m != nil {
			m.ActiveHolds.Sub(float64(len(deleted)))
		}
		s.emit(ctx, event.TypeHoldExpired, map[string]any{
			"hold_ids": deleted,
			"count":    len(deleted),
		})
		logger.Debug("期限切れホールドを削除しました", zap.Int("count", len(deleted)))
	}
	return deleted, nil
}

func (s *HoldService) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, eventType, payload)
	}
}

func (s *HoldService) countHold(operation, status string) {
	if m := metrics.Get(); m != nil {
		m.HoldOperationsTotal.WithLabelValues(operation, status).Inc()
	}
}

func toConflictError(tableIDs []string, conflicts []*hold.Hold) *hold.ConflictError {
	ids := make([]string, 0, len(conflicts))
	var blocking *string
	for _, c := range conflicts {
		ids = append(ids, c.ID)
		if blocking == nil && c.BookingID != nil {
			blocking = c.BookingID
		}
	}
	return &hold.ConflictError{
		TableIDs:        tableIDs,
		ConflictingIDs:  ids,
		BlockingBooking: blocking,
	}
}

func rateLimitKey(createdBy, bookingID *string) string {
	creator := "anonymous"
	if createdBy != nil && *createdBy != "" {
		creator = *createdBy
	}
	booking := "speculative"
	if bookingID != nil && *bookingID != "" {
		booking = *bookingID
	}
	return creator + ":" + booking
}
