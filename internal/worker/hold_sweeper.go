package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// HoldSweeperService は期限切れホールドを削除するインターフェース
type HoldSweeperService interface {
	SweepExpired(ctx context.Context) ([]string, error)
}

// HoldSweeper は期限切れホールドを定期的に掃除するワーカー
// DBのexpires_atが信頼できる唯一の期限なので、掃除が遅れても
// 競合判定には影響しない
type HoldSweeper struct {
	holdService HoldSweeperService
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewHoldSweeper は新しいスイーパーを作成
func NewHoldSweeper(hs HoldSweeperService, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{
		holdService: hs,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *HoldSweeper) Start(ctx context.Context) {
	logger.Info("期限切れホールドスイーパー開始",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れホールドスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("期限切れホールドスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *HoldSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は期限切れホールドを削除
func (s *HoldSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れホールドの掃除開始")

	deleted, err := s.holdService.SweepExpired(ctx)
	if err != nil {
		log.Error("期限切れホールドの掃除失敗", zap.Error(err))
		return
	}

	if len(deleted) > 0 {
		log.Info("期限切れホールドを削除", zap.Int("count", len(deleted)))
	} else {
		log.Debug("期限切れホールドなし")
	}
}
