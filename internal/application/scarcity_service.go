package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/scarcity"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/table"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/ttlcache"
)

// ScarcityService はテーブル希少度スコアをキャッシュ付きで提供する
type ScarcityService struct {
	repo  scarcity.Repository
	cache *ttlcache.Cache[map[string]float64]
}

func NewScarcityService(repo scarcity.Repository, cacheTTL time.Duration) *ScarcityService {
	return &ScarcityService{
		repo:  repo,
		cache: ttlcache.New[map[string]float64](cacheTTL),
	}
}

// LoadScores はテーブルIDごとの希少度スコアを返す
// メトリクスが取得できない場合はヒューリスティックで補完する
func (s *ScarcityService) LoadScores(ctx context.Context, restaurantID string, tables []*table.Table) map[string]float64 {
	metrics := s.loadMetrics(ctx, restaurantID)
	return scarcity.HeuristicScores(tables, metrics)
}

func (s *ScarcityService) loadMetrics(ctx context.Context, restaurantID string) map[string]float64 {
	if cached, ok := s.cache.Get(restaurantID); ok {
		return cached
	}

	var metrics map[string]float64
	if s.repo != nil {
		loaded, err := s.repo.LoadMetrics(ctx, restaurantID)
		if err != nil {
			logger.Warn("希少度メトリクスの取得に失敗したためヒューリスティックを使用します",
				zap.String("restaurant_id", restaurantID), zap.Error(err))
		} else {
			metrics = loaded
		}
	}
	if metrics == nil {
		metrics = map[string]float64{}
	}

	s.cache.Set(restaurantID, metrics)
	return metrics
}

// Invalidate はキャッシュを明示的に破棄する（設定変更時）
func (s *ScarcityService) Invalidate() {
	s.cache.Clear()
}

// StartSweeper はバックグラウンドの期限掃除を開始する
func (s *ScarcityService) StartSweeper(ctx context.Context, interval time.Duration) {
	s.cache.StartSweeper(ctx, interval)
}
