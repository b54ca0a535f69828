package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/demand"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/ttlcache"
)

// DemandService は需要倍率をキャッシュ付きで解決する
// 倍率はスコアリングの入力としてのみ使われ、失敗しても常にデフォルト1で継続する
type DemandService struct {
	repo     demand.Repository
	cache    *ttlcache.Cache[*demand.Result]
	defaults []demand.Rule
}

func NewDemandService(repo demand.Repository, cacheTTL time.Duration) *DemandService {
	return &DemandService{
		repo:     repo,
		cache:    ttlcache.New[*demand.Result](cacheTTL),
		defaults: demand.EmbeddedDefaults(),
	}
}

// Resolve はレストラン・サービス開始時刻から需要倍率を解決する
func (s *DemandService) Resolve(ctx context.Context, restaurantID string, serviceStart time.Time, serviceKey, timezone string) *demand.Result {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	localized := serviceStart.In(loc)
	day := localized.Weekday()
	minuteOfDay := localized.Hour()*60 + localized.Minute()

	cacheKey := fmt.Sprintf("%s|%d|%s|%d", restaurantID, day, serviceKey, minuteOfDay)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached
	}

	result := s.resolve(ctx, restaurantID, day, serviceKey, minuteOfDay)
	s.cache.Set(cacheKey, result)
	return result
}

func (s *DemandService) resolve(ctx context.Context, restaurantID string, day time.Weekday, serviceKey string, minuteOfDay int) *demand.Result {
	if s.repo != nil && restaurantID != "" {
		found, err := s.repo.FetchMultiplier(ctx, restaurantID, day, serviceKey)
		if err != nil {
			logger.Warn("需要プロファイルの取得に失敗したため組み込みルールを使用します",
				zap.String("restaurant_id", restaurantID), zap.Error(err))
		} else if found != nil && found.Multiplier >= 0 {
			return found
		}
	}

	if rule := demand.BestMatch(s.defaults, day, serviceKey, minuteOfDay); rule != nil {
		return &demand.Result{Multiplier: rule.Multiplier, Rule: rule}
	}
	return &demand.Result{Multiplier: 1}
}

// Invalidate はキャッシュを明示的に破棄する（設定変更時）
func (s *DemandService) Invalidate() {
	s.cache.Clear()
}

// StartSweeper はバックグラウンドの期限掃除を開始する
func (s *DemandService) StartSweeper(ctx context.Context, interval time.Duration) {
	s.cache.StartSweeper(ctx, interval)
}
