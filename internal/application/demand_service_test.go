package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyohei-watanabe/go-table-seating/internal/domain/demand"
)

func TestDemandService_Resolve(t *testing.T) {
	ctx := context.Background()
	// 土曜19時のディナー（組み込みルールではピーク帯 1.35）
	saturdayDinner := time.Date(2026, 3, 21, 19, 0, 0, 0, time.UTC)

	t.Run("レストラン固有ルールを優先する", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", time.Saturday, "dinner").
			Return(&demand.Result{Multiplier: 1.2}, nil)

		svc := NewDemandService(repo, time.Minute)
		result := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "UTC")
		assert.Equal(t, 1.2, result.Multiplier)
	})

	t.Run("固有ルールが無い場合は組み込みルールを使う", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", time.Saturday, "dinner").
			Return(nil, nil)

		svc := NewDemandService(repo, time.Minute)
		result := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "UTC")
		assert.Equal(t, 1.35, result.Multiplier)
		require.NotNil(t, result.Rule)
		assert.Equal(t, "weekend-dinner-peak", result.Rule.Label)
	})

	t.Run("リポジトリ障害時は組み込みルールにフォールバックする", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", time.Saturday, "dinner").
			Return(nil, errors.New("db down"))

		svc := NewDemandService(repo, time.Minute)
		result := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "UTC")
		assert.Equal(t, 1.35, result.Multiplier)
	})

	t.Run("どのルールにも一致しない場合は等倍を返す", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", mock.Anything, mock.Anything).
			Return(nil, nil)

		// 火曜15時はどの組み込みルールにも一致しない
		svc := NewDemandService(repo, time.Minute)
		result := svc.Resolve(ctx, "rest-1", time.Date(2026, 3, 17, 15, 0, 0, 0, time.UTC), "dinner", "UTC")
		assert.Equal(t, 1.0, result.Multiplier)
		assert.Nil(t, result.Rule)
	})

	t.Run("同一キーの再解決はキャッシュから返す", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", time.Saturday, "dinner").
			Return(&demand.Result{Multiplier: 1.2}, nil).Once()

		svc := NewDemandService(repo, time.Minute)
		first := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "UTC")
		second := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "UTC")
		assert.Equal(t, first.Multiplier, second.Multiplier)
		repo.AssertNumberOfCalls(t, "FetchMultiplier", 1)
	})

	t.Run("不正なタイムゾーンはUTCとして扱う", func(t *testing.T) {
		repo := new(MockDemandRepository)
		repo.On("FetchMultiplier", ctx, "rest-1", time.Saturday, "dinner").
			Return(nil, nil)

		svc := NewDemandService(repo, time.Minute)
		result := svc.Resolve(ctx, "rest-1", saturdayDinner, "dinner", "Mars/Olympus")
		assert.Equal(t, 1.35, result.Multiplier)
	})
}
