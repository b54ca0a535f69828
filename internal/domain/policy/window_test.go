package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func TestVenuePolicy_WhichService(t *testing.T) {
	p := DefaultPolicy()
	loc := london(t)

	tests := []struct {
		name     string
		at       time.Time
		expected ServiceKey
	}{
		{"ランチ開始時刻", time.Date(2026, 9, 1, 12, 0, 0, 0, loc), ServiceLunch},
		{"ランチ終了直前", time.Date(2026, 9, 1, 14, 59, 0, 0, loc), ServiceLunch},
		{"ランチ終了時刻は含まない", time.Date(2026, 9, 1, 15, 0, 0, 0, loc), ""},
		{"ディナー", time.Date(2026, 9, 1, 19, 0, 0, 0, loc), ServiceDinner},
		{"営業時間外", time.Date(2026, 9, 1, 9, 0, 0, 0, loc), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.WhichService(tt.at))
		})
	}
}

func TestVenuePolicy_TurnBandFor(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		service   ServiceKey
		partySize int
		expected  int
	}{
		{"2名は60分", ServiceDinner, 2, 60},
		{"4名は75分", ServiceDinner, 4, 75},
		{"6名は85分", ServiceDinner, 6, 85},
		{"8名ディナーは90分", ServiceDinner, 8, 90},
		{"8名ランチは85分", ServiceLunch, 8, 85},
		{"バンド超過はキャッチオール", ServiceDinner, 12, 90},
		{"0名は先頭バンド", ServiceDinner, 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, err := p.TurnBandFor(tt.service, tt.partySize)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, band.DurationMinutes)
		})
	}
}

func TestVenuePolicy_ServiceWindowFor_日またぎ(t *testing.T) {
	p := DefaultPolicy()
	p.Services[ServiceDrinks] = &ServiceDefinition{
		Key:       ServiceDrinks,
		Start:     TimeOfDay{Hour: 22},
		End:       TimeOfDay{Hour: 2},
		TurnBands: []TurnBand{{MaxPartySize: 8, DurationMinutes: 60}},
	}
	loc := london(t)

	window, err := p.ServiceWindowFor(ServiceDrinks, time.Date(2026, 9, 1, 23, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 22, 0, 0, 0, loc), window.Start)
	assert.Equal(t, time.Date(2026, 9, 2, 2, 0, 0, 0, loc), window.End)
}

func TestVenuePolicy_ResolveWindow(t *testing.T) {
	p := DefaultPolicy()
	loc := london(t)

	t.Run("ディナー4名19時開始", func(t *testing.T) {
		window, err := p.ResolveWindow(ResolveWindowArgs{
			StartAt:   time.Date(2026, 9, 1, 19, 0, 0, 0, loc),
			PartySize: 4,
		})
		require.NoError(t, err)

		assert.Equal(t, ServiceDinner, window.Service)
		assert.Equal(t, 75, window.DurationMinutes)
		assert.Equal(t, time.Date(2026, 9, 1, 19, 0, 0, 0, loc), window.DiningStart)
		assert.Equal(t, time.Date(2026, 9, 1, 20, 15, 0, 0, loc), window.DiningEnd)
		assert.Equal(t, time.Date(2026, 9, 1, 19, 0, 0, 0, loc), window.BlockStart)
		assert.Equal(t, time.Date(2026, 9, 1, 20, 20, 0, 0, loc), window.BlockEnd)
		assert.False(t, window.ClampedToServiceEnd)
	})

	t.Run("日付と時刻の組み合わせ", func(t *testing.T) {
		window, err := p.ResolveWindow(ResolveWindowArgs{
			BookingDate: "2026-09-01",
			StartTime:   "12:30",
			PartySize:   2,
		})
		require.NoError(t, err)
		assert.Equal(t, ServiceLunch, window.Service)
		assert.Equal(t, time.Date(2026, 9, 1, 13, 30, 0, 0, loc), window.DiningEnd)
	})

	t.Run("サービス終了間際は切り詰める", func(t *testing.T) {
		// 21:30開始 4名: 本来 22:50 ブロック終了 → 22:00 に切り詰め
		window, err := p.ResolveWindow(ResolveWindowArgs{
			StartAt:   time.Date(2026, 9, 1, 21, 30, 0, 0, loc),
			PartySize: 4,
		})
		require.NoError(t, err)
		assert.True(t, window.ClampedToServiceEnd)
		assert.Equal(t, time.Date(2026, 9, 1, 22, 0, 0, 0, loc), window.BlockEnd)
		assert.Equal(t, time.Date(2026, 9, 1, 21, 55, 0, 0, loc), window.DiningEnd)
		assert.Equal(t, 25, window.DurationMinutes)
	})

	t.Run("食事時間が消滅する場合はServiceOverrunError", func(t *testing.T) {
		_, err := p.ResolveWindow(ResolveWindowArgs{
			StartAt:   time.Date(2026, 9, 1, 21, 58, 0, 0, loc),
			PartySize: 4,
		})
		var overrun *ServiceOverrunError
		require.ErrorAs(t, err, &overrun)
		assert.Equal(t, ServiceDinner, overrun.Service)
	})

	t.Run("営業時間外はServiceNotFoundError", func(t *testing.T) {
		_, err := p.ResolveWindow(ResolveWindowArgs{
			StartAt:   time.Date(2026, 9, 1, 9, 0, 0, 0, loc),
			PartySize: 2,
		})
		var notFound *ServiceNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("サービスヒントで時間外でも解決できる", func(t *testing.T) {
		window, err := p.ResolveWindow(ResolveWindowArgs{
			StartAt:     time.Date(2026, 9, 1, 12, 30, 0, 0, loc),
			PartySize:   2,
			ServiceHint: ServiceLunch,
		})
		require.NoError(t, err)
		assert.Equal(t, ServiceLunch, window.Service)
	})

	t.Run("開始時刻なしはInputError", func(t *testing.T) {
		_, err := p.ResolveWindow(ResolveWindowArgs{PartySize: 2})
		var input *InputError
		require.ErrorAs(t, err, &input)
		assert.Equal(t, "START_TIME_REQUIRED", input.Code)
	})

	t.Run("不正な日時はInputError", func(t *testing.T) {
		_, err := p.ResolveWindow(ResolveWindowArgs{
			BookingDate: "2026-13-99",
			StartTime:   "12:00",
			PartySize:   2,
		})
		var input *InputError
		require.ErrorAs(t, err, &input)
		assert.Equal(t, "INVALID_START", input.Code)
	})
}

func TestVenuePolicy_ResolveWindowWithFallback(t *testing.T) {
	p := DefaultPolicy()
	loc := london(t)
	outside := time.Date(2026, 9, 1, 9, 0, 0, 0, loc)

	t.Run("サービス内はフォールバックしない", func(t *testing.T) {
		result, err := p.ResolveWindowWithFallback(ResolveWindowArgs{
			StartAt:   time.Date(2026, 9, 1, 19, 0, 0, 0, loc),
			PartySize: 2,
		}, false)
		require.NoError(t, err)
		assert.False(t, result.UsedFallback)
	})

	t.Run("時間外はポリシー順先頭のサービスで解決する", func(t *testing.T) {
		result, err := p.ResolveWindowWithFallback(ResolveWindowArgs{
			StartAt:   outside,
			PartySize: 2,
		}, false)
		require.NoError(t, err)
		assert.True(t, result.UsedFallback)
		assert.Equal(t, ServiceLunch, result.FallbackService)
		assert.Equal(t, ServiceLunch, result.Window.Service)
	})

	t.Run("failHardの場合はフォールバックしない", func(t *testing.T) {
		_, err := p.ResolveWindowWithFallback(ResolveWindowArgs{
			StartAt:   outside,
			PartySize: 2,
		}, true)
		var notFound *ServiceNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestVenuePolicy_WithTimezone(t *testing.T) {
	p := DefaultPolicy()
	q := p.WithTimezone("Asia/Tokyo")

	assert.Equal(t, "Asia/Tokyo", q.Timezone)
	assert.Equal(t, "Europe/London", p.Timezone)

	// コピーなので変更が元に波及しない
	q.Services[ServiceLunch].Buffer.Post = 99
	assert.Equal(t, 5, p.Services[ServiceLunch].Buffer.Post)
}

func TestVenuePolicy_Version(t *testing.T) {
	p := DefaultPolicy()

	t.Run("同一内容なら同じバージョン", func(t *testing.T) {
		assert.Equal(t, p.Version(), DefaultPolicy().Version())
	})

	t.Run("内容が変わればバージョンも変わる", func(t *testing.T) {
		q := p.WithTimezone("Asia/Tokyo")
		assert.NotEqual(t, p.Version(), q.Version())

		r := DefaultPolicy()
		r.Services[ServiceDinner].Buffer.Post = 10
		assert.NotEqual(t, p.Version(), r.Version())
	})
}
