// Package demand は時間帯ごとの需要倍率を提供する
package demand

import (
	"context"
	"strings"
	"time"
)

// Rule は需要倍率ルールを表す
type Rule struct {
	Label         string
	ServiceWindow string
	Days          []time.Weekday
	Start         string // "15:04"（空は終日）
	End           string
	Multiplier    float64
	Source        string // "default" | "restaurant"
	Priority      int
}

// Result は倍率解決の結果を表す
type Result struct {
	Multiplier float64
	Rule       *Rule
}

// Repository はレストラン固有の需要プロファイルの読み取りインターフェース
type Repository interface {
	// FetchMultiplier はレストラン・曜日・サービス区分に一致するルールを返す
	// 一致しない場合は nil を返す
	FetchMultiplier(ctx context.Context, restaurantID string, dayOfWeek time.Weekday, serviceWindow string) (*Result, error)
}

// EmbeddedDefaults はレストラン固有ルールが無い場合の組み込みルールを返す
func EmbeddedDefaults() []Rule {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	return []Rule{
		{
			Label:         "weekday-lunch",
			ServiceWindow: "lunch",
			Days:          weekdays,
			Start:         "11:30",
			End:           "14:30",
			Multiplier:    0.85,
			Source:        "default",
		},
		{
			Label:         "weekday-dinner",
			ServiceWindow: "dinner",
			Days:          []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday},
			Start:         "17:30",
			End:           "21:30",
			Multiplier:    1.15,
			Source:        "default",
		},
		{
			Label:         "weekend-dinner-peak",
			ServiceWindow: "dinner",
			Days:          []time.Weekday{time.Friday, time.Saturday},
			Start:         "18:00",
			End:           "22:30",
			Multiplier:    1.35,
			Source:        "default",
		},
		{
			Label:         "weekend-brunch",
			ServiceWindow: "lunch",
			Days:          []time.Weekday{time.Saturday, time.Sunday},
			Start:         "10:00",
			End:           "13:00",
			Multiplier:    1.1,
			Source:        "default",
		},
	}
}

// Matches はルールが指定の曜日・サービス区分・時刻（分）に一致するかを返す
func (r *Rule) Matches(day time.Weekday, serviceWindow string, minuteOfDay int) bool {
	if !strings.EqualFold(r.ServiceWindow, serviceWindow) {
		return false
	}
	found := false
	for _, d := range r.Days {
		if d == day {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	start, startOK := parseMinute(r.Start)
	end, endOK := parseMinute(r.End)
	if !startOK || !endOK {
		return true
	}
	if end <= start {
		// 日またぎウィンドウ
		return minuteOfDay >= start || minuteOfDay < end
	}
	return minuteOfDay >= start && minuteOfDay < end
}

func parseMinute(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// BestMatch は一致ルールのうち優先度の最も高いものを返す（なければnil）
// レストラン固有ルールは常に組み込みルールより優先する
func BestMatch(rules []Rule, day time.Weekday, serviceWindow string, minuteOfDay int) *Rule {
	var best *Rule
	for i := range rules {
		r := &rules[i]
		if !r.Matches(day, serviceWindow, minuteOfDay) {
			continue
		}
		if best == nil || betterThan(r, best) {
			best = r
		}
	}
	return best
}

func betterThan(a, b *Rule) bool {
	if a.Source != b.Source {
		return a.Source == "restaurant"
	}
	return a.Priority > b.Priority
}
